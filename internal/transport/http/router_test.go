package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyd/internal/audit"
	audithandler "complyd/internal/audit/handler"
	auditstore "complyd/internal/audit/store/entry"
	"complyd/internal/event"
	eventhandler "complyd/internal/event/handler"
	jwttoken "complyd/internal/jwt_token"
	"complyd/internal/tenant"
	tenanthandler "complyd/internal/tenant/handler"
	tenantstore "complyd/internal/tenant/store/tenant"
	"complyd/internal/webhook"
	webhookhandler "complyd/internal/webhook/handler"
	deliverystore "complyd/internal/webhook/store/delivery"
	endpointstore "complyd/internal/webhook/store/endpoint"
)

const testAdminToken = "test-admin-token"

type stubSender struct{}

func (stubSender) Send(context.Context, *webhook.Config, *webhook.Delivery, time.Time) webhook.SendResult {
	return webhook.SendResult{Outcome: webhook.OutcomeSucceeded, StatusCode: 200}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	auditor := audit.NewService(auditstore.NewMemory())
	webhooks := webhook.NewService(endpointstore.NewMemory(), deliverystore.NewMemory(), stubSender{})
	tenants := tenant.NewService(tenantstore.NewMemory(), tenant.WithRecorder(auditor))
	events := event.NewService(auditor, webhooks, event.WithTenantGate(tenants))

	jwtService := jwttoken.NewJWTService("test-signing-key", "complyd", "complyd-api")

	return NewRouter(RouterConfig{
		Tenants:    tenanthandler.New(tenants, jwtService, logger),
		Audit:      audithandler.New(auditor, logger),
		Webhooks:   webhookhandler.New(webhooks, logger),
		Events:     eventhandler.New(events, logger),
		Validator:  jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken: testAdminToken,
		Logger:     logger,
	})
}

func do(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// provisionTenant creates a tenant through the admin surface and exchanges
// its API key for a tenant-scoped JWT.
func provisionTenant(t *testing.T, router http.Handler, name string) (tenantID, jwt string) {
	t.Helper()

	rec := do(t, router, http.MethodPost, "/admin/tenants", testAdminToken, `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[struct {
		ID     string `json:"id"`
		APIKey string `json:"api_key"`
	}](t, rec)

	rec = do(t, router, http.MethodPost, "/auth/token", "",
		`{"tenant_id":"`+created.ID+`","api_key":"`+created.APIKey+`","subject":"ci"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, rec)

	return created.ID, token.AccessToken
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsDegradedBackends(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	auditor := audit.NewService(auditstore.NewMemory())
	webhooks := webhook.NewService(endpointstore.NewMemory(), deliverystore.NewMemory(), stubSender{})
	tenants := tenant.NewService(tenantstore.NewMemory())
	jwtService := jwttoken.NewJWTService("k", "complyd", "complyd-api")

	router := NewRouter(RouterConfig{
		Tenants:   tenanthandler.New(tenants, jwtService, logger),
		Audit:     audithandler.New(auditor, logger),
		Webhooks:  webhookhandler.New(webhooks, logger),
		Events:    eventhandler.New(event.NewService(auditor, webhooks), logger),
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Logger:    logger,
		Health: func(context.Context) error {
			return context.DeadlineExceeded
		},
	})

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminSurfaceRequiresAdminToken(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/admin/tenants", "", `{"name":"Acme"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/admin/tenants", "wrong-token", `{"name":"Acme"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A tenant-scoped JWT is not an admin credential.
	_, jwt := provisionTenant(t, router, "Acme")
	rec = do(t, router, http.MethodGet, "/admin/tenants", jwt, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantSurfaceRequiresJWT(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/v1/audit/entries", "/v1/webhooks/configs", "/v1/webhooks/deliveries"} {
		rec := do(t, router, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := do(t, router, http.MethodGet, "/v1/audit/entries", testAdminToken, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "admin token is not a tenant credential")
}

func TestEndToEndEventFlow(t *testing.T) {
	router := newTestRouter(t)
	_, jwt := provisionTenant(t, router, "Acme Corp")

	rec := do(t, router, http.MethodPost, "/v1/webhooks/configs", jwt,
		`{"target_url":"https://hooks.example.com/complyd","secret":"super-secret-key-1","event_types":["case.resolved"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/events", jwt,
		`{"event_type":"case.resolved","payload":{"case_id":"case-9","resolver_id":"rev-1","resolution":"dismissed"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	recorded := decode[struct {
		EntryID    string `json:"entry_id"`
		Checksum   string `json:"checksum"`
		Deliveries int    `json:"deliveries_enqueued"`
	}](t, rec)
	assert.NotEmpty(t, recorded.Checksum)
	assert.Equal(t, 1, recorded.Deliveries)

	rec = do(t, router, http.MethodGet, "/v1/audit/entries", jwt, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[struct {
		Entries []struct {
			EventType string `json:"event_type"`
			Sequence  int64  `json:"sequence"`
		} `json:"entries"`
	}](t, rec)
	// The tenant.created entry from provisioning precedes the event itself.
	require.Len(t, entries.Entries, 2)
	assert.Equal(t, "tenant.created", entries.Entries[0].EventType)
	assert.Equal(t, "case.resolved", entries.Entries[1].EventType)

	rec = do(t, router, http.MethodGet, "/v1/audit/verify", jwt, "")
	require.Equal(t, http.StatusOK, rec.Code)
	verify := decode[struct {
		Valid bool `json:"valid"`
	}](t, rec)
	assert.True(t, verify.Valid)

	rec = do(t, router, http.MethodGet, "/v1/webhooks/deliveries", jwt, "")
	require.Equal(t, http.StatusOK, rec.Code)
	deliveries := decode[struct {
		Deliveries []struct {
			EventKey string `json:"event_key"`
		} `json:"deliveries"`
	}](t, rec)
	require.Len(t, deliveries.Deliveries, 1)
	assert.Equal(t, recorded.EntryID, deliveries.Deliveries[0].EventKey)
}

func TestTenantsAreIsolated(t *testing.T) {
	router := newTestRouter(t)
	_, jwtA := provisionTenant(t, router, "Tenant A")
	_, jwtB := provisionTenant(t, router, "Tenant B")

	rec := do(t, router, http.MethodPost, "/v1/events", jwtA,
		`{"event_type":"case.resolved","payload":{"case_id":"c","resolver_id":"r","resolution":"ok"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/audit/entries", jwtB, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[struct {
		Entries []struct {
			EventType string `json:"event_type"`
		} `json:"entries"`
	}](t, rec)
	// Tenant B sees only its own provisioning entry.
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, "tenant.created", entries.Entries[0].EventType)
}

func TestDeactivatedTenantLosesAccess(t *testing.T) {
	router := newTestRouter(t)
	tenantID, jwt := provisionTenant(t, router, "Doomed Inc")

	rec := do(t, router, http.MethodPost, "/admin/tenants/"+tenantID+"/deactivate", testAdminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Existing tokens stop working at the intake gate.
	rec = do(t, router, http.MethodPost, "/v1/events", jwt,
		`{"event_type":"case.resolved","payload":{"case_id":"c","resolver_id":"r","resolution":"ok"}}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
