package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyd/internal/audit"
	"complyd/internal/audit/store/entry"
	id "complyd/pkg/domain"
	"complyd/pkg/requestcontext"
)

type fixture struct {
	router   chi.Router
	service  *audit.Service
	tenantID id.TenantID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	service := audit.NewService(entry.NewMemory())
	tenantID := id.NewTenantID()

	router := chi.NewRouter()
	// Stand-in for the auth middleware.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	New(service, slog.New(slog.DiscardHandler)).Register(router)

	return &fixture{router: router, service: service, tenantID: tenantID}
}

func (f *fixture) appendEntries(t *testing.T, n int) {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC))
	for i := 0; i < n; i++ {
		_, err := f.service.Append(ctx, f.tenantID, audit.ApplicantCreated{ApplicantID: "app-1"})
		require.NoError(t, err)
	}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListEntries(t *testing.T) {
	f := newFixture(t)
	f.appendEntries(t, 3)

	rec := f.get(t, "/audit/entries")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []struct {
			Sequence  int64  `json:"sequence"`
			EventType string `json:"event_type"`
			Checksum  string `json:"checksum"`
		} `json:"entries"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, int64(0), resp.Entries[0].Sequence)
	assert.Equal(t, "applicant.created", resp.Entries[0].EventType)
	assert.NotEmpty(t, resp.Entries[0].Checksum)
}

func TestListEntries_Pagination(t *testing.T) {
	f := newFixture(t)
	f.appendEntries(t, 5)

	rec := f.get(t, "/audit/entries?offset=2&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []struct {
			Sequence int64 `json:"sequence"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(2), resp.Entries[0].Sequence)
}

func TestListEntries_RejectsBadQuery(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/audit/entries?offset=-1",
		"/audit/entries?limit=0",
		"/audit/entries?limit=abc",
		"/audit/entries?event_type=nope",
	} {
		rec := f.get(t, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.appendEntries(t, 4)

	rec := f.get(t, "/audit/verify")
	require.Equal(t, http.StatusOK, rec.Code)

	var result audit.VerificationResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result.Valid)
	assert.Equal(t, 4, result.Entries)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	service := audit.NewService(entry.NewMemory())
	router := chi.NewRouter()
	New(service, slog.New(slog.DiscardHandler)).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/audit/entries", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
