// Package handler exposes tenant administration and credential exchange
// over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"complyd/internal/tenant"
	"complyd/internal/transport/http/shared"
	id "complyd/pkg/domain"
	"complyd/pkg/requestcontext"
)

const tokenTTL = time.Hour

// Service defines the tenant operations the handler depends on.
type Service interface {
	Create(ctx context.Context, name string) (*tenant.Tenant, string, error)
	Get(ctx context.Context, tenantID id.TenantID) (*tenant.Tenant, error)
	List(ctx context.Context) ([]*tenant.Tenant, error)
	Deactivate(ctx context.Context, tenantID id.TenantID) (*tenant.Tenant, error)
	Reactivate(ctx context.Context, tenantID id.TenantID) (*tenant.Tenant, error)
	RotateAPIKey(ctx context.Context, tenantID id.TenantID) (string, error)
	VerifyAPIKey(ctx context.Context, tenantID id.TenantID, apiKey string) (*tenant.Tenant, error)
}

// TokenIssuer mints tenant-scoped access tokens after credential exchange.
type TokenIssuer interface {
	GenerateAccessToken(tenantID id.TenantID, subject string, expiresIn time.Duration) (string, error)
}

// Handler wires tenant endpoints to the tenant service.
type Handler struct {
	service Service
	issuer  TokenIssuer
	logger  *slog.Logger
}

// New constructs a tenant handler with its dependencies.
func New(service Service, issuer TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{service: service, issuer: issuer, logger: logger}
}

// Register mounts the operator-facing tenant administration endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tenants", h.HandleCreate)
	r.Get("/tenants", h.HandleList)
	r.Get("/tenants/{tenantID}", h.HandleGet)
	r.Post("/tenants/{tenantID}/deactivate", h.HandleDeactivate)
	r.Post("/tenants/{tenantID}/reactivate", h.HandleReactivate)
	r.Post("/tenants/{tenantID}/api-key", h.HandleRotateAPIKey)
}

// RegisterAuth mounts the public credential exchange endpoint.
func (h *Handler) RegisterAuth(r chi.Router) {
	r.Post("/auth/token", h.HandleIssueToken)
}

// HandleCreate handles POST /tenants requests. The response carries the
// cleartext API key; it is never retrievable again.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := shared.Decode[createTenantRequest](w, r)
	if !ok {
		return
	}

	t, apiKey, err := h.service.Create(ctx, req.Name)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tenant created",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", t.ID,
		"name", t.Name,
	)
	shared.WriteJSON(w, http.StatusCreated, createdResponse{
		tenantResponse: fromTenant(t),
		APIKey:         apiKey,
	})
}

// HandleList handles GET /tenants requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"tenants": fromTenants(tenants)})
}

// HandleGet handles GET /tenants/{tenantID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	t, err := h.service.Get(r.Context(), tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromTenant(t))
}

// HandleDeactivate handles POST /tenants/{tenantID}/deactivate requests.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Deactivate, "tenant deactivated")
}

// HandleReactivate handles POST /tenants/{tenantID}/reactivate requests.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Reactivate, "tenant reactivated")
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request,
	transition func(context.Context, id.TenantID) (*tenant.Tenant, error), msg string) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	t, err := transition(ctx, tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", t.ID,
	)
	shared.WriteJSON(w, http.StatusOK, fromTenant(t))
}

// HandleRotateAPIKey handles POST /tenants/{tenantID}/api-key requests.
func (h *Handler) HandleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	apiKey, err := h.service.RotateAPIKey(ctx, tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tenant api key rotated",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
	)
	shared.WriteJSON(w, http.StatusOK, map[string]string{"api_key": apiKey})
}

// HandleIssueToken handles POST /auth/token requests: exchanges a tenant
// API key for a short-lived access token.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := shared.Decode[tokenRequest](w, r)
	if !ok {
		return
	}

	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	t, err := h.service.VerifyAPIKey(ctx, tenantID, req.APIKey)
	if err != nil {
		h.logger.WarnContext(ctx, "credential exchange rejected",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
		)
		shared.WriteError(w, err)
		return
	}

	token, err := h.issuer.GenerateAccessToken(t.ID, req.Subject, tokenTTL)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(tokenTTL.Seconds()),
	})
}
