// Package handler exposes the read side of the audit chain over HTTP.
// Entries are only created through event intake; this surface lists and
// verifies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"complyd/internal/audit"
	"complyd/internal/transport/http/shared"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

// Service defines the audit operations the handler depends on.
type Service interface {
	List(ctx context.Context, tenantID id.TenantID, filter audit.ListFilter) ([]*audit.Entry, error)
	Verify(ctx context.Context, tenantID id.TenantID) (audit.VerificationResult, error)
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/entries", h.HandleList)
	r.Get("/audit/verify", h.HandleVerify)
}

const maxListLimit = 500

// HandleList handles GET /audit/entries requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.service.List(ctx, tenantID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit list failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, listResponse{
		Entries: fromEntries(entries),
		Count:   len(entries),
	})
}

// HandleVerify handles GET /audit/verify requests. It walks the tenant's
// full chain from genesis, so expect it to take a while on large tenants.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}

	result, err := h.service.Verify(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit chain verified",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"valid", result.Valid,
		"entries", result.Entries,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	shared.WriteJSON(w, http.StatusOK, result)
}

func requireTenant(w http.ResponseWriter, ctx context.Context) (id.TenantID, bool) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.TenantID{}, false
	}
	return tenantID, true
}

func filterFromQuery(r *http.Request) (audit.ListFilter, error) {
	var filter audit.ListFilter

	q := r.URL.Query()
	filter.EventType = audit.EventType(q.Get("event_type"))

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	if filter.Limit == 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return filter, nil
}
