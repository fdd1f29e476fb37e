// Package handler exposes the compliance event intake endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"complyd/internal/audit"
	"complyd/internal/event"
	"complyd/internal/transport/http/shared"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

// Service defines the intake operation the handler depends on.
type Service interface {
	Record(ctx context.Context, tenantID id.TenantID, eventType audit.EventType, payload json.RawMessage) (*event.Result, error)
}

// Handler wires the intake endpoint to the event service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an event handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the intake endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events", h.HandleRecord)
}

type recordRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func (r *recordRequest) Validate() error {
	if r.EventType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "event_type is required")
	}
	if len(r.Payload) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "payload is required")
	}
	return nil
}

type recordResponse struct {
	EntryID    string `json:"entry_id"`
	Sequence   int64  `json:"sequence"`
	Checksum   string `json:"checksum"`
	Deliveries int    `json:"deliveries_enqueued"`
}

// HandleRecord handles POST /events requests.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := shared.Decode[recordRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.Record(ctx, tenantID, audit.EventType(req.EventType), req.Payload)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "compliance event recorded",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"entry_id", result.Entry.ID,
		"event_type", result.Entry.EventType,
		"sequence", result.Entry.Sequence,
		"deliveries", len(result.Deliveries),
	)
	shared.WriteJSON(w, http.StatusAccepted, recordResponse{
		EntryID:    result.Entry.ID.String(),
		Sequence:   result.Entry.Sequence,
		Checksum:   result.Entry.Checksum,
		Deliveries: len(result.Deliveries),
	})
}
