// Package handler exposes webhook configuration and delivery inspection
// over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"complyd/internal/audit"
	"complyd/internal/transport/http/shared"
	"complyd/internal/webhook"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

// Service defines the webhook operations the handler depends on.
type Service interface {
	CreateConfig(ctx context.Context, tenantID id.TenantID, targetURL, secret string, eventTypes []audit.EventType) (*webhook.Config, error)
	GetConfig(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*webhook.Config, error)
	ListConfigs(ctx context.Context, tenantID id.TenantID) ([]*webhook.Config, error)
	DeactivateConfig(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*webhook.Config, error)
	GetDelivery(ctx context.Context, tenantID id.TenantID, deliveryID id.DeliveryID) (*webhook.Delivery, error)
	ListDeliveries(ctx context.Context, tenantID id.TenantID, status webhook.DeliveryStatus, limit int) ([]*webhook.Delivery, error)
}

// Handler wires webhook endpoints to the webhook service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a webhook handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts webhook endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/configs", h.HandleCreateConfig)
	r.Get("/webhooks/configs", h.HandleListConfigs)
	r.Get("/webhooks/configs/{configID}", h.HandleGetConfig)
	r.Delete("/webhooks/configs/{configID}", h.HandleDeactivateConfig)
	r.Get("/webhooks/deliveries", h.HandleListDeliveries)
	r.Get("/webhooks/deliveries/{deliveryID}", h.HandleGetDelivery)
}

// HandleCreateConfig handles POST /webhooks/configs requests.
func (h *Handler) HandleCreateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}

	req, ok := shared.Decode[createConfigRequest](w, r)
	if !ok {
		return
	}

	config, err := h.service.CreateConfig(ctx, tenantID, req.TargetURL, req.Secret, req.parsedEventTypes())
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "webhook config created",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"config_id", config.ID,
		"target_url", config.TargetURL,
	)
	shared.WriteJSON(w, http.StatusCreated, fromConfig(config))
}

// HandleListConfigs handles GET /webhooks/configs requests.
func (h *Handler) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}

	configs, err := h.service.ListConfigs(ctx, tenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"configs": fromConfigs(configs)})
}

// HandleGetConfig handles GET /webhooks/configs/{configID} requests.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}
	configID, err := id.ParseWebhookConfigID(chi.URLParam(r, "configID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	config, err := h.service.GetConfig(ctx, tenantID, configID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromConfig(config))
}

// HandleDeactivateConfig handles DELETE /webhooks/configs/{configID}
// requests. Configs are deactivated, never deleted, so delivery history
// stays auditable.
func (h *Handler) HandleDeactivateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}
	configID, err := id.ParseWebhookConfigID(chi.URLParam(r, "configID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	config, err := h.service.DeactivateConfig(ctx, tenantID, configID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "webhook config deactivated",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"config_id", config.ID,
	)
	shared.WriteJSON(w, http.StatusOK, fromConfig(config))
}

// HandleListDeliveries handles GET /webhooks/deliveries requests.
func (h *Handler) HandleListDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}

	q := r.URL.Query()
	status := webhook.DeliveryStatus(q.Get("status"))
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	deliveries, err := h.service.ListDeliveries(ctx, tenantID, status, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"deliveries": fromDeliveries(deliveries)})
}

// HandleGetDelivery handles GET /webhooks/deliveries/{deliveryID} requests.
func (h *Handler) HandleGetDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := requireTenant(w, ctx)
	if !ok {
		return
	}
	deliveryID, err := id.ParseDeliveryID(chi.URLParam(r, "deliveryID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	delivery, err := h.service.GetDelivery(ctx, tenantID, deliveryID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, fromDelivery(delivery))
}

func requireTenant(w http.ResponseWriter, ctx context.Context) (id.TenantID, bool) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.TenantID{}, false
	}
	return tenantID, true
}
