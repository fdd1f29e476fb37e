package handler

import (
	"time"

	"complyd/internal/audit"
	"complyd/internal/webhook"
	dErrors "complyd/pkg/domain-errors"
)

type createConfigRequest struct {
	TargetURL  string   `json:"target_url"`
	Secret     string   `json:"secret"`
	EventTypes []string `json:"event_types"`
}

func (r *createConfigRequest) Validate() error {
	if r.TargetURL == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "target_url is required")
	}
	if r.Secret == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "secret is required")
	}
	if len(r.EventTypes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "event_types is required")
	}
	return nil
}

func (r *createConfigRequest) parsedEventTypes() []audit.EventType {
	types := make([]audit.EventType, 0, len(r.EventTypes))
	for _, et := range r.EventTypes {
		types = append(types, audit.EventType(et))
	}
	return types
}

type configResponse struct {
	ID         string    `json:"id"`
	TargetURL  string    `json:"target_url"`
	EventTypes []string  `json:"event_types"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func fromConfig(c *webhook.Config) configResponse {
	types := make([]string, 0, len(c.EventTypes))
	for _, et := range c.EventTypes {
		types = append(types, string(et))
	}
	return configResponse{
		ID:         c.ID.String(),
		TargetURL:  c.TargetURL,
		EventTypes: types,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromConfigs(configs []*webhook.Config) []configResponse {
	out := make([]configResponse, 0, len(configs))
	for _, c := range configs {
		out = append(out, fromConfig(c))
	}
	return out
}

type deliveryResponse struct {
	ID            string     `json:"id"`
	ConfigID      string     `json:"config_id"`
	EventKey      string     `json:"event_key"`
	EventType     string     `json:"event_type"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

func fromDelivery(d *webhook.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:            d.ID.String(),
		ConfigID:      d.ConfigID.String(),
		EventKey:      d.EventKey,
		EventType:     string(d.EventType),
		Status:        string(d.Status),
		AttemptCount:  d.AttemptCount,
		NextAttemptAt: d.NextAttemptAt,
		LastError:     d.LastError,
		CreatedAt:     d.CreatedAt,
		DeliveredAt:   d.DeliveredAt,
	}
}

func fromDeliveries(deliveries []*webhook.Delivery) []deliveryResponse {
	out := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, fromDelivery(d))
	}
	return out
}
