// Package webhook implements signed, retried delivery of event
// notifications to tenant-configured HTTP endpoints.
//
// Enqueue and dispatch are decoupled: enqueueing freezes the signed payload
// bytes into a pending delivery row, and a periodic dispatcher attempts
// deliveries whose next_attempt_at has passed. A delivery is terminal once
// it succeeds or exhausts the attempt budget.
package webhook

import (
	"net/url"
	"time"

	"complyd/internal/audit"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	platformstrings "complyd/pkg/platform/strings"
)

// Config is a tenant-scoped webhook endpoint subscription.
type Config struct {
	ID         id.WebhookConfigID `json:"id"`
	TenantID   id.TenantID        `json:"tenant_id"`
	TargetURL  string             `json:"target_url"`
	Secret     string             `json:"-"`
	EventTypes []audit.EventType  `json:"event_types"`
	IsActive   bool               `json:"is_active"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

const minSecretLength = 16

// NewConfig validates and constructs an active webhook config.
func NewConfig(tenantID id.TenantID, targetURL, secret string, eventTypes []audit.EventType, now time.Time) (*Config, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if err := validateTargetURL(targetURL); err != nil {
		return nil, err
	}
	if len(secret) < minSecretLength {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "secret must be at least %d characters", minSecretLength)
	}
	normalized := normalizeEventTypes(eventTypes)
	if len(normalized) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one event type is required")
	}
	for _, et := range normalized {
		if !et.Known() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", et)
		}
	}

	return &Config{
		ID:         id.NewWebhookConfigID(),
		TenantID:   tenantID,
		TargetURL:  targetURL,
		Secret:     secret,
		EventTypes: normalized,
		IsActive:   true,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// normalizeEventTypes collapses duplicates and stray whitespace so a config
// subscribing to ["case.resolved", " Case.Resolved "] triggers one delivery
// per event, not two.
func normalizeEventTypes(eventTypes []audit.EventType) []audit.EventType {
	raw := make([]string, len(eventTypes))
	for i, et := range eventTypes {
		raw[i] = string(et)
	}
	deduped := platformstrings.DedupeAndTrimLower(raw)
	normalized := make([]audit.EventType, len(deduped))
	for i, v := range deduped {
		normalized[i] = audit.EventType(v)
	}
	return normalized
}

func validateTargetURL(raw string) error {
	if raw == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "target_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "target_url must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return dErrors.New(dErrors.CodeInvalidInput, "target_url scheme must be http or https")
	}
	return nil
}

// Subscribed reports whether the config wants notifications for the event
// type.
func (c *Config) Subscribed(eventType audit.EventType) bool {
	for _, et := range c.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// DeliveryStatus is the delivery state machine. Transitions are monotone:
// terminal states are never left.
type DeliveryStatus string

const (
	StatusPending         DeliveryStatus = "pending"
	StatusFailedRetrying  DeliveryStatus = "failed_retrying"
	StatusSucceeded       DeliveryStatus = "succeeded"
	StatusFailedPermanent DeliveryStatus = "failed_permanent"
)

// Terminal reports whether no further attempts may happen.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailedPermanent
}

// Delivery is one notification owed to one config for one originating
// event. Payload holds the exact bytes that were signed at enqueue time;
// retries resend them unchanged so receivers can verify the signature
// against the body they got.
type Delivery struct {
	ID            id.DeliveryID      `json:"id"`
	ConfigID      id.WebhookConfigID `json:"config_id"`
	TenantID      id.TenantID        `json:"tenant_id"`
	EventKey      string             `json:"event_key"`
	EventType     audit.EventType    `json:"event_type"`
	Payload       []byte             `json:"-"`
	Status        DeliveryStatus     `json:"status"`
	AttemptCount  int                `json:"attempt_count"`
	NextAttemptAt time.Time          `json:"next_attempt_at"`
	LastError     string             `json:"last_error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	DeliveredAt   *time.Time         `json:"delivered_at,omitempty"`
}

// NewDelivery constructs a pending delivery, due immediately.
func NewDelivery(config *Config, eventKey string, eventType audit.EventType, payload []byte, now time.Time) *Delivery {
	return &Delivery{
		ID:            id.NewDeliveryID(),
		ConfigID:      config.ID,
		TenantID:      config.TenantID,
		EventKey:      eventKey,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		NextAttemptAt: now.UTC(),
		CreatedAt:     now.UTC(),
	}
}

// Backoff is an ordered delay table indexed by attempt count. Attempts past
// the table's end reuse the last entry.
type Backoff []time.Duration

// DefaultBackoff spaces retries out from seconds to hours. With the default
// attempt budget of 5 a delivery lives roughly a day before going terminal.
var DefaultBackoff = Backoff{30 * time.Second, 5 * time.Minute, 30 * time.Minute, 2 * time.Hour, 12 * time.Hour}

// Delay returns the wait before the next attempt, given how many attempts
// have already happened.
func (b Backoff) Delay(attemptCount int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b) {
		idx = len(b) - 1
	}
	return b[idx]
}
