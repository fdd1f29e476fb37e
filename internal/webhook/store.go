package webhook

import (
	"context"
	"time"

	id "complyd/pkg/domain"
)

// ConfigStore persists webhook endpoint configurations.
type ConfigStore interface {
	Create(ctx context.Context, config *Config) error

	// FindByID returns a tenant's config or sentinel.ErrNotFound.
	FindByID(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*Config, error)

	// ListByTenant returns all of a tenant's configs, newest first.
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*Config, error)

	// ListActiveByTenant returns the tenant's active configs for fan-out.
	ListActiveByTenant(ctx context.Context, tenantID id.TenantID) ([]*Config, error)

	// Deactivate flips an active config to inactive. Returns
	// sentinel.ErrNotFound for an unknown config and
	// sentinel.ErrInvalidState when it is already inactive.
	Deactivate(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID, now time.Time) (*Config, error)
}

// AttemptUpdate is the state transition recorded after one delivery
// attempt.
type AttemptUpdate struct {
	Status        DeliveryStatus
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	DeliveredAt   *time.Time
}

// DeliveryStore persists deliveries and arbitrates concurrent attempts via
// compare-and-swap on (status, attempt_count).
type DeliveryStore interface {
	// Insert creates a delivery. Returns sentinel.ErrConflict when a
	// delivery already exists for the same (config, event key).
	Insert(ctx context.Context, delivery *Delivery) error

	// FindByID returns a tenant's delivery or sentinel.ErrNotFound.
	FindByID(ctx context.Context, tenantID id.TenantID, deliveryID id.DeliveryID) (*Delivery, error)

	// ListByTenant returns a tenant's deliveries, newest first, optionally
	// narrowed by status.
	ListByTenant(ctx context.Context, tenantID id.TenantID, status DeliveryStatus, limit int) ([]*Delivery, error)

	// ListDue returns deliveries across all tenants that are eligible for
	// an attempt at the given time, oldest due first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// RecordAttempt applies the update iff the stored row still has the
	// delivery's status and attempt count. A lost race returns
	// sentinel.ErrInvalidState and the row is left untouched.
	RecordAttempt(ctx context.Context, delivery *Delivery, update AttemptUpdate) error
}
