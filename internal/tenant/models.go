// Package tenant manages tenant organizations: lifecycle, case-insensitive
// name uniqueness and API credential issuance. Tenant status is the single
// security boundary; a deactivated tenant cannot obtain tokens, record
// events or receive webhook deliveries, without cascading status changes to
// its other records.
package tenant

import (
	"strings"
	"time"

	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
)

// Status is the tenant lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

const maxNameLength = 128

// Tenant is the aggregate root for a tenant organization.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Status transitions: active <-> inactive only
//   - CreatedAt is immutable after construction
type Tenant struct {
	ID         id.TenantID `json:"id"`
	Name       string      `json:"name"`
	Status     Status      `json:"status"`
	APIKeyHash string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewTenant constructs an active tenant, validating invariants.
func NewTenant(tenantID id.TenantID, name string, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant name cannot be empty")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Deactivate transitions the tenant to inactive.
func (t *Tenant) Deactivate(now time.Time) error {
	if t.Status == StatusInactive {
		return dErrors.New(dErrors.CodeConflict, "tenant is already inactive")
	}
	t.Status = StatusInactive
	t.UpdatedAt = now
	return nil
}

// Reactivate transitions the tenant back to active.
func (t *Tenant) Reactivate(now time.Time) error {
	if t.Status == StatusActive {
		return dErrors.New(dErrors.CodeConflict, "tenant is already active")
	}
	t.Status = StatusActive
	t.UpdatedAt = now
	return nil
}

// NameKey is the case-insensitive uniqueness key for a tenant name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
