package tenant

import (
	"context"

	id "complyd/pkg/domain"
)

// Store persists tenants. Implementations return sentinel errors:
// ErrAlreadyUsed when the name key is taken, ErrNotFound when a tenant does
// not exist.
type Store interface {
	// Create inserts the tenant iff its name key is available.
	Create(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*Tenant, error)
	// FindByName resolves a tenant by name, case-insensitively.
	FindByName(ctx context.Context, name string) (*Tenant, error)
	// Update persists status and credential changes.
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}
