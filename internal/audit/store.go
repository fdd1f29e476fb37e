package audit

import (
	"context"

	id "complyd/pkg/domain"
)

// ListFilter narrows a chain listing. Zero value lists the whole chain in
// sequence order.
type ListFilter struct {
	EventType EventType
	Offset    int
	Limit     int
}

// Store persists audit entries. Implementations must enforce uniqueness of
// (tenant_id, sequence) and return sentinel.ErrConflict when a concurrent
// append already claimed the sequence.
type Store interface {
	// Insert appends an entry. Returns sentinel.ErrConflict when the
	// tenant's sequence is already taken.
	Insert(ctx context.Context, entry *Entry) error

	// Latest returns the highest-sequence entry for the tenant, or
	// sentinel.ErrNotFound when the chain is empty.
	Latest(ctx context.Context, tenantID id.TenantID) (*Entry, error)

	// List returns the tenant's entries in ascending sequence order,
	// narrowed by the filter.
	List(ctx context.Context, tenantID id.TenantID, filter ListFilter) ([]*Entry, error)

	// Count returns the tenant's chain length.
	Count(ctx context.Context, tenantID id.TenantID) (int64, error)
}
