// Package tenant provides tenant store implementations.
package tenant

import (
	"context"
	"sort"
	"sync"

	"complyd/internal/tenant"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Memory is an in-memory Store for tests and single-process setups.
type Memory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*tenant.Tenant
	byName  map[string]id.TenantID
}

func NewMemory() *Memory {
	return &Memory{
		tenants: make(map[id.TenantID]*tenant.Tenant),
		byName:  make(map[string]id.TenantID),
	}
}

func (m *Memory) Create(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenant.NameKey(t.Name)
	if _, taken := m.byName[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	m.tenants[t.ID] = copyTenant(t)
	m.byName[key] = t.ID
	return nil
}

func (m *Memory) FindByID(_ context.Context, tenantID id.TenantID) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyTenant(t), nil
}

func (m *Memory) FindByName(_ context.Context, name string) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenantID, ok := m.byName[tenant.NameKey(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyTenant(m.tenants[tenantID]), nil
}

func (m *Memory) Update(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.tenants[t.ID] = copyTenant(t)
	return nil
}

func (m *Memory) List(_ context.Context) ([]*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]*tenant.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		tenants = append(tenants, copyTenant(t))
	}
	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].CreatedAt.Before(tenants[j].CreatedAt)
	})
	return tenants, nil
}

func copyTenant(t *tenant.Tenant) *tenant.Tenant {
	clone := *t
	return &clone
}
