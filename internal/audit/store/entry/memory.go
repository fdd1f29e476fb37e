// Package entry provides the persistence implementations for audit entries.
package entry

import (
	"context"
	"sort"
	"sync"

	"complyd/internal/audit"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Memory is an in-memory audit entry store for tests and local development.
// It enforces the same (tenant, sequence) uniqueness as the Postgres store.
type Memory struct {
	mu     sync.RWMutex
	chains map[id.TenantID][]*audit.Entry
}

func NewMemory() *Memory {
	return &Memory{chains: make(map[id.TenantID][]*audit.Entry)}
}

func (m *Memory) Insert(_ context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.chains[entry.TenantID]
	for _, existing := range chain {
		if existing.Sequence == entry.Sequence {
			return sentinel.ErrConflict
		}
	}

	cp := *entry
	m.chains[entry.TenantID] = append(chain, &cp)
	return nil
}

func (m *Memory) Latest(_ context.Context, tenantID id.TenantID) (*audit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.chains[tenantID]
	if len(chain) == 0 {
		return nil, sentinel.ErrNotFound
	}
	head := chain[0]
	for _, e := range chain[1:] {
		if e.Sequence > head.Sequence {
			head = e
		}
	}
	cp := *head
	return &cp, nil
}

func (m *Memory) List(_ context.Context, tenantID id.TenantID, filter audit.ListFilter) ([]*audit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.chains[tenantID]
	matched := make([]*audit.Entry, 0, len(chain))
	for _, e := range chain {
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Sequence < matched[j].Sequence })

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*audit.Entry{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *Memory) Count(_ context.Context, tenantID id.TenantID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.chains[tenantID])), nil
}
