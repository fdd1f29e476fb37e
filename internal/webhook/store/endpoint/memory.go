// Package endpoint provides the persistence implementations for webhook
// endpoint configurations.
package endpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"complyd/internal/audit"
	"complyd/internal/webhook"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Memory is an in-memory config store for tests and local development.
type Memory struct {
	mu      sync.RWMutex
	configs map[id.WebhookConfigID]*webhook.Config
}

func NewMemory() *Memory {
	return &Memory{configs: make(map[id.WebhookConfigID]*webhook.Config)}
}

func (m *Memory) Create(_ context.Context, config *webhook.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[config.ID] = copyConfig(config)
	return nil
}

func (m *Memory) FindByID(_ context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*webhook.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	config, ok := m.configs[configID]
	if !ok || config.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return copyConfig(config), nil
}

func (m *Memory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*webhook.Config, error) {
	return m.list(tenantID, false), nil
}

func (m *Memory) ListActiveByTenant(_ context.Context, tenantID id.TenantID) ([]*webhook.Config, error) {
	return m.list(tenantID, true), nil
}

func (m *Memory) list(tenantID id.TenantID, activeOnly bool) []*webhook.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*webhook.Config
	for _, config := range m.configs {
		if config.TenantID != tenantID {
			continue
		}
		if activeOnly && !config.IsActive {
			continue
		}
		out = append(out, copyConfig(config))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) Deactivate(_ context.Context, tenantID id.TenantID, configID id.WebhookConfigID, now time.Time) (*webhook.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, ok := m.configs[configID]
	if !ok || config.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	if !config.IsActive {
		return nil, sentinel.ErrInvalidState
	}
	config.IsActive = false
	config.UpdatedAt = now.UTC()
	return copyConfig(config), nil
}

func copyConfig(c *webhook.Config) *webhook.Config {
	cp := *c
	cp.EventTypes = append([]audit.EventType(nil), c.EventTypes...)
	return &cp
}
