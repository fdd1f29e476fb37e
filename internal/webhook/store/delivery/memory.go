// Package delivery provides the persistence implementations for webhook
// deliveries.
package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"complyd/internal/webhook"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

// Memory is an in-memory delivery store for tests and local development.
// It enforces the same uniqueness and compare-and-swap semantics as the
// Postgres store.
type Memory struct {
	mu         sync.RWMutex
	deliveries map[id.DeliveryID]*webhook.Delivery
}

func NewMemory() *Memory {
	return &Memory{deliveries: make(map[id.DeliveryID]*webhook.Delivery)}
}

func (m *Memory) Insert(_ context.Context, d *webhook.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.deliveries {
		if existing.ConfigID == d.ConfigID && existing.EventKey == d.EventKey {
			return sentinel.ErrConflict
		}
	}
	m.deliveries[d.ID] = copyDelivery(d)
	return nil
}

func (m *Memory) FindByID(_ context.Context, tenantID id.TenantID, deliveryID id.DeliveryID) (*webhook.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deliveries[deliveryID]
	if !ok || d.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return copyDelivery(d), nil
}

func (m *Memory) ListByTenant(_ context.Context, tenantID id.TenantID, status webhook.DeliveryStatus, limit int) ([]*webhook.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*webhook.Delivery
	for _, d := range m.deliveries {
		if d.TenantID != tenantID {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, copyDelivery(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListDue(_ context.Context, now time.Time, limit int) ([]*webhook.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*webhook.Delivery
	for _, d := range m.deliveries {
		if d.Status.Terminal() {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, copyDelivery(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) RecordAttempt(_ context.Context, d *webhook.Delivery, update webhook.AttemptUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.deliveries[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != d.Status || stored.AttemptCount != d.AttemptCount {
		return sentinel.ErrInvalidState
	}

	stored.Status = update.Status
	stored.AttemptCount = update.AttemptCount
	stored.NextAttemptAt = update.NextAttemptAt
	stored.LastError = update.LastError
	stored.DeliveredAt = update.DeliveredAt
	return nil
}

func copyDelivery(d *webhook.Delivery) *webhook.Delivery {
	cp := *d
	cp.Payload = append([]byte(nil), d.Payload...)
	if d.DeliveredAt != nil {
		t := *d.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}
