// Package event is the intake surface for compliance events. Recording an
// event appends it to the tenant's audit chain and fans out webhook
// deliveries to subscribed endpoints. The chain is authoritative: an append
// failure aborts the operation, while a fan-out failure is logged and does
// not roll the entry back.
package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"complyd/internal/audit"
	"complyd/internal/webhook"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
)

// Auditor appends entries to the audit chain.
type Auditor interface {
	AppendRaw(ctx context.Context, tenantID id.TenantID, eventType audit.EventType, raw []byte) (*audit.Entry, error)
}

// Enqueuer fans out webhook deliveries for a recorded event.
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID id.TenantID, eventType audit.EventType, eventKey string, payload []byte) ([]*webhook.Delivery, error)
}

// TenantGate reports whether a tenant may record events.
type TenantGate interface {
	Active(ctx context.Context, tenantID id.TenantID) (bool, error)
}

// Service records compliance events.
type Service struct {
	auditor  Auditor
	enqueuer Enqueuer
	gate     TenantGate
	logger   *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTenantGate(g TenantGate) Option {
	return func(s *Service) {
		s.gate = g
	}
}

// NewService constructs a Service.
func NewService(auditor Auditor, enqueuer Enqueuer, opts ...Option) *Service {
	s := &Service{auditor: auditor, enqueuer: enqueuer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports what one recorded event produced.
type Result struct {
	Entry      *audit.Entry
	Deliveries []*webhook.Delivery
}

// Record appends the event to the audit chain and enqueues deliveries for
// it. The entry's canonical payload and ID seed the deliveries, so a
// receiver can correlate every webhook back to its chain entry.
func (s *Service) Record(ctx context.Context, tenantID id.TenantID, eventType audit.EventType, payload json.RawMessage) (*Result, error) {
	if s.gate != nil {
		active, err := s.gate.Active(ctx, tenantID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check tenant status")
		}
		if !active {
			return nil, dErrors.New(dErrors.CodeForbidden, "tenant is deactivated")
		}
	}

	entry, err := s.auditor.AppendRaw(ctx, tenantID, eventType, payload)
	if err != nil {
		return nil, err
	}

	deliveries, err := s.enqueuer.Enqueue(ctx, tenantID, eventType, entry.ID.String(), entry.Payload)
	if err != nil {
		// The chain entry stands; the dispatcher cannot retry deliveries
		// that were never enqueued, so this needs operator attention.
		s.log(ctx, "event recorded but webhook fan-out failed",
			"tenant_id", tenantID,
			"entry_id", entry.ID,
			"event_type", eventType,
			"error", err,
		)
		return &Result{Entry: entry}, nil
	}
	return &Result{Entry: entry, Deliveries: deliveries}, nil
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
