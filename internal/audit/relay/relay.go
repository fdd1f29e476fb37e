// Package relay streams appended audit entries to Kafka so downstream
// compliance tooling (SIEM export, archival) can consume them without
// touching the primary database.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"complyd/internal/audit"
	auditmetrics "complyd/internal/audit/metrics"
)

// Producer publishes one keyed record to the audit topic. Records sharing a
// key land on the same partition, preserving per-tenant ordering.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Relay buffers appended entries and publishes them asynchronously. Publish
// never blocks the append path; when the buffer is full the entry is dropped
// and counted, since the database remains the source of truth.
type Relay struct {
	producer Producer
	inbox    chan *audit.Entry
	logger   *slog.Logger
	metrics  *auditmetrics.Metrics
}

func New(producer Producer, buffer int, logger *slog.Logger, metrics *auditmetrics.Metrics) *Relay {
	if buffer <= 0 {
		buffer = 256
	}
	return &Relay{
		producer: producer,
		inbox:    make(chan *audit.Entry, buffer),
		logger:   logger,
		metrics:  metrics,
	}
}

// Publish hands an entry to the background worker.
func (r *Relay) Publish(entry *audit.Entry) {
	select {
	case r.inbox <- entry:
	default:
		if r.metrics != nil {
			r.metrics.IncrementRelayDropped()
		}
		r.logger.Warn("audit relay buffer full, dropping entry",
			"tenant_id", entry.TenantID, "sequence", entry.Sequence)
	}
}

// Run drains the inbox until the context is cancelled. Remaining buffered
// entries are flushed before returning.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case entry := <-r.inbox:
			r.produce(ctx, entry)
		}
	}
}

func (r *Relay) drain() {
	for {
		select {
		case entry := <-r.inbox:
			r.produce(context.Background(), entry)
		default:
			return
		}
	}
}

func (r *Relay) produce(ctx context.Context, entry *audit.Entry) {
	value, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("audit relay failed to encode entry",
			"tenant_id", entry.TenantID, "sequence", entry.Sequence, "error", err)
		return
	}
	if err := r.producer.Produce(ctx, []byte(entry.TenantID.String()), value); err != nil {
		if r.metrics != nil {
			r.metrics.IncrementRelayPublishFail()
		}
		r.logger.Error("audit relay failed to publish entry",
			"tenant_id", entry.TenantID, "sequence", entry.Sequence, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.IncrementRelayPublished()
	}
}
