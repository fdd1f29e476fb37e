package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	auditmetrics "complyd/internal/audit/metrics"
	"complyd/pkg/canonical"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/requestcontext"
)

// appendAttempts bounds the optimistic retry loop when concurrent appends
// race for the same sequence number.
const appendAttempts = 3

// Relay receives successfully appended entries for asynchronous fan-out to
// the event stream. Publish must never block the append path.
type Relay interface {
	Publish(entry *Entry)
}

// Service orchestrates appends, listings and verification of tenant chains.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
	relay   Relay
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRelay(r Relay) Option {
	return func(s *Service) {
		s.relay = r
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tracer: otel.Tracer("complyd/audit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append validates the payload, canonicalizes it and appends the next chain
// link for the tenant. Concurrent appends race for the sequence number; the
// loser re-reads the head and retries up to appendAttempts times.
func (s *Service) Append(ctx context.Context, tenantID id.TenantID, payload Payload) (*Entry, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "audit.Append",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID.String()),
			attribute.String("event_type", string(payload.EventType())),
		))
	defer span.End()

	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	eventType := payload.EventType()
	if !eventType.Known() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", eventType)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	raw, err := canonical.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "payload is not canonicalizable")
	}

	recordedAt := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	for attempt := 0; attempt < appendAttempts; attempt++ {
		prev, err := s.store.Latest(ctx, tenantID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read chain head")
		}

		entry := NewEntry(tenantID, eventType, raw, actor, recordedAt, prev)
		err = s.store.Insert(ctx, entry)
		if err == nil {
			s.observeAppend(start, eventType)
			s.publish(entry)
			return entry, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementAppendConflict()
			s.log(ctx, slog.LevelDebug, "audit append lost sequence race, retrying",
				"tenant_id", tenantID, "sequence", entry.Sequence, "attempt", attempt+1)
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert audit entry")
	}

	return nil, dErrors.New(dErrors.CodeConflict, "audit chain is under heavy contention, retry the request")
}

// AppendRaw decodes raw JSON into the typed payload for the event type and
// appends it. This is the external intake path.
func (s *Service) AppendRaw(ctx context.Context, tenantID id.TenantID, eventType EventType, raw []byte) (*Entry, error) {
	payload, err := DecodePayload(eventType, raw)
	if err != nil {
		return nil, err
	}
	return s.Append(ctx, tenantID, payload)
}

// List returns the tenant's entries in ascending sequence order.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, filter ListFilter) ([]*Entry, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if filter.EventType != "" && !filter.EventType.Known() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", filter.EventType)
	}
	entries, err := s.store.List(ctx, tenantID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}

// Verify walks the tenant's full chain from genesis and reports the first
// divergence, if any. A broken chain is a result, not an error; the error
// return covers storage failures only.
func (s *Service) Verify(ctx context.Context, tenantID id.TenantID) (VerificationResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "audit.Verify",
		trace.WithAttributes(attribute.String("tenant_id", tenantID.String())))
	defer span.End()

	if tenantID.IsNil() {
		return VerificationResult{}, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}

	entries, err := s.store.List(ctx, tenantID, ListFilter{})
	if err != nil {
		return VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load chain")
	}

	result := VerifyChain(entries)
	s.observeVerify(start, result)
	if !result.Valid {
		s.log(ctx, slog.LevelWarn, "audit chain verification failed",
			"tenant_id", tenantID, "tampered_at", result.TamperedAt, "reason", result.Reason)
	}
	return result, nil
}

// VerifyChain checks a full chain, already sorted by ascending sequence.
// Verification stops at the first divergent link; everything after it is
// unverifiable by definition.
func VerifyChain(entries []*Entry) VerificationResult {
	if len(entries) == 0 {
		return validResult(0)
	}

	first := entries[0]
	if first.Sequence != 0 {
		return tamperedResult(len(entries), first.Sequence, ReasonFirstSequenceNotZero)
	}
	if first.PrevChecksum != GenesisChecksum {
		return tamperedResult(len(entries), first.Sequence, ReasonGenesisMismatch)
	}

	prevChecksum := GenesisChecksum
	prevSequence := int64(-1)
	for _, e := range entries {
		if e.Sequence != prevSequence+1 {
			return tamperedResult(len(entries), e.Sequence, ReasonSequenceGap)
		}
		if e.PrevChecksum != prevChecksum {
			return tamperedResult(len(entries), e.Sequence, ReasonPrevChecksumMismatch)
		}
		if ComputeChecksum(e) != e.Checksum {
			return tamperedResult(len(entries), e.Sequence, ReasonChecksumMismatch)
		}
		prevChecksum = e.Checksum
		prevSequence = e.Sequence
	}
	return validResult(len(entries))
}

func (s *Service) publish(entry *Entry) {
	if s.relay != nil {
		s.relay.Publish(entry)
	}
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, args...)
	}
}

func (s *Service) observeAppend(start time.Time, eventType EventType) {
	if s.metrics != nil {
		s.metrics.IncrementAppended(string(eventType))
		s.metrics.ObserveAppend(start)
	}
}

func (s *Service) incrementAppendConflict() {
	if s.metrics != nil {
		s.metrics.IncrementAppendConflict()
	}
}

func (s *Service) observeVerify(start time.Time, result VerificationResult) {
	if s.metrics != nil {
		s.metrics.IncrementVerified(!result.Valid)
		s.metrics.ObserveVerify(start)
	}
}
