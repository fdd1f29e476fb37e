package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"complyd/internal/audit"
	webhookmetrics "complyd/internal/webhook/metrics"
	"complyd/pkg/canonical"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/requestcontext"
)

// DefaultMaxAttempts bounds the retry budget per delivery.
const DefaultMaxAttempts = 5

// Recorder appends config lifecycle events to the audit chain.
type Recorder interface {
	Append(ctx context.Context, tenantID id.TenantID, payload audit.Payload) (*audit.Entry, error)
}

// TenantGate reports whether a tenant is active. Deliveries for suspended
// tenants are deferred, not attempted.
type TenantGate interface {
	Active(ctx context.Context, tenantID id.TenantID) (bool, error)
}

// Service orchestrates webhook configuration, event fan-out and delivery
// attempts.
type Service struct {
	configs     ConfigStore
	deliveries  DeliveryStore
	sender      Sender
	maxAttempts int
	backoff     Backoff
	logger      *slog.Logger
	metrics     *webhookmetrics.Metrics
	recorder    Recorder
	gate        TenantGate
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *webhookmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithTenantGate(g TenantGate) Option {
	return func(s *Service) {
		s.gate = g
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(s *Service) {
		if len(b) > 0 {
			s.backoff = b
		}
	}
}

// NewService constructs a Service.
func NewService(configs ConfigStore, deliveries DeliveryStore, sender Sender, opts ...Option) *Service {
	s := &Service{
		configs:     configs,
		deliveries:  deliveries,
		sender:      sender,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		tracer:      otel.Tracer("complyd/webhook"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConfig validates and stores a new endpoint subscription, recording
// the change in the tenant's audit chain.
func (s *Service) CreateConfig(ctx context.Context, tenantID id.TenantID, targetURL, secret string, eventTypes []audit.EventType) (*Config, error) {
	config, err := NewConfig(tenantID, targetURL, secret, eventTypes, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.configs.Create(ctx, config); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create webhook config")
	}

	s.record(ctx, tenantID, audit.WebhookConfigChanged{
		Event:     audit.EventWebhookConfigCreated,
		ConfigID:  config.ID.String(),
		TargetURL: config.TargetURL,
	})
	return config, nil
}

// GetConfig returns a tenant's config.
func (s *Service) GetConfig(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*Config, error) {
	config, err := s.configs.FindByID(ctx, tenantID, configID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "webhook config not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load webhook config")
	}
	return config, nil
}

// ListConfigs returns all of a tenant's configs.
func (s *Service) ListConfigs(ctx context.Context, tenantID id.TenantID) ([]*Config, error) {
	configs, err := s.configs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list webhook configs")
	}
	return configs, nil
}

// DeactivateConfig stops fan-out to an endpoint. Pending deliveries for it
// are abandoned at their next attempt.
func (s *Service) DeactivateConfig(ctx context.Context, tenantID id.TenantID, configID id.WebhookConfigID) (*Config, error) {
	config, err := s.configs.Deactivate(ctx, tenantID, configID, requestcontext.Now(ctx))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "webhook config not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeConflict, "webhook config is already inactive")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate webhook config")
		}
	}

	s.record(ctx, tenantID, audit.WebhookConfigChanged{
		Event:    audit.EventWebhookConfigDeactivated,
		ConfigID: config.ID.String(),
	})
	return config, nil
}

// Enqueue creates one pending delivery per active config subscribed to the
// event type. The canonical payload bytes are frozen into each delivery so
// every retry signs and sends the exact same body. Enqueueing the same
// event key twice is a no-op for configs that already have a delivery.
func (s *Service) Enqueue(ctx context.Context, tenantID id.TenantID, eventType audit.EventType, eventKey string, payload []byte) ([]*Delivery, error) {
	ctx, span := s.tracer.Start(ctx, "webhook.Enqueue",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID.String()),
			attribute.String("event_type", string(eventType)),
		))
	defer span.End()

	if eventKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event key is required")
	}
	frozen, err := canonical.Normalize(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "payload is not valid JSON")
	}

	configs, err := s.configs.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list webhook configs")
	}

	now := requestcontext.Now(ctx)
	var created []*Delivery
	for _, config := range configs {
		if !config.Subscribed(eventType) {
			continue
		}
		delivery := NewDelivery(config, eventKey, eventType, frozen, now)
		if err := s.deliveries.Insert(ctx, delivery); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.incrementEnqueueDuplicate()
				continue
			}
			return created, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue delivery")
		}
		s.incrementEnqueued()
		created = append(created, delivery)
	}
	return created, nil
}

// AttemptDelivery sends one attempt and advances the delivery state
// machine. Terminal deliveries are untouched. When a concurrent attempt
// already advanced the row, this attempt's result is discarded and the
// stored state wins.
func (s *Service) AttemptDelivery(ctx context.Context, delivery *Delivery) (DeliveryStatus, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "webhook.AttemptDelivery",
		trace.WithAttributes(
			attribute.String("delivery_id", delivery.ID.String()),
			attribute.Int("attempt", delivery.AttemptCount+1),
		))
	defer span.End()

	if delivery.Status.Terminal() {
		return delivery.Status, nil
	}

	if s.gate != nil {
		active, err := s.gate.Active(ctx, delivery.TenantID)
		if err != nil {
			return delivery.Status, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check tenant status")
		}
		if !active {
			// Deferred, not failed: the delivery stays due and resumes when
			// the tenant is reactivated.
			s.log(ctx, slog.LevelDebug, "delivery deferred, tenant suspended",
				"delivery_id", delivery.ID, "tenant_id", delivery.TenantID)
			return delivery.Status, nil
		}
	}

	config, err := s.configs.FindByID(ctx, delivery.TenantID, delivery.ConfigID)
	if err != nil {
		return delivery.Status, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load config for delivery")
	}

	now := requestcontext.Now(ctx)
	if !config.IsActive {
		// Abandon instead of retrying into a dead endpoint.
		update := AttemptUpdate{
			Status:        StatusFailedPermanent,
			AttemptCount:  delivery.AttemptCount,
			NextAttemptAt: delivery.NextAttemptAt,
			LastError:     "webhook config deactivated",
		}
		return s.applyUpdate(ctx, delivery, update, "abandoned")
	}

	result := s.sender.Send(ctx, config, delivery, now)
	s.observeAttempt(start)

	attempts := delivery.AttemptCount + 1
	var update AttemptUpdate
	if result.Failed() {
		update = AttemptUpdate{
			Status:        StatusFailedRetrying,
			AttemptCount:  attempts,
			NextAttemptAt: now.Add(s.backoff.Delay(attempts)),
			LastError:     result.Error(),
		}
		if attempts >= s.maxAttempts {
			update.Status = StatusFailedPermanent
			update.NextAttemptAt = delivery.NextAttemptAt
		}
	} else {
		deliveredAt := now.UTC()
		update = AttemptUpdate{
			Status:        StatusSucceeded,
			AttemptCount:  attempts,
			NextAttemptAt: delivery.NextAttemptAt,
			DeliveredAt:   &deliveredAt,
		}
	}
	return s.applyUpdate(ctx, delivery, update, string(result.Outcome))
}

func (s *Service) applyUpdate(ctx context.Context, delivery *Delivery, update AttemptUpdate, outcome string) (DeliveryStatus, error) {
	err := s.deliveries.RecordAttempt(ctx, delivery, update)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.incrementAttempt("lost_race")
			s.log(ctx, slog.LevelDebug, "delivery attempt lost the status race",
				"delivery_id", delivery.ID, "status", delivery.Status)
			stored, findErr := s.deliveries.FindByID(ctx, delivery.TenantID, delivery.ID)
			if findErr != nil {
				return delivery.Status, nil
			}
			*delivery = *stored
			return stored.Status, nil
		}
		return delivery.Status, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record delivery attempt")
	}

	delivery.Status = update.Status
	delivery.AttemptCount = update.AttemptCount
	delivery.NextAttemptAt = update.NextAttemptAt
	delivery.LastError = update.LastError
	delivery.DeliveredAt = update.DeliveredAt

	s.incrementAttempt(outcome)
	if update.Status.Terminal() {
		s.incrementTerminal(update.Status)
		if update.Status == StatusFailedPermanent {
			s.log(ctx, slog.LevelWarn, "delivery exhausted its attempt budget",
				"delivery_id", delivery.ID,
				"config_id", delivery.ConfigID,
				"tenant_id", delivery.TenantID,
				"attempts", update.AttemptCount,
				"last_error", update.LastError,
			)
		}
	}
	return update.Status, nil
}

// GetDelivery returns a tenant's delivery.
func (s *Service) GetDelivery(ctx context.Context, tenantID id.TenantID, deliveryID id.DeliveryID) (*Delivery, error) {
	delivery, err := s.deliveries.FindByID(ctx, tenantID, deliveryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delivery not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delivery")
	}
	return delivery, nil
}

// ListDeliveries returns a tenant's deliveries, optionally filtered by
// status.
func (s *Service) ListDeliveries(ctx context.Context, tenantID id.TenantID, status DeliveryStatus, limit int) ([]*Delivery, error) {
	if status != "" {
		switch status {
		case StatusPending, StatusFailedRetrying, StatusSucceeded, StatusFailedPermanent:
		default:
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown delivery status %q", status)
		}
	}
	deliveries, err := s.deliveries.ListByTenant(ctx, tenantID, status, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deliveries")
	}
	return deliveries, nil
}

// ListDue returns deliveries eligible for an attempt. Used by the
// dispatcher.
func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]*Delivery, error) {
	deliveries, err := s.deliveries.ListDue(ctx, now, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list due deliveries")
	}
	return deliveries, nil
}

func (s *Service) record(ctx context.Context, tenantID id.TenantID, payload audit.Payload) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Append(ctx, tenantID, payload); err != nil {
		// A failed audit append on config changes is a compliance gap worth
		// alerting on, but it does not roll back the change.
		s.log(ctx, slog.LevelWarn, "failed to record config change in audit chain",
			"tenant_id", tenantID, "event_type", payload.EventType(), "error", err)
	}
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, args...)
	}
}

func (s *Service) incrementEnqueued() {
	if s.metrics != nil {
		s.metrics.IncrementEnqueued()
	}
}

func (s *Service) incrementEnqueueDuplicate() {
	if s.metrics != nil {
		s.metrics.IncrementEnqueueDuplicate()
	}
}

func (s *Service) incrementAttempt(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementAttempt(outcome)
	}
}

func (s *Service) incrementTerminal(status DeliveryStatus) {
	if s.metrics != nil {
		s.metrics.IncrementTerminal(string(status))
	}
}

func (s *Service) observeAttempt(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAttempt(start)
	}
}
