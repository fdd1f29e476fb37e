// Package dispatcher drives webhook delivery attempts. A cron-scheduled
// sweep picks up due deliveries, claims each one so only a single dispatcher
// instance attempts it, and runs attempts through a bounded worker pool so a
// slow receiver cannot starve other tenants' deliveries.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"complyd/internal/webhook"
	webhookmetrics "complyd/internal/webhook/metrics"
	"complyd/pkg/requestcontext"
)

// Claimer arbitrates delivery ownership across dispatcher instances.
type Claimer interface {
	// Claim acquires the delivery for the TTL. Returns false when another
	// instance holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// Service is the webhook surface the dispatcher drives.
type Service interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*webhook.Delivery, error)
	AttemptDelivery(ctx context.Context, delivery *webhook.Delivery) (webhook.DeliveryStatus, error)
}

// Config tunes the sweep loop.
type Config struct {
	SweepInterval  time.Duration
	SweepBatch     int
	MaxConcurrent  int
	AttemptTimeout time.Duration
	ClaimGrace     time.Duration
}

func (c *Config) applyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Second
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 100
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 16
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.ClaimGrace <= 0 {
		c.ClaimGrace = 5 * time.Second
	}
}

// Dispatcher owns the sweep schedule and the attempt worker pool.
type Dispatcher struct {
	service Service
	claimer Claimer
	config  Config
	logger  *slog.Logger
	metrics *webhookmetrics.Metrics
	clock   func() time.Time
	cron    *cron.Cron
	sem     *semaphore.Weighted
}

type Option func(d *Dispatcher)

func WithMetrics(m *webhookmetrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithClock injects the sweep clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// New constructs a Dispatcher.
func New(service Service, claimer Claimer, config Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	config.applyDefaults()
	d := &Dispatcher{
		service: service,
		claimer: claimer,
		config:  config,
		logger:  logger,
		clock:   time.Now,
		cron:    cron.New(),
		sem:     semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run sweeps on the configured interval until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", d.config.SweepInterval)
	if _, err := d.cron.AddFunc(spec, func() { d.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule delivery sweep: %w", err)
	}
	d.cron.Start()
	d.logger.Info("webhook dispatcher started",
		"sweep_interval", d.config.SweepInterval,
		"max_concurrent", d.config.MaxConcurrent,
	)

	<-ctx.Done()
	// Stop only waits for scheduled sweep invocations; attempts run in pool
	// goroutines. Drain the pool so claimed deliveries record their outcome
	// before we report stopped.
	<-d.cron.Stop().Done()
	_ = d.sem.Acquire(context.Background(), int64(d.config.MaxConcurrent))
	d.logger.Info("webhook dispatcher stopped")
	return ctx.Err()
}

// Sweep attempts every due delivery it can claim. Exported so tests and the
// ops surface can trigger a pass without waiting for the schedule.
func (d *Dispatcher) Sweep(ctx context.Context) {
	now := d.clock()
	due, err := d.service.ListDue(ctx, now, d.config.SweepBatch)
	if err != nil {
		d.logger.ErrorContext(ctx, "delivery sweep failed to list due deliveries", "error", err)
		return
	}
	if d.metrics != nil {
		d.metrics.ObserveSweep(len(due))
	}
	if len(due) == 0 {
		return
	}

	for _, delivery := range due {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(delivery *webhook.Delivery) {
			defer d.sem.Release(1)
			d.attempt(ctx, delivery)
		}(delivery)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, delivery *webhook.Delivery) {
	claimKey := "webhook:claim:" + delivery.ID.String()
	claimTTL := d.config.AttemptTimeout + d.config.ClaimGrace

	claimed, err := d.claimer.Claim(ctx, claimKey, claimTTL)
	if err != nil {
		d.logger.WarnContext(ctx, "delivery claim failed",
			"delivery_id", delivery.ID, "error", err)
		return
	}
	if !claimed {
		if d.metrics != nil {
			d.metrics.IncrementClaimContention()
		}
		return
	}
	defer d.claimer.Release(ctx, claimKey)

	attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()
	attemptCtx = requestcontext.WithTime(attemptCtx, d.clock())

	status, err := d.service.AttemptDelivery(attemptCtx, delivery)
	if err != nil {
		d.logger.ErrorContext(ctx, "delivery attempt errored",
			"delivery_id", delivery.ID, "error", err)
		return
	}
	d.logger.DebugContext(ctx, "delivery attempted",
		"delivery_id", delivery.ID,
		"tenant_id", delivery.TenantID,
		"status", status,
		"attempts", delivery.AttemptCount,
	)
}
