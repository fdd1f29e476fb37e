package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the webhook module.
// Tracks enqueue fan-out, attempt outcomes and dispatcher sweeps.
type Metrics struct {
	DeliveriesEnqueued prometheus.Counter
	EnqueueDuplicates  prometheus.Counter
	Attempts           *prometheus.CounterVec
	AttemptDuration    prometheus.Histogram
	TerminalDeliveries *prometheus.CounterVec
	SweepBatchSize     prometheus.Histogram
	ClaimContention    prometheus.Counter
}

// New creates a new Metrics instance with all webhook module metrics registered.
func New() *Metrics {
	return &Metrics{
		DeliveriesEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_webhook_deliveries_enqueued_total",
			Help: "Total number of deliveries created by event fan-out",
		}),
		EnqueueDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_webhook_enqueue_duplicates_total",
			Help: "Total number of enqueues skipped because the delivery already existed",
		}),
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_webhook_attempts_total",
			Help: "Total number of delivery attempts, by outcome",
		}, []string{"outcome"}),
		AttemptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "complyd_webhook_attempt_duration_seconds",
			Help:    "Duration of outbound delivery attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		TerminalDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_webhook_terminal_deliveries_total",
			Help: "Total number of deliveries that reached a terminal status",
		}, []string{"status"}),
		SweepBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "complyd_webhook_sweep_batch_size",
			Help:    "Number of due deliveries picked up per dispatcher sweep",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		ClaimContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_webhook_claim_contention_total",
			Help: "Total number of deliveries skipped because another dispatcher held the claim",
		}),
	}
}

// IncrementEnqueued records a delivery created by fan-out.
func (m *Metrics) IncrementEnqueued() {
	m.DeliveriesEnqueued.Inc()
}

// IncrementEnqueueDuplicate records an enqueue that found an existing delivery.
func (m *Metrics) IncrementEnqueueDuplicate() {
	m.EnqueueDuplicates.Inc()
}

// IncrementAttempt records one delivery attempt by outcome
// (succeeded, rejected, timeout, connection_failure, lost_race).
func (m *Metrics) IncrementAttempt(outcome string) {
	m.Attempts.WithLabelValues(outcome).Inc()
}

// ObserveAttempt records the duration of an outbound attempt.
// Call with time.Now() at the start of the attempt.
func (m *Metrics) ObserveAttempt(start time.Time) {
	m.AttemptDuration.Observe(time.Since(start).Seconds())
}

// IncrementTerminal records a delivery reaching succeeded or failed_permanent.
func (m *Metrics) IncrementTerminal(status string) {
	m.TerminalDeliveries.WithLabelValues(status).Inc()
}

// ObserveSweep records the size of one dispatcher sweep batch.
func (m *Metrics) ObserveSweep(batch int) {
	m.SweepBatchSize.Observe(float64(batch))
}

// IncrementClaimContention records a delivery already claimed elsewhere.
func (m *Metrics) IncrementClaimContention() {
	m.ClaimContention.Inc()
}
