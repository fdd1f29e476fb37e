package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module.
// Tracks append throughput, sequence contention and verification outcomes.
type Metrics struct {
	EntriesAppended  *prometheus.CounterVec
	AppendConflicts  prometheus.Counter
	AppendDuration   prometheus.Histogram
	ChainsVerified   prometheus.Counter
	TamperDetected   prometheus.Counter
	VerifyDuration   prometheus.Histogram
	RelayPublished   prometheus.Counter
	RelayDropped     prometheus.Counter
	RelayPublishFail prometheus.Counter
}

// New creates a new Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_audit_entries_appended_total",
			Help: "Total number of audit entries appended, by event type",
		}, []string{"event_type"}),
		AppendConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_append_conflicts_total",
			Help: "Total number of sequence conflicts retried during append",
		}),
		AppendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "complyd_audit_append_duration_seconds",
			Help:    "Duration of Append operations (event intake critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ChainsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_chains_verified_total",
			Help: "Total number of chain verification walks",
		}),
		TamperDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_tamper_detected_total",
			Help: "Total number of verifications that found a broken chain",
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "complyd_audit_verify_duration_seconds",
			Help:    "Duration of chain verification walks",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_relay_published_total",
			Help: "Total number of entries relayed to the event stream",
		}),
		RelayDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_relay_dropped_total",
			Help: "Total number of entries dropped because the relay buffer was full",
		}),
		RelayPublishFail: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_audit_relay_publish_failures_total",
			Help: "Total number of failed relay publish attempts",
		}),
	}
}

// IncrementAppended records a successfully appended entry.
func (m *Metrics) IncrementAppended(eventType string) {
	m.EntriesAppended.WithLabelValues(eventType).Inc()
}

// IncrementAppendConflict records a sequence conflict that triggered a retry.
func (m *Metrics) IncrementAppendConflict() {
	m.AppendConflicts.Inc()
}

// ObserveAppend records the duration of an Append operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAppend(start time.Time) {
	m.AppendDuration.Observe(time.Since(start).Seconds())
}

// IncrementVerified records a completed verification walk.
func (m *Metrics) IncrementVerified(tampered bool) {
	m.ChainsVerified.Inc()
	if tampered {
		m.TamperDetected.Inc()
	}
}

// ObserveVerify records the duration of a verification walk.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

// IncrementRelayPublished records an entry handed to the event stream.
func (m *Metrics) IncrementRelayPublished() {
	m.RelayPublished.Inc()
}

// IncrementRelayDropped records an entry dropped by a full relay buffer.
func (m *Metrics) IncrementRelayDropped() {
	m.RelayDropped.Inc()
}

// IncrementRelayPublishFail records a failed publish to the event stream.
func (m *Metrics) IncrementRelayPublishFail() {
	m.RelayPublishFail.Inc()
}
