package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tenant module.
type Metrics struct {
	TenantsCreated    prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	KeysRotated       prometheus.Counter
	AuthFailures      prometheus.Counter
}

// New creates a Metrics instance with all tenant metrics registered.
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_tenant_status_transitions_total",
			Help: "Tenant lifecycle transitions by target status",
		}, []string{"status"}),
		KeysRotated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_tenant_api_keys_rotated_total",
			Help: "Total number of tenant API key rotations",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyd_tenant_auth_failures_total",
			Help: "Failed tenant API credential verifications",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.TenantsCreated.Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementKeyRotated() {
	m.KeysRotated.Inc()
}

func (m *Metrics) IncrementAuthFailure() {
	m.AuthFailures.Inc()
}
