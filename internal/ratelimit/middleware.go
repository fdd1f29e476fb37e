package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"complyd/pkg/requestcontext"
)

// Metrics counts throttled requests by scope.
type Metrics struct {
	Throttled *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Throttled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyd_ratelimit_throttled_total",
			Help: "Total number of requests rejected by rate limiting, by scope",
		}, []string{"scope"}),
	}
}

// Middleware applies limiters to request scopes.
type Middleware struct {
	tenants *Limiter
	ips     *Limiter
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(m *Middleware)

func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// NewMiddleware constructs rate limit middleware. Tenant and IP budgets are
// independent: the tenant limiter guards the authenticated surface, the IP
// limiter guards credential exchange.
func NewMiddleware(tenantPerMinute, ipPerMinute int, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		tenants: NewLimiter(tenantPerMinute, time.Minute),
		ips:     NewLimiter(ipPerMinute, time.Minute),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ByTenant limits authenticated requests per tenant. Apply after RequireAuth
// so the tenant ID is resolved; requests without one pass through and fail
// authentication instead.
func (m *Middleware) ByTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := requestcontext.TenantID(r.Context())
		if tenantID.IsNil() {
			next.ServeHTTP(w, r)
			return
		}
		m.check(w, r, next, m.tenants, "tenant", tenantID.String())
	})
}

// ByClientIP limits unauthenticated requests per client IP.
func (m *Middleware) ByClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := requestcontext.ClientIP(r.Context())
		if ip == "" {
			ip = r.RemoteAddr
		}
		m.check(w, r, next, m.ips, "ip", ip)
	})
}

func (m *Middleware) check(w http.ResponseWriter, r *http.Request, next http.Handler, limiter *Limiter, scope, key string) {
	result := limiter.Allow(key)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

	if result.Allowed {
		next.ServeHTTP(w, r)
		return
	}

	if m.metrics != nil {
		m.metrics.Throttled.WithLabelValues(scope).Inc()
	}
	m.logger.WarnContext(r.Context(), "request throttled",
		"request_id", requestcontext.RequestID(r.Context()),
		"scope", scope,
		"path", r.URL.Path,
	)

	retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited"})
}
