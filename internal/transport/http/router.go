// Package httptransport assembles the HTTP surface: the middleware chain,
// the two authentication boundaries (operator admin token, tenant JWTs),
// and the per-module handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "complyd/internal/audit/handler"
	eventhandler "complyd/internal/event/handler"
	"complyd/internal/platform/middleware"
	"complyd/internal/ratelimit"
	tenanthandler "complyd/internal/tenant/handler"
	"complyd/internal/transport/http/shared"
	webhookhandler "complyd/internal/webhook/handler"
)

const requestTimeout = 30 * time.Second

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Tenants  *tenanthandler.Handler
	Audit    *audithandler.Handler
	Webhooks *webhookhandler.Handler
	Events   *eventhandler.Handler

	Validator  middleware.TokenValidator
	AdminToken string
	Logger     *slog.Logger

	// RateLimits throttles the tenant surface and credential exchange;
	// nil disables limiting (tests).
	RateLimits *ratelimit.Middleware

	// Health reports backing-store readiness; nil means always ready.
	Health func(ctx context.Context) error
}

// NewRouter builds the full route tree:
//
//	/healthz, /metrics        unauthenticated ops surface
//	/auth/token               public credential exchange
//	/admin/tenants...         operator surface, static admin token
//	/v1/...                   tenant surface, tenant-scoped JWT
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", handleHealth(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimits != nil {
			r.Use(cfg.RateLimits.ByClientIP)
		}
		cfg.Tenants.RegisterAuth(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.AdminToken))
		cfg.Tenants.Register(r)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		if cfg.RateLimits != nil {
			r.Use(cfg.RateLimits.ByTenant)
		}
		cfg.Audit.Register(r)
		cfg.Webhooks.Register(r)
		cfg.Events.Register(r)
	})

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
