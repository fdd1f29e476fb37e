// Command server runs the complyd API: tenant administration, audit chain
// queries, webhook management, event intake, and the background delivery
// dispatcher. Backing stores degrade gracefully: without POSTGRES_URL the
// process runs on in-memory stores, without REDIS_URL delivery claims are
// process-local, and without KAFKA_BROKERS the audit relay is disabled.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"complyd/internal/audit"
	audithandler "complyd/internal/audit/handler"
	auditmetrics "complyd/internal/audit/metrics"
	"complyd/internal/audit/relay"
	auditstore "complyd/internal/audit/store/entry"
	"complyd/internal/event"
	eventhandler "complyd/internal/event/handler"
	jwttoken "complyd/internal/jwt_token"
	"complyd/internal/platform/config"
	"complyd/internal/platform/httpserver"
	"complyd/internal/platform/kafka"
	"complyd/internal/platform/logger"
	"complyd/internal/platform/postgres"
	platformredis "complyd/internal/platform/redis"
	"complyd/internal/ratelimit"
	"complyd/internal/tenant"
	tenanthandler "complyd/internal/tenant/handler"
	tenantmetrics "complyd/internal/tenant/metrics"
	tenantstore "complyd/internal/tenant/store/tenant"
	httptransport "complyd/internal/transport/http"
	"complyd/internal/webhook"
	"complyd/internal/webhook/dispatcher"
	webhookhandler "complyd/internal/webhook/handler"
	webhookmetrics "complyd/internal/webhook/metrics"
	deliverystore "complyd/internal/webhook/store/delivery"
	endpointstore "complyd/internal/webhook/store/endpoint"
)

const (
	jwtIssuer       = "complyd"
	jwtAudience     = "complyd-api"
	relayBufferSize = 256
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.RunMigrations(db); err != nil {
			return err
		}
		log.Info("postgres connected, migrations applied")
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	kafkaClient, err := kafka.New(rootCtx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
	}

	auditMetrics := auditmetrics.New()
	webhookMetrics := webhookmetrics.New()
	tenantMetrics := tenantmetrics.New()

	var (
		entryStore    audit.Store           = auditstore.NewMemory()
		endpointStore webhook.ConfigStore   = endpointstore.NewMemory()
		deliveryStore webhook.DeliveryStore = deliverystore.NewMemory()
		tenantStore   tenant.Store          = tenantstore.NewMemory()
		claimer       dispatcher.Claimer    = dispatcher.NewLocalClaimer()
	)
	if db != nil {
		entryStore = auditstore.NewPostgres(db)
		endpointStore = endpointstore.NewPostgres(db)
		deliveryStore = deliverystore.NewPostgres(db)
		tenantStore = tenantstore.NewPostgres(db)
	}
	if redisClient != nil {
		claimer = dispatcher.NewFailoverClaimer(
			dispatcher.NewRedisClaimer(redisClient.Client),
			dispatcher.NewLocalClaimer(),
			log,
		)
		log.Info("redis connected, delivery claims are distributed")
	}

	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	}
	var auditRelay *relay.Relay
	if kafkaClient != nil {
		auditRelay = relay.New(kafkaClient, relayBufferSize, log, auditMetrics)
		auditOpts = append(auditOpts, audit.WithRelay(auditRelay))
		log.Info("kafka connected, audit relay enabled", "topic", cfg.Kafka.Topic)
	}
	auditor := audit.NewService(entryStore, auditOpts...)

	tenants := tenant.NewService(tenantStore,
		tenant.WithLogger(log),
		tenant.WithMetrics(tenantMetrics),
		tenant.WithRecorder(auditor),
	)

	webhooks := webhook.NewService(endpointStore, deliveryStore,
		webhook.NewHTTPSender(cfg.Webhook.AttemptTimeout),
		webhook.WithLogger(log),
		webhook.WithMetrics(webhookMetrics),
		webhook.WithMaxAttempts(cfg.Webhook.MaxAttempts),
		webhook.WithRecorder(auditor),
		webhook.WithTenantGate(tenants),
	)

	events := event.NewService(auditor, webhooks,
		event.WithLogger(log),
		event.WithTenantGate(tenants),
	)

	disp := dispatcher.New(webhooks, claimer, dispatcher.Config{
		SweepInterval:  cfg.Webhook.SweepInterval,
		SweepBatch:     cfg.Webhook.SweepBatchSize,
		MaxConcurrent:  cfg.Webhook.MaxConcurrent,
		AttemptTimeout: cfg.Webhook.AttemptTimeout,
		ClaimGrace:     cfg.Webhook.ClaimGracePeriod,
	}, log, dispatcher.WithMetrics(webhookMetrics))

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Tenants:    tenanthandler.New(tenants, jwtService, log),
		Audit:      audithandler.New(auditor, log),
		Webhooks:   webhookhandler.New(webhooks, log),
		Events:     eventhandler.New(events, log),
		Validator:  jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken: cfg.AdminToken,
		Logger:     log,
		RateLimits: ratelimit.NewMiddleware(
			cfg.RateLimit.TenantPerMinute,
			cfg.RateLimit.IPPerMinute,
			log,
			ratelimit.WithMetrics(ratelimit.NewMetrics()),
		),
		Health: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("complyd listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCancel(disp.Run(ctx))
	})
	if auditRelay != nil {
		g.Go(func() error {
			return ignoreCancel(auditRelay.Run(ctx))
		})
	}

	err = g.Wait()
	log.Info("complyd stopped")
	return ignoreCancel(err)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
