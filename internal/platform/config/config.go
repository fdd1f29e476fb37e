package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	AdminToken    string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Webhook     WebhookConfig
	RateLimit   RateLimitConfig
}

// RateLimitConfig holds per-scope request budgets (requests per minute).
type RateLimitConfig struct {
	TenantPerMinute int
	IPPerMinute     int
}

// RedisConfig holds connection settings for the optional Redis instance
// used for dispatcher delivery claims.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the optional audit entry relay.
// Empty Brokers disables the relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// WebhookConfig holds delivery policy knobs.
type WebhookConfig struct {
	MaxAttempts      int
	AttemptTimeout   time.Duration
	SweepInterval    time.Duration
	MaxConcurrent    int
	SweepBatchSize   int
	ClaimGracePeriod time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("COMPLYD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	adminToken := os.Getenv("COMPLYD_ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "dev-admin-token-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "complyd.audit.entries"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		AdminToken:    adminToken,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		Webhook: WebhookConfig{
			MaxAttempts:      envInt("WEBHOOK_MAX_ATTEMPTS", 5),
			AttemptTimeout:   envDuration("WEBHOOK_ATTEMPT_TIMEOUT", 10*time.Second),
			SweepInterval:    envDuration("WEBHOOK_SWEEP_INTERVAL", 15*time.Second),
			MaxConcurrent:    envInt("WEBHOOK_MAX_CONCURRENT", 16),
			SweepBatchSize:   envInt("WEBHOOK_SWEEP_BATCH", 100),
			ClaimGracePeriod: envDuration("WEBHOOK_CLAIM_GRACE", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			TenantPerMinute: envInt("RATELIMIT_TENANT_PER_MINUTE", 600),
			IPPerMinute:     envInt("RATELIMIT_IP_PER_MINUTE", 30),
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
