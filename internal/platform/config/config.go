package config

import (
	"os"
	"strings"
	"time"

	strutil "bidhub/pkg/platform/strings"
)

// Server captures process level configuration so main stays lean.
type Server struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	SweepInterval time.Duration
	JWTSigningKey string
	LogLevel      string
}

// FromEnv builds a Server config from environment variables. Empty Postgres,
// Redis, or Kafka settings select the in-memory fallbacks, which keeps local
// development and tests free of external services.
func FromEnv() Server {
	addr := os.Getenv("BIDHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	sweepInterval := 60 * time.Second
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			sweepInterval = parsed
		}
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "bidhub.audit"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strutil.DedupeAndTrim(strings.Split(raw, ","))
	}

	return Server{
		Addr:          addr,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		AuditTopic:    auditTopic,
		SweepInterval: sweepInterval,
		JWTSigningKey: jwtSigningKey,
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}
}
