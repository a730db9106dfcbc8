package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config captures process-level configuration. All knobs come from the
// environment so main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN  string
	RedisURL     string
	KafkaBrokers []string
	AuditTopic   string

	MaxTransferAmount decimal.Decimal
	LockTimeout       time.Duration
	LockRetries       int
	IdempotencyTTL    time.Duration

	LargeAmountThreshold  decimal.Decimal
	NewRecipientThreshold decimal.Decimal
}

// FromEnv builds a Config from environment variables with defaults that
// work for local development.
func FromEnv() Config {
	cfg := Config{
		Addr:                  getenv("TALLY_ADDR", ":8080"),
		JWTSigningKey:         getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		RedisURL:              os.Getenv("REDIS_URL"),
		AuditTopic:            getenv("AUDIT_TOPIC", "tally.audit.entries"),
		MaxTransferAmount:     decimalEnv("MAX_TRANSFER_AMOUNT", "1000000"),
		LockTimeout:           durationEnv("LOCK_TIMEOUT", 2*time.Second),
		LockRetries:           intEnv("LOCK_RETRIES", 3),
		IdempotencyTTL:        durationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		LargeAmountThreshold:  decimalEnv("ANOMALY_LARGE_AMOUNT", "10000"),
		NewRecipientThreshold: decimalEnv("ANOMALY_NEW_RECIPIENT_AMOUNT", "5000"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func decimalEnv(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
