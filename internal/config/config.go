// Package config provides configuration management for the alert core.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultIngestMaxPayloadSize is the default max payload size for the
	// ingest endpoint (1MB).
	DefaultIngestMaxPayloadSize int64 = 1 << 20

	// DefaultAdminMaxPayloadSize is the default max payload size for admin
	// endpoints (100KB).
	DefaultAdminMaxPayloadSize int64 = 100 * 1024

	// DefaultRuleCacheTTL bounds rule-cache staleness across instances.
	DefaultRuleCacheTTL = 5 * time.Second

	// DefaultFingerprintLockTTL is the expiry of Redis fingerprint locks.
	DefaultFingerprintLockTTL = 10 * time.Second
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port string

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string

	// DatabaseURL is the Postgres connection string. Empty runs the
	// service on in-memory stores.
	DatabaseURL string

	// RedisAddr enables Redis-backed fingerprint locking when set.
	RedisAddr string

	// IngestMaxPayloadSize is the maximum ingest payload size in bytes.
	IngestMaxPayloadSize int64

	// AdminMaxPayloadSize is the maximum admin payload size in bytes.
	AdminMaxPayloadSize int64

	// RuleCacheTTL is the rule cache entry lifetime.
	RuleCacheTTL time.Duration

	// FingerprintLockTTL is the Redis fingerprint lock expiry.
	FingerprintLockTTL time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		IngestMaxPayloadSize: getEnvInt64OrDefault("INGEST_MAX_PAYLOAD_SIZE", DefaultIngestMaxPayloadSize),
		AdminMaxPayloadSize:  getEnvInt64OrDefault("ADMIN_MAX_PAYLOAD_SIZE", DefaultAdminMaxPayloadSize),
		RuleCacheTTL:         getEnvDurationOrDefault("RULE_CACHE_TTL", DefaultRuleCacheTTL),
		FingerprintLockTTL:   getEnvDurationOrDefault("FINGERPRINT_LOCK_TTL", DefaultFingerprintLockTTL),
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64OrDefault returns the environment variable value as int64 or the default if not set or invalid.
func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable value as a duration or the default if not set or invalid.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
