// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Counter store
	RedisAddr string // Redis address for rate-limit counters (optional, uses in-memory if not set)

	// Keyword classifier
	ClassifierURL     string        // External spam classifier endpoint (optional, neutral fallback if not set)
	ClassifierTimeout time.Duration // Per-keyword classification timeout

	// Abuse engine policy
	DecayGracePeriod time.Duration // No decay while the last violation is this recent
	SweepInterval    time.Duration // How often the monitor job sweeps all scores

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint (optional, tracing disabled if not set)

	// Security
	AdminSecret  string // Admin API secret (monitor trigger, reports)
	RateLimitRPS int    // Global per-IP request ceiling for the HTTP API
}

// Defaults
const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultClassifierTimeout = 2 * time.Second
	DefaultDecayGraceDays    = 7
	DefaultSweepInterval     = time.Hour
	DefaultRateLimit         = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RedisAddr:         os.Getenv("REDIS_ADDR"),   // Optional, uses in-memory if not set
		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", DefaultClassifierTimeout),
		DecayGracePeriod:  time.Duration(getEnvInt64("DECAY_GRACE_DAYS", DefaultDecayGraceDays)) * 24 * time.Hour,
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:       os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:      int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive")
	}
	if c.DecayGracePeriod <= 0 {
		return fmt.Errorf("DECAY_GRACE_DAYS must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
