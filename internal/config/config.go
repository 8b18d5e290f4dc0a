// Package config handles configuration loading from environment variables
// and an optional YAML file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// Redis address for rate-limit counters and the result cache
	RedisAddr string

	// Base URL of the agent backend (e.g., "http://localhost:8001")
	BackendURL string

	// HTTP server port for the controller
	HTTPPort int

	// URL of the controller (used by the CLI and worker health checks)
	ControllerURL string

	// Logging level: debug, info, warn, error
	LogLevel string

	// Worker-specific configuration
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerMaxBackoff   time.Duration

	// Queue retry policy
	MaxAttempts       int
	RetryBackoff      time.Duration
	VisibilityTimeout time.Duration

	// Backend client timeouts
	ExecuteTimeout time.Duration
	HealthTimeout  time.Duration

	// Fixed-window rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Result cache TTL
	CacheTTL time.Duration

	// OTLP collector endpoint for traces
	OTELEndpoint string
}

// envBindings maps config keys to their environment variable names.
var envBindings = map[string]string{
	"database_url":         "DATABASE_URL",
	"redis_addr":           "REDIS_ADDR",
	"backend_url":          "BACKEND_URL",
	"http_port":            "PORT",
	"controller_url":       "CONTROLLER_URL",
	"log_level":            "LOG_LEVEL",
	"worker_concurrency":   "WORKER_CONCURRENCY",
	"worker_poll_interval": "WORKER_POLL_INTERVAL",
	"worker_max_backoff":   "WORKER_MAX_BACKOFF",
	"max_attempts":         "MAX_ATTEMPTS",
	"retry_backoff":        "RETRY_BACKOFF",
	"visibility_timeout":   "VISIBILITY_TIMEOUT",
	"execute_timeout":      "EXECUTE_TIMEOUT",
	"health_timeout":       "HEALTH_TIMEOUT",
	"rate_limit_window":    "RATE_LIMIT_WINDOW",
	"rate_limit_max":       "RATE_LIMIT_MAX",
	"cache_ttl":            "CACHE_TTL",
	"otel_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// Load reads configuration from the optional YAML file at path, with
// environment variables taking precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 6161)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("backend_url", "http://localhost:8001")
	v.SetDefault("controller_url", "http://localhost:6161")
	v.SetDefault("log_level", "info")
	v.SetDefault("worker_concurrency", 5)
	v.SetDefault("worker_poll_interval", "1s")
	v.SetDefault("worker_max_backoff", "30s")
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_backoff", "2s")
	v.SetDefault("visibility_timeout", "5m")
	v.SetDefault("execute_timeout", "60s")
	v.SetDefault("health_timeout", "5s")
	v.SetDefault("rate_limit_window", "60s")
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("otel_endpoint", "localhost:4317")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:        v.GetString("database_url"),
		RedisAddr:          v.GetString("redis_addr"),
		BackendURL:         v.GetString("backend_url"),
		HTTPPort:           v.GetInt("http_port"),
		ControllerURL:      v.GetString("controller_url"),
		LogLevel:           v.GetString("log_level"),
		WorkerConcurrency:  v.GetInt("worker_concurrency"),
		WorkerPollInterval: v.GetDuration("worker_poll_interval"),
		WorkerMaxBackoff:   v.GetDuration("worker_max_backoff"),
		MaxAttempts:        v.GetInt("max_attempts"),
		RetryBackoff:       v.GetDuration("retry_backoff"),
		VisibilityTimeout:  v.GetDuration("visibility_timeout"),
		ExecuteTimeout:     v.GetDuration("execute_timeout"),
		HealthTimeout:      v.GetDuration("health_timeout"),
		RateLimitWindow:    v.GetDuration("rate_limit_window"),
		RateLimitMax:       v.GetInt("rate_limit_max"),
		CacheTTL:           v.GetDuration("cache_ttl"),
		OTELEndpoint:       v.GetString("otel_endpoint"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (env: DATABASE_URL)")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("worker_concurrency must be at least 1, got %d", cfg.WorkerConcurrency)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}
