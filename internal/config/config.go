// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all service configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Batch    BatchConfig
	Range    RangeConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Bootstrap creates missing tables and loads seed data on start (default: true)
	Bootstrap bool `env:"DB_BOOTSTRAP" default:"true"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`
}

// BatchConfig holds batch ingestion settings.
type BatchConfig struct {
	// MaxSize is the maximum number of candidates per batch (default: 1000)
	MaxSize int `env:"BATCH_MAX_SIZE" default:"1000"`

	// MaxConcurrent is the number of batches per entity run at once (default: 1)
	MaxConcurrent int `env:"BATCH_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a batch waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"BATCH_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single batch from validation to insert (default: 2m)
	Timeout time.Duration `env:"BATCH_TIMEOUT" default:"2m"`

	// StopOnFirstError is the policy used when a request does not set it (default: false)
	StopOnFirstError bool `env:"BATCH_STOP_ON_FIRST_ERROR" default:"false"`

	// ValidateAllBeforeInsert is the policy used when a request does not set it (default: true)
	ValidateAllBeforeInsert bool `env:"BATCH_VALIDATE_ALL_BEFORE_INSERT" default:"true"`

	// MaxBodySize is the maximum request body in bytes for batch and import (default: 10MB)
	MaxBodySize int64 `env:"BATCH_MAX_BODY_SIZE" default:"10485760"`
}

// RangeConfig holds range mutation settings.
type RangeConfig struct {
	// MaxSpan is the largest number of ids a range may cover (default: 10000)
	MaxSpan int64 `env:"RANGE_MAX_SPAN" default:"10000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// BatchLimit is requests per minute for batch and import endpoints (default: 10)
	BatchLimit int `env:"RATE_LIMIT_BATCH" default:"10"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers identify the client
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
