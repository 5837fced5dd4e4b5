package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the environment, applies tag defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := fill(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// fill walks the section structs and sets every field carrying an env tag.
func fill(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			if err := fill(fv); err != nil {
				return err
			}
			continue
		}

		name := f.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookupEnv(name, f.Tag.Get("envAlt"))
		if !ok {
			raw = f.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := parseInto(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value of name or alt.
func lookupEnv(name, alt string) (string, bool) {
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	if alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v, true
		}
	}
	return "", false
}

// parseInto handles the field types the config sections use: string,
// int, int64, time.Duration, bool and comma-separated []string.
func parseInto(fv reflect.Value, raw string) error {
	switch {
	case fv.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
	case fv.Kind() == reflect.String:
		fv.SetString(raw)
	case fv.Kind() == reflect.Int || fv.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)
	case fv.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		fv.SetBool(b)
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Store validation
	switch strings.ToLower(c.Store.Driver) {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, memory", c.Store.Driver))
	}

	// Database validation
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Batch validation
	if c.Batch.MaxSize <= 0 {
		errs = append(errs, "BATCH_MAX_SIZE must be positive")
	}
	if c.Batch.MaxConcurrent <= 0 {
		errs = append(errs, "BATCH_MAX_CONCURRENT must be positive")
	}
	if c.Batch.MaxWaitTime <= 0 {
		errs = append(errs, "BATCH_MAX_WAIT_TIME must be positive")
	}
	if c.Batch.Timeout <= 0 {
		errs = append(errs, "BATCH_TIMEOUT must be positive")
	}
	if c.Batch.MaxBodySize <= 0 {
		errs = append(errs, "BATCH_MAX_BODY_SIZE must be positive")
	}

	// Range validation
	if c.Range.MaxSpan <= 0 {
		errs = append(errs, "RANGE_MAX_SPAN must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.BatchLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_BATCH must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// UseMemory reports whether records are kept in process.
func (c *Config) UseMemory() bool {
	return strings.EqualFold(c.Store.Driver, DriverMemory)
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Store: {Driver: %q}, ", c.Store.Driver))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, Bootstrap: %v}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.Bootstrap))
	b.WriteString(fmt.Sprintf("Batch: {MaxSize: %d, MaxConcurrent: %d, StopOnFirstError: %v, ValidateAllBeforeInsert: %v}, ",
		c.Batch.MaxSize, c.Batch.MaxConcurrent, c.Batch.StopOnFirstError, c.Batch.ValidateAllBeforeInsert))
	b.WriteString(fmt.Sprintf("Range: {MaxSpan: %d}, ", c.Range.MaxSpan))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
