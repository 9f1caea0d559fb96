// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and NEXTUP_ env vars over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Change notifiers.
const (
	NotifierStore = "store"
	NotifierRedis = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the event store backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the Postgres connection string when Store is postgres.
	DatabaseURL string `koanf:"database_url"`

	// ApplyMigrations runs the embedded migrations on startup.
	ApplyMigrations bool `koanf:"apply_migrations"`

	// Notifier selects where change notifications come from: the store's
	// own feed alone, or that feed merged with a Redis channel.
	Notifier string `koanf:"notifier"`

	// RedisURL and RedisChannel configure the Redis change feed.
	RedisURL     string `koanf:"redis_url"`
	RedisChannel string `koanf:"redis_channel"`

	// EventQueueSize bounds the pending change queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// RefreshTimeoutMS caps a single list call.
	RefreshTimeoutMS int `koanf:"refresh_timeout_ms"`

	// DedupeSize sets the size of the idempotency key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// CORSOrigins lists allowed browser origins; empty allows all.
	CORSOrigins []string `koanf:"cors_origins"`

	// Timezone names the IANA zone whose calendar day splits upcoming from
	// past events. Empty means the host's local zone.
	Timezone string `koanf:"timezone"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsRefreshMS is how often runtime and queue gauges are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Store:            StoreMemory,
		ApplyMigrations:  true,
		Notifier:         NotifierStore,
		RedisChannel:     "nextup:events:changes",
		EventQueueSize:   64,
		WorkerCount:      1,
		RefreshTimeoutMS: 10_000,
		DedupeSize:       10_000,
		MetricsEnabled:   true,
		MetricsNamespace: "nextup",
		MetricsRefreshMS: 10_000,
	}
}

// RefreshTimeout returns RefreshTimeoutMS as a duration.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// Location returns the zone named by Timezone, or the host's local zone when
// it is empty or unknown. Validate rejects unknown names.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store must be memory or postgres, got %q", ErrInvalidConfig, c.Store)
	}
	switch c.Notifier {
	case NotifierStore:
	case NotifierRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis_url is required for the redis notifier", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: notifier must be store or redis, got %q", ErrInvalidConfig, c.Notifier)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.RefreshTimeoutMS <= 0 {
		return fmt.Errorf("%w: refresh_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.DedupeSize <= 0 {
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
		}
	}
	if c.MetricsRefreshMS <= 0 {
		return fmt.Errorf("%w: metrics_refresh_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
