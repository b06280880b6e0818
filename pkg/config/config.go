// Package config provides the unified configuration system for TalentSync.
// It defines one EngineConfig structure for the whole engine and one
// SourceConfig per external recruiting source, ensuring every source carries
// its own resilience settings.
//
// The configuration is organized into logical sections:
//   - RateLimit: token bucket rate limiting per source
//   - Retry: bounded exponential backoff
//   - Breaker: circuit breaker thresholds
//   - Sync: window and filter behavior
//   - Store: engine state persistence backend
//   - Alerting: failure alert delivery
//   - Observability: metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.NewSourceConfig("acme-crm", "crm")
//	cfg.RateLimit.RequestsPerSecond = 10
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// SourceConfig is the per-source configuration structure. Every configured
// recruiting source gets its own instance; resilience state built from it is
// never shared between sources.
type SourceConfig struct {
	// Name identifies the source instance
	Name string `yaml:"name" json:"name"`
	// Kind selects the adapter implementation (e.g. "crm", "hris", "talent_network")
	Kind string `yaml:"kind" json:"kind"`

	// RateLimit settings for the per-source token bucket
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry settings for bounded exponential backoff
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Breaker settings for the per-source circuit breaker
	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`

	// Sync settings controlling windows and filters
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Credentials stores authentication material resolved externally
	// (use env vars in production; includes webhook_secret when webhooks are used)
	Credentials map[string]string `yaml:"credentials" json:"credentials"`

	// Options stores adapter-specific settings (file paths, endpoints, page sizes)
	Options map[string]string `yaml:"options" json:"options"`
}

// RateLimitConfig contains token bucket settings.
// A zero RequestsPerSecond disables limiting for the source.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate of the bucket
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	// Burst is the bucket capacity (maximum tokens held)
	Burst int `yaml:"burst" json:"burst"`
}

// RetryConfig contains bounded backoff settings.
// An operation is attempted at most MaxRetries+1 times.
type RetryConfig struct {
	// MaxRetries sets the maximum number of retries after the first attempt
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	// MaxDelay caps the exponential growth of the delay
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
}

// BreakerConfig contains circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the circuit
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before admitting trials
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	// HalfOpenMaxCalls limits concurrent trial calls while half-open
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" json:"half_open_max_calls"`
	// SuccessThreshold is the consecutive success count that closes the circuit
	SuccessThreshold int `yaml:"success_threshold" json:"success_threshold"`
}

// SyncConfig contains window and filter behavior for a source.
type SyncConfig struct {
	// FullSync ignores the stored watermark and scans everything
	FullSync bool `yaml:"full_sync" json:"full_sync"`
	// JobFilter restricts candidate syncs to the named jobs
	JobFilter []string `yaml:"job_filter" json:"job_filter"`
	// PageSize hints the adapter's fetch page size
	PageSize int `yaml:"page_size" json:"page_size"`
}

// EngineConfig is the top-level configuration for the sync engine.
type EngineConfig struct {
	// Sources lists every configured recruiting source
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// Health settings for failure accounting and staleness
	Health HealthConfig `yaml:"health" json:"health"`

	// Retention sets TTLs for engine-owned persisted state
	Retention RetentionConfig `yaml:"retention" json:"retention"`

	// Store selects the state persistence backend
	Store StoreConfig `yaml:"store" json:"store"`

	// Alerting configures failure alert delivery
	Alerting AlertingConfig `yaml:"alerting" json:"alerting"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// HealthConfig contains failure accounting settings.
type HealthConfig struct {
	// FailureThreshold is the consecutive run failure count that turns a
	// source CRITICAL and emits an alert
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// StaleAfter marks a source STALE when its watermark is older than this
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after"`
	// MaxFailureLogEntries caps the rolling failure log per source
	MaxFailureLogEntries int `yaml:"max_failure_log_entries" json:"max_failure_log_entries"`
}

// RetentionConfig contains TTLs for persisted engine state.
type RetentionConfig struct {
	// Watermark TTL for per-source sync watermarks
	Watermark time.Duration `yaml:"watermark" json:"watermark"`
	// FailureLog TTL for rolling failure log entries
	FailureLog time.Duration `yaml:"failure_log" json:"failure_log"`
	// RunLog TTL for persisted sync runs
	RunLog time.Duration `yaml:"run_log" json:"run_log"`
	// Conflicts TTL for the manual conflict review queue
	Conflicts time.Duration `yaml:"conflicts" json:"conflicts"`
	// Reprocess TTL for partial-run reprocessing entries
	Reprocess time.Duration `yaml:"reprocess" json:"reprocess"`
}

// StoreConfig selects and tunes the state backend.
type StoreConfig struct {
	// Backend selects the implementation ("memory" or "postgres")
	Backend string `yaml:"backend" json:"backend"`
	// DSN is the connection string for the postgres backend
	DSN string `yaml:"dsn" json:"dsn"`
	// CleanupInterval controls how often expired keys are purged
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	// MaxConns caps the postgres connection pool
	MaxConns int `yaml:"max_conns" json:"max_conns"`
}

// AlertingConfig configures failure alert delivery.
// Alerts always go to the log; Kafka delivery activates when brokers are set.
type AlertingConfig struct {
	// Brokers lists Kafka bootstrap addresses (empty disables Kafka delivery)
	Brokers []string `yaml:"brokers" json:"brokers"`
	// Topic is the Kafka topic alerts are published to
	Topic string `yaml:"topic" json:"topic"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates distributed tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TraceSampleRate is the fraction of traces to sample (0 to 1)
	TraceSampleRate float64 `yaml:"trace_sample_rate" json:"trace_sample_rate"`
	// MetricsAddr is the listen address for the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFormat selects the log encoding (json or console)
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// NewSourceConfig creates a SourceConfig with production-ready defaults.
// Specific sources override as needed after construction or via YAML.
//
// Parameters:
//   - name: The source instance name
//   - kind: The adapter kind (e.g. "crm", "hris")
func NewSourceConfig(name, kind string) *SourceConfig {
	return &SourceConfig{
		Name: name,
		Kind: kind,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   60 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			HalfOpenMaxCalls: 3,
			SuccessThreshold: 2,
		},
		Sync: SyncConfig{
			FullSync: false,
			PageSize: 100,
		},
		Credentials: make(map[string]string),
		Options:     make(map[string]string),
	}
}

// NewEngineConfig creates an EngineConfig with sensible defaults and no sources.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		Health: HealthConfig{
			FailureThreshold:     3,
			StaleAfter:           24 * time.Hour,
			MaxFailureLogEntries: 10,
		},
		Retention: RetentionConfig{
			Watermark:  30 * 24 * time.Hour,
			FailureLog: 24 * time.Hour,
			RunLog:     7 * 24 * time.Hour,
			Conflicts:  30 * 24 * time.Hour,
			Reprocess:  7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Backend:         "memory",
			CleanupInterval: time.Minute,
			MaxConns:        10,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:   true,
			EnableTracing:   false,
			TraceSampleRate: 1.0,
			MetricsAddr:     ":9090",
			LogLevel:        "info",
			LogFormat:       "json",
		},
	}
}

// Validate validates a source configuration for correctness.
// Adapters should call this before construction to catch errors early.
func (sc *SourceConfig) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if sc.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative")
	}
	if sc.RateLimit.RequestsPerSecond > 0 && sc.RateLimit.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting is enabled")
	}
	if sc.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if sc.Retry.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive")
	}
	if sc.Retry.MaxDelay < sc.Retry.BaseDelay {
		return fmt.Errorf("max_delay must be at least base_delay")
	}
	if sc.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if sc.Breaker.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("half_open_max_calls must be positive")
	}
	if sc.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive")
	}
	return nil
}

// Validate validates the engine configuration and every source it names.
func (ec *EngineConfig) Validate() error {
	if ec.Health.FailureThreshold <= 0 {
		return fmt.Errorf("health.failure_threshold must be positive")
	}
	if ec.Health.StaleAfter <= 0 {
		return fmt.Errorf("health.stale_after must be positive")
	}
	if ec.Store.Backend != "memory" && ec.Store.Backend != "postgres" {
		return fmt.Errorf("store.backend must be memory or postgres, got %q", ec.Store.Backend)
	}
	if ec.Store.Backend == "postgres" && ec.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres backend")
	}
	if len(ec.Alerting.Brokers) > 0 && ec.Alerting.Topic == "" {
		return fmt.Errorf("alerting.topic is required when brokers are configured")
	}

	seen := make(map[string]bool, len(ec.Sources))
	for i := range ec.Sources {
		sc := &ec.Sources[i]
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("source %q: %w", sc.Name, err)
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate source name %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

// Source returns the configuration for the named source.
func (ec *EngineConfig) Source(name string) (*SourceConfig, bool) {
	for i := range ec.Sources {
		if ec.Sources[i].Name == name {
			return &ec.Sources[i], true
		}
	}
	return nil, false
}

// IsRateLimited returns true if rate limiting is enabled
func (rc *RateLimitConfig) IsRateLimited() bool {
	return rc.RequestsPerSecond > 0
}

// HasCredentials returns true if credentials are configured
func (sc *SourceConfig) HasCredentials() bool {
	return len(sc.Credentials) > 0
}
