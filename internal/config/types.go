package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses Go-style duration strings; bare numbers are seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err == nil {
		d.Duration = parsed
		return nil
	}
	secs, convErr := time.ParseDuration(raw + "s")
	if convErr == nil {
		d.Duration = secs
		return nil
	}
	return fmt.Errorf("invalid duration value %q: %w", raw, err)
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Payments       PaymentsConfig       `yaml:"payments"`
	Storage        StorageConfig        `yaml:"storage"`
	Catalog        CatalogConfig        `yaml:"catalog"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	// Admin is never read from YAML; see applyEnvOverrides.
	Admin AdminConfig `yaml:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	ShutdownTimeout    Duration `yaml:"shutdown_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	RoutePrefix        string   `yaml:"route_prefix"`  // e.g. "/api"
	AdminAPIKey        string   `yaml:"admin_api_key"` // bearer key for admin routes and /metrics; empty disables admin routes
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // json or console
	Environment string `yaml:"environment"`
}

// PaymentsConfig configures the mock card processor.
type PaymentsConfig struct {
	ProcessingDelay Duration        `yaml:"processing_delay"`
	Currency        string          `yaml:"currency"`
	TestCards       TestCardsConfig `yaml:"test_cards"`
}

// TestCardsConfig lists the 16 digit numbers that trigger scripted outcomes.
type TestCardsConfig struct {
	Success      string `yaml:"success"`
	Expired      string `yaml:"expired"`
	Declined     string `yaml:"declined"`
	Insufficient string `yaml:"insufficient"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	Backend         string             `yaml:"backend"` // memory, file, postgres, mongodb
	PostgresURL     string             `yaml:"postgres_url"`
	PostgresTable   string             `yaml:"postgres_table"`
	MongoDBURL      string             `yaml:"mongodb_url"`
	MongoDBDatabase string             `yaml:"mongodb_database"`
	FilePath        string             `yaml:"file_path"`
	FlushInterval   Duration           `yaml:"flush_interval"`
	QueryTimeout    Duration           `yaml:"query_timeout"`
	PostgresPool    PostgresPoolConfig `yaml:"postgres_pool"`
	Collections     CollectionsConfig  `yaml:"collections"`
}

// CatalogConfig tunes song lookups.
type CatalogConfig struct {
	CacheTTL Duration `yaml:"cache_ttl"` // 0 disables the song cache
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// CollectionsConfig maps logical collections to backend collection names.
type CollectionsConfig struct {
	Transactions      string `yaml:"transactions"`
	Songs             string `yaml:"songs"`
	Users             string `yaml:"users"`
	ListeningSessions string `yaml:"listening_sessions"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`

	PerUserEnabled bool     `yaml:"per_user_enabled"`
	PerUserLimit   int      `yaml:"per_user_limit"`
	PerUserWindow  Duration `yaml:"per_user_window"`

	PerIPEnabled bool     `yaml:"per_ip_enabled"`
	PerIPLimit   int      `yaml:"per_ip_limit"`
	PerIPWindow  Duration `yaml:"per_ip_window"`
}

// CircuitBreakerConfig holds circuit breaker settings for outbound dependencies.
type CircuitBreakerConfig struct {
	Enabled     bool                 `yaml:"enabled"`
	RecordStore BreakerServiceConfig `yaml:"record_store"`
}

// BreakerServiceConfig configures one breaker.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}

// AdminConfig carries the credentials used by the provisioning command.
type AdminConfig struct {
	Email    string
	Name     string
	Password string
}
