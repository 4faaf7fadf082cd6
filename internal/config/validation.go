package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
)

// finalize normalises values and validates the result.
func (c *Config) finalize() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	c.Payments.Currency = strings.ToUpper(strings.TrimSpace(c.Payments.Currency))
	if c.Payments.Currency == "" {
		c.Payments.Currency = "USD"
	}
	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}
	if c.Admin.Name == "" {
		c.Admin.Name = "Administrator"
	}

	cols := &c.Storage.Collections
	defaults := defaultConfig().Storage.Collections
	if cols.Transactions == "" {
		cols.Transactions = defaults.Transactions
	}
	if cols.Songs == "" {
		cols.Songs = defaults.Songs
	}
	if cols.Users == "" {
		cols.Users = defaults.Users
	}
	if cols.ListeningSessions == "" {
		cols.ListeningSessions = defaults.ListeningSessions
	}

	return c.validate()
}

func (c *Config) validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.FilePath == "" {
			errs = append(errs, errors.New("storage.file_path is required for the file backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for the postgres backend"))
		}
		if !isIdentifier(c.Storage.PostgresTable) {
			errs = append(errs, fmt.Errorf("storage.postgres_table %q is not a valid identifier", c.Storage.PostgresTable))
		}
	case BackendMongoDB:
		if c.Storage.MongoDBURL == "" {
			errs = append(errs, errors.New("storage.mongodb_url is required for the mongodb backend"))
		}
		if c.Storage.MongoDBDatabase == "" {
			errs = append(errs, errors.New("storage.mongodb_database is required for the mongodb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not supported (memory, file, postgres, mongodb)", c.Storage.Backend))
	}

	if c.Payments.ProcessingDelay.Duration < 0 {
		errs = append(errs, errors.New("payments.processing_delay must not be negative"))
	}
	cards := map[string]string{
		"success":      c.Payments.TestCards.Success,
		"expired":      c.Payments.TestCards.Expired,
		"declined":     c.Payments.TestCards.Declined,
		"insufficient": c.Payments.TestCards.Insufficient,
	}
	for name, number := range cards {
		if !isCardNumber(number) {
			errs = append(errs, fmt.Errorf("payments.test_cards.%s must be 16 digits", name))
		}
	}

	if c.RateLimit.GlobalEnabled && c.RateLimit.GlobalLimit <= 0 {
		errs = append(errs, errors.New("rate_limit.global_limit must be positive when enabled"))
	}
	if c.RateLimit.PerUserEnabled && c.RateLimit.PerUserLimit <= 0 {
		errs = append(errs, errors.New("rate_limit.per_user_limit must be positive when enabled"))
	}
	if c.RateLimit.PerIPEnabled && c.RateLimit.PerIPLimit <= 0 {
		errs = append(errs, errors.New("rate_limit.per_ip_limit must be positive when enabled"))
	}

	return errors.Join(errs...)
}

func isCardNumber(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
// Unset values fall back to 25 open, 5 idle, 5 minute lifetime.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
