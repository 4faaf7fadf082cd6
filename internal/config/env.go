package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration and use
// the MUSICHUB_ prefix.
func (c *Config) applyEnvOverrides() {
	// Server
	setIfEnv(&c.Server.Address, "MUSICHUB_SERVER_ADDRESS")
	setIfEnv(&c.Server.RoutePrefix, "MUSICHUB_ROUTE_PREFIX")
	setIfEnv(&c.Server.AdminAPIKey, "MUSICHUB_ADMIN_API_KEY")
	setDurationIfEnv(&c.Server.ShutdownTimeout, "MUSICHUB_SHUTDOWN_TIMEOUT")
	if v := os.Getenv("MUSICHUB_CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitList(v)
	}
	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}

	// Logging
	setIfEnv(&c.Logging.Level, "MUSICHUB_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "MUSICHUB_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "MUSICHUB_ENVIRONMENT")

	// Payments
	setDurationIfEnv(&c.Payments.ProcessingDelay, "MUSICHUB_PAYMENTS_PROCESSING_DELAY")
	setIfEnv(&c.Payments.Currency, "MUSICHUB_PAYMENTS_CURRENCY")
	setIfEnv(&c.Payments.TestCards.Success, "MUSICHUB_TEST_CARD_SUCCESS")
	setIfEnv(&c.Payments.TestCards.Expired, "MUSICHUB_TEST_CARD_EXPIRED")
	setIfEnv(&c.Payments.TestCards.Declined, "MUSICHUB_TEST_CARD_DECLINED")
	setIfEnv(&c.Payments.TestCards.Insufficient, "MUSICHUB_TEST_CARD_INSUFFICIENT")

	// Storage
	setIfEnv(&c.Storage.Backend, "MUSICHUB_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "MUSICHUB_POSTGRES_URL")
	setIfEnv(&c.Storage.PostgresTable, "MUSICHUB_POSTGRES_TABLE")
	setIfEnv(&c.Storage.MongoDBURL, "MUSICHUB_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "MUSICHUB_MONGODB_DATABASE")
	setIfEnv(&c.Storage.FilePath, "MUSICHUB_STORAGE_FILE_PATH")
	setDurationIfEnv(&c.Storage.QueryTimeout, "MUSICHUB_STORAGE_QUERY_TIMEOUT")
	setIntIfEnv(&c.Storage.PostgresPool.MaxOpenConns, "MUSICHUB_POSTGRES_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Storage.PostgresPool.MaxIdleConns, "MUSICHUB_POSTGRES_MAX_IDLE_CONNS")
	setDurationIfEnv(&c.Storage.PostgresPool.ConnMaxLifetime, "MUSICHUB_POSTGRES_CONN_MAX_LIFETIME")
	setDurationIfEnv(&c.Catalog.CacheTTL, "MUSICHUB_CATALOG_CACHE_TTL")

	// Rate limiting
	setBoolIfEnv(&c.RateLimit.GlobalEnabled, "MUSICHUB_RATE_LIMIT_GLOBAL_ENABLED")
	setIntIfEnv(&c.RateLimit.GlobalLimit, "MUSICHUB_RATE_LIMIT_GLOBAL_LIMIT")
	setBoolIfEnv(&c.RateLimit.PerUserEnabled, "MUSICHUB_RATE_LIMIT_PER_USER_ENABLED")
	setIntIfEnv(&c.RateLimit.PerUserLimit, "MUSICHUB_RATE_LIMIT_PER_USER_LIMIT")
	setBoolIfEnv(&c.RateLimit.PerIPEnabled, "MUSICHUB_RATE_LIMIT_PER_IP_ENABLED")
	setIntIfEnv(&c.RateLimit.PerIPLimit, "MUSICHUB_RATE_LIMIT_PER_IP_LIMIT")

	// Circuit breaker
	setBoolIfEnv(&c.CircuitBreaker.Enabled, "MUSICHUB_CIRCUIT_BREAKER_ENABLED")

	// Admin credentials are env-only so they never end up in a committed file.
	setIfEnv(&c.Admin.Email, "MUSICHUB_ADMIN_EMAIL")
	setIfEnv(&c.Admin.Name, "MUSICHUB_ADMIN_NAME")
	setIfEnv(&c.Admin.Password, "MUSICHUB_ADMIN_PASSWORD")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv accepts "1" and any casing of "true" as true.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv ignores values that do not parse.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = n
		}
	}
}

// setDurationIfEnv parses values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeRoutePrefix ensures the prefix starts with / and doesn't end with /.
// Examples: "api" -> "/api", "/api/" -> "/api"
func normalizeRoutePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
