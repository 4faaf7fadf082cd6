package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/musichub/server/internal/config"
	apierrors "github.com/musichub/server/internal/errors"
	"github.com/musichub/server/internal/metrics"
)

// Limit types reported in metrics and error details.
const (
	LimitGlobal  = "global"
	LimitPerUser = "per_user"
	LimitPerIP   = "per_ip"
)

// UserHeader carries the caller's user ID for per-user limiting.
const UserHeader = "X-User-ID"

// Config holds rate limiting configuration.
type Config struct {
	// Global rate limiting (across all callers)
	GlobalEnabled bool
	GlobalLimit   int           // requests per window
	GlobalWindow  time.Duration // time window

	// Per-user rate limiting (X-User-ID header or userId query parameter)
	PerUserEnabled bool
	PerUserLimit   int
	PerUserWindow  time.Duration

	// Per-IP rate limiting
	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	// Exempt, when set, lets matching requests skip the per-user and
	// per-IP limiters. The global limiter always applies.
	Exempt func(*http.Request) bool

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default limits: 1000/min global, 60/min per
// user and 120/min per IP.
func DefaultConfig() Config {
	return Config{
		GlobalEnabled:  true,
		GlobalLimit:    1000,
		GlobalWindow:   1 * time.Minute,
		PerUserEnabled: true,
		PerUserLimit:   60,
		PerUserWindow:  1 * time.Minute,
		PerIPEnabled:   true,
		PerIPLimit:     120,
		PerIPWindow:    1 * time.Minute,
	}
}

// FromSettings maps loaded configuration onto a limiter Config.
func FromSettings(cfg config.RateLimitConfig, m *metrics.Metrics) Config {
	return Config{
		GlobalEnabled:  cfg.GlobalEnabled,
		GlobalLimit:    cfg.GlobalLimit,
		GlobalWindow:   cfg.GlobalWindow.Duration,
		PerUserEnabled: cfg.PerUserEnabled,
		PerUserLimit:   cfg.PerUserLimit,
		PerUserWindow:  cfg.PerUserWindow.Duration,
		PerIPEnabled:   cfg.PerIPEnabled,
		PerIPLimit:     cfg.PerIPLimit,
		PerIPWindow:    cfg.PerIPWindow.Duration,
		Metrics:        m,
	}
}

// limitHandler writes the standard rate_limited error.
func limitHandler(limitType string, window time.Duration, m *metrics.Metrics) http.HandlerFunc {
	retryAfter := int(window.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	var message string
	switch limitType {
	case LimitGlobal:
		message = "Global rate limit exceeded. Please try again later."
	case LimitPerUser:
		message = "Too many requests for this user. Please try again later."
	case LimitPerIP:
		message = "IP rate limit exceeded. Please try again later."
	default:
		message = "Rate limit exceeded. Please try again later."
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if m != nil {
			m.ObserveRateLimit(limitType)
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		apierrors.WriteError(w, apierrors.ErrCodeRateLimited, message, map[string]any{
			"limit_type":          limitType,
			"retry_after_seconds": retryAfter,
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// GlobalLimiter creates a global rate limiter middleware.
func GlobalLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return passthrough
	}
	return httprate.Limit(
		cfg.GlobalLimit,
		cfg.GlobalWindow,
		httprate.WithKeyFuncs(func(*http.Request) (string, error) { return "global", nil }),
		httprate.WithLimitHandler(limitHandler(LimitGlobal, cfg.GlobalWindow, cfg.Metrics)),
	)
}

// UserLimiter limits requests per user ID, falling back to the client IP
// for anonymous requests.
func UserLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerUserEnabled {
		return passthrough
	}
	limiter := httprate.Limit(
		cfg.PerUserLimit,
		cfg.PerUserWindow,
		httprate.WithKeyFuncs(userKey),
		httprate.WithLimitHandler(limitHandler(LimitPerUser, cfg.PerUserWindow, cfg.Metrics)),
	)
	return exemptable(cfg.Exempt, limiter)
}

// IPLimiter creates a per-IP rate limiter middleware.
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return passthrough
	}
	limiter := httprate.Limit(
		cfg.PerIPLimit,
		cfg.PerIPWindow,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(limitHandler(LimitPerIP, cfg.PerIPWindow, cfg.Metrics)),
	)
	return exemptable(cfg.Exempt, limiter)
}

func exemptable(exempt func(*http.Request) bool, limiter func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if exempt == nil {
		return limiter
	}
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// userKey is a httprate.KeyFunc keyed on the caller's user ID.
func userKey(r *http.Request) (string, error) {
	if user := UserFromRequest(r); user != "" {
		return "user:" + user, nil
	}
	return httprate.KeyByIP(r)
}

// UserFromRequest returns the user ID from the X-User-ID header or the
// userId query parameter.
func UserFromRequest(r *http.Request) string {
	if user := r.Header.Get(UserHeader); user != "" {
		return user
	}
	return r.URL.Query().Get("userId")
}
