package circuitbreaker

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/musichub/server/internal/config"
)

// ServiceType identifies a protected dependency.
type ServiceType string

const (
	ServiceRecordStore ServiceType = "record_store"
)

// StateListener is notified of breaker transitions.
type StateListener func(service ServiceType, from, to gobreaker.State)

// Manager owns one breaker per dependency so a failing record store cannot
// drag unrelated calls down with it.
type Manager struct {
	breakers map[ServiceType]*gobreaker.CircuitBreaker
	config   Config
}

// Config holds circuit breaker configuration for all services.
type Config struct {
	Enabled     bool
	RecordStore BreakerConfig
	Logger      zerolog.Logger
	OnChange    StateListener
}

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed. 0 never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open before half-opening.
	Timeout time.Duration

	// Trip on ConsecutiveFailures, or on FailureRatio once MinRequests
	// have been seen.
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// NewManagerFromConfig builds a manager from application config.
func NewManagerFromConfig(cfg config.CircuitBreakerConfig, log zerolog.Logger, onChange StateListener) *Manager {
	return NewManager(Config{
		Enabled: cfg.Enabled,
		RecordStore: BreakerConfig{
			MaxRequests:         cfg.RecordStore.MaxRequests,
			Interval:            cfg.RecordStore.Interval.Duration,
			Timeout:             cfg.RecordStore.Timeout.Duration,
			ConsecutiveFailures: cfg.RecordStore.ConsecutiveFailures,
			FailureRatio:        cfg.RecordStore.FailureRatio,
			MinRequests:         cfg.RecordStore.MinRequests,
		},
		Logger:   log,
		OnChange: onChange,
	})
}

// NewManager creates a circuit breaker manager with the given configuration.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		breakers: make(map[ServiceType]*gobreaker.CircuitBreaker),
		config:   cfg,
	}
	if !cfg.Enabled {
		return m
	}
	m.breakers[ServiceRecordStore] = gobreaker.NewCircuitBreaker(toGobreakerSettings(ServiceRecordStore, cfg.RecordStore, cfg))
	return m
}

// Execute runs fn behind the service's breaker. Disabled or unknown
// services pass straight through.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	breaker, ok := m.breakers[service]
	if !m.config.Enabled || !ok {
		return fn()
	}
	return breaker.Execute(fn)
}

// ExecuteWithFilter is Execute for calls whose errors are not all
// failures of the dependency. Errors for which isFailure returns false are
// returned to the caller without counting against the breaker.
func (m *Manager) ExecuteWithFilter(service ServiceType, isFailure func(error) bool, fn func() (interface{}, error)) (interface{}, error) {
	var passthrough error
	out, err := m.Execute(service, func() (interface{}, error) {
		v, err := fn()
		if err != nil && !isFailure(err) {
			passthrough = err
			return v, nil
		}
		return v, err
	})
	if passthrough != nil {
		return out, passthrough
	}
	return out, err
}

// State returns the breaker state, "disabled" or "not_configured".
func (m *Manager) State(service ServiceType) string {
	if !m.config.Enabled {
		return "disabled"
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return "not_configured"
	}
	return breaker.State().String()
}

// Counts returns the current counts for a circuit breaker.
func (m *Manager) Counts(service ServiceType) Counts {
	breaker, ok := m.breakers[service]
	if !m.config.Enabled || !ok {
		return Counts{}
	}
	c := breaker.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// IsOpen reports whether err was produced by a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func toGobreakerSettings(service ServiceType, cfg BreakerConfig, mgr Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        string(service),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRate >= cfg.FailureRatio
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			mgr.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit_breaker.state_changed")
			if mgr.OnChange != nil {
				mgr.OnChange(service, from, to)
			}
		},
	}
}

// DefaultConfig returns the defaults used when no config file sets them.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		RecordStore: BreakerConfig{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
		Logger: zerolog.Nop(),
	}
}
