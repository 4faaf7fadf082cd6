package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the MusicHub server.
type Metrics struct {
	// Purchase metrics
	PurchasesTotal       *prometheus.CounterVec
	PurchasesFailedTotal *prometheus.CounterVec
	PurchaseRevenueTotal *prometheus.CounterVec
	PurchaseDuration     *prometheus.HistogramVec

	// Listening metrics
	ListeningSessionsTotal *prometheus.CounterVec
	ListeningSecondsTotal  prometheus.Counter

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Record store metrics
	StoreOperationDuration *prometheus.HistogramVec
	StoreErrorsTotal       *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates and registers all metrics. A nil registry uses the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		PurchasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musichub_purchases_total",
				Help: "Total number of completed song purchases",
			},
			[]string{"purchase_type", "platform"},
		),
		PurchasesFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musichub_purchases_failed_total",
				Help: "Total number of failed purchase attempts by error code",
			},
			[]string{"code"},
		),
		PurchaseRevenueTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musichub_purchase_revenue_total",
				Help: "Total revenue from completed purchases in major currency units",
			},
			[]string{"currency"},
		),
		PurchaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "musichub_purchase_duration_seconds",
				Help:    "Time taken to process a purchase including card authorization",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
			},
			[]string{"outcome"},
		),

		ListeningSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musichub_listening_sessions_total",
				Help: "Total number of recorded listening sessions",
			},
			[]string{"platform"},
		),
		ListeningSecondsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "musichub_listening_seconds_total",
				Help: "Total listening time recorded in seconds",
			},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musichub_rate_limit_hits_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limit_type"},
		),

		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "musichub_store_operation_duration_seconds",
				Help:    "Duration of record store operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"operation", "backend"},
		),
		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musichub_store_errors_total",
				Help: "Total number of failed record store operations",
			},
			[]string{"operation", "backend"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "musichub_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}
}

// ObservePurchase records a completed purchase.
func (m *Metrics) ObservePurchase(purchaseType, platform, currency string, amount float64, duration time.Duration) {
	m.PurchasesTotal.WithLabelValues(purchaseType, platform).Inc()
	m.PurchaseRevenueTotal.WithLabelValues(currency).Add(amount)
	m.PurchaseDuration.WithLabelValues("completed").Observe(duration.Seconds())
}

// ObservePurchaseFailure records a failed purchase with its error code.
func (m *Metrics) ObservePurchaseFailure(code string, duration time.Duration) {
	m.PurchasesFailedTotal.WithLabelValues(code).Inc()
	m.PurchaseDuration.WithLabelValues("failed").Observe(duration.Seconds())
}

// ObserveListeningSession records a tracked play.
func (m *Metrics) ObserveListeningSession(platform string, seconds float64) {
	m.ListeningSessionsTotal.WithLabelValues(platform).Inc()
	if seconds > 0 {
		m.ListeningSecondsTotal.Add(seconds)
	}
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType).Inc()
}

// ObserveStoreOperation records a record store call.
func (m *Metrics) ObserveStoreOperation(operation, backend string, duration time.Duration, err error) {
	m.StoreOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
	if err != nil {
		m.StoreErrorsTotal.WithLabelValues(operation, backend).Inc()
	}
}

// SetCircuitBreakerState publishes a breaker state transition.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
