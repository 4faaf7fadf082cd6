// Package musichub assembles the storefront services for standalone
// serving or for embedding in another chi application.
package musichub

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/musichub/server/internal/analytics"
	"github.com/musichub/server/internal/catalog"
	"github.com/musichub/server/internal/circuitbreaker"
	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/httpserver"
	"github.com/musichub/server/internal/lifecycle"
	"github.com/musichub/server/internal/logger"
	"github.com/musichub/server/internal/metrics"
	"github.com/musichub/server/internal/payments"
	"github.com/musichub/server/internal/storage"
)

// App wires the MusicHub components.
type App struct {
	Config    *config.Config
	Store     storage.RecordStore
	Payments  *payments.Service
	Catalog   *catalog.Service
	Analytics *analytics.Service
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	router          chi.Router
	server          *httpserver.Server
	resourceManager *lifecycle.Manager
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store    storage.RecordStore
	router   chi.Router
	registry *prometheus.Registry
	logger   *zerolog.Logger
	clock    func() time.Time
}

// WithStore sets a custom record store. The caller keeps ownership and
// must close it.
func WithStore(store storage.RecordStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRouter registers routes onto an existing chi.Router instead of a
// fresh one.
func WithRouter(router chi.Router) Option {
	return func(o *options) {
		o.router = router
	}
}

// WithRegistry registers metrics on registry and serves it at /metrics.
// Without it the default Prometheus registry is used.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithLogger overrides the logger built from the logging config.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &log
	}
}

// WithClock overrides the clock stamped on records and card checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// NewApp assembles the services described by cfg.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("musichub: config required")
	}

	optState := options{clock: time.Now}
	for _, opt := range opts {
		opt(&optState)
	}

	var appLogger zerolog.Logger
	if optState.logger != nil {
		appLogger = *optState.logger
	} else {
		appLogger = logger.New(logger.Config{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			Service:     "musichub-server",
			Environment: cfg.Logging.Environment,
		})
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if optState.registry != nil {
		registerer, gatherer = optState.registry, optState.registry
	}
	metricsCollector := metrics.New(registerer)

	app := &App{
		Config:          cfg,
		Metrics:         metricsCollector,
		Logger:          appLogger,
		resourceManager: lifecycle.NewManager(appLogger),
	}

	if optState.store != nil {
		app.Store = optState.store
	} else {
		breakers := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker, appLogger,
			func(service circuitbreaker.ServiceType, _, to gobreaker.State) {
				metricsCollector.SetCircuitBreakerState(string(service), int(to))
			})
		store, err := storage.Open(cfg.Storage, cfg.Logging.Environment, breakers, metricsCollector, appLogger)
		if err != nil {
			return nil, err
		}
		app.Store = store
		app.resourceManager.Register("record-store", store)
		if cfg.Storage.Backend == config.BackendMemory || cfg.Storage.Backend == "" {
			appLogger.Warn().Msg("musichub: in-memory store, records are lost on restart")
		}
	}

	cols := storage.CollectionsFromConfig(cfg.Storage.Collections)

	processor := payments.NewMockProcessor(payments.ProcessorConfig{
		ProcessingDelay: cfg.Payments.ProcessingDelay.Duration,
		Currency:        cfg.Payments.Currency,
		TestCards: payments.TestCards{
			Success:      cfg.Payments.TestCards.Success,
			Expired:      cfg.Payments.TestCards.Expired,
			Declined:     cfg.Payments.TestCards.Declined,
			Insufficient: cfg.Payments.TestCards.Insufficient,
		},
	}, payments.WithProcessorClock(optState.clock))

	app.Payments = payments.NewService(processor, app.Store,
		payments.WithObserver(payments.NewMetricsObserver(metricsCollector, processor.Currency())),
		payments.WithClock(optState.clock),
		payments.WithCollection(cols.Transactions),
	)
	app.Catalog = catalog.NewService(app.Store,
		catalog.WithClock(optState.clock),
		catalog.WithCacheTTL(cfg.Catalog.CacheTTL.Duration),
		catalog.WithCollections(cols),
	)
	app.Analytics = analytics.NewService(app.Store, app.Catalog,
		analytics.WithCollections(cols),
		analytics.WithMetrics(metricsCollector),
	)

	deps := httpserver.Deps{
		Config:    cfg,
		Store:     app.Store,
		Payments:  app.Payments,
		Catalog:   app.Catalog,
		Analytics: app.Analytics,
		Metrics:   metricsCollector,
		Gatherer:  gatherer,
		Logger:    appLogger,
	}
	if optState.router != nil {
		app.router = optState.router
		httpserver.ConfigureRouter(app.router, deps)
	} else {
		app.server = httpserver.New(deps)
	}

	return app, nil
}

// Handler exposes the app's routes as an http.Handler.
func (a *App) Handler() http.Handler {
	if a.server != nil {
		return a.server.Handler()
	}
	return a.router
}

// ListenAndServe serves on the configured address. It is only available
// when the app owns its router.
func (a *App) ListenAndServe() error {
	if a.server == nil {
		return errors.New("musichub: app was built on an external router")
	}
	return a.server.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases owned resources,
// all within ctx.
func (a *App) Shutdown(ctx context.Context) error {
	var serverErr error
	if a.server != nil {
		serverErr = a.server.Shutdown(ctx)
	}
	return errors.Join(serverErr, a.resourceManager.Shutdown(ctx))
}

// Close releases resources owned by the app, newest first, without
// touching the HTTP server.
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding MusicHub.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
