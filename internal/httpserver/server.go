package httpserver

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/musichub/server/internal/analytics"
	"github.com/musichub/server/internal/catalog"
	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/device"
	"github.com/musichub/server/internal/logger"
	"github.com/musichub/server/internal/metrics"
	"github.com/musichub/server/internal/payments"
	"github.com/musichub/server/internal/ratelimit"
	"github.com/musichub/server/internal/schema"
	"github.com/musichub/server/internal/storage"
)

var (
	serverStartTime = time.Now()
)

// Deps are the services the HTTP layer serves.
type Deps struct {
	Config    *config.Config
	Store     storage.RecordStore
	Payments  *payments.Service
	Catalog   *catalog.Service
	Analytics *analytics.Service
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics; defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server owns the listener for a router built by ConfigureRouter.
type Server struct {
	httpServer *http.Server
}

type handlers struct {
	cfg       *config.Config
	store     storage.RecordStore
	payments  *payments.Service
	catalog   *catalog.Service
	analytics *analytics.Service
	validate  *validator.Validate
	logger    zerolog.Logger
}

// New builds the HTTP server with configured router.
func New(deps Deps) *Server {
	router := chi.NewRouter()
	ConfigureRouter(router, deps)

	cfg := deps.Config
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}
}

func newHandlers(deps Deps) handlers {
	return handlers{
		cfg:       deps.Config,
		store:     deps.Store,
		payments:  deps.Payments,
		catalog:   deps.Catalog,
		analytics: deps.Analytics,
		validate:  schema.NewValidator(),
		logger:    deps.Logger,
	}
}

// ConfigureRouter attaches MusicHub routes to an existing router.
func ConfigureRouter(router chi.Router, deps Deps) {
	if router == nil {
		return
	}
	cfg := deps.Config
	handler := newHandlers(deps)

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", ratelimit.UserHeader},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)

	// logger.Middleware assigns its own req_ ID (or reuses X-Request-ID).
	// chi's RequestID only reuses that header, so without it the two IDs
	// differ; log lines carry the logger's.
	router.Use(logger.Middleware(deps.Logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(device.Middleware)

	adminKey := cfg.Server.AdminAPIKey
	rateLimitCfg := ratelimit.FromSettings(cfg.RateLimit, deps.Metrics)
	rateLimitCfg.Exempt = func(r *http.Request) bool { return validAdminKey(r, adminKey) }
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.UserLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	prefix := strings.TrimRight(cfg.Server.RoutePrefix, "/")

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Lightweight endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get(prefix+"/health", handler.health)
		r.With(requireAdmin(adminKey, true)).Handle(prefix+"/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post(prefix+"/v1/purchases", handler.purchase)
		r.Get(prefix+"/v1/purchases/verify", handler.verifyPurchase)

		r.Get(prefix+"/v1/songs", handler.listSongs)
		r.Get(prefix+"/v1/songs/{id}", handler.getSong)
		r.Get(prefix+"/v1/users/{id}/songs", handler.userSongs)

		r.Post(prefix+"/v1/listening-sessions", handler.trackSession)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(adminKey, false))
			r.Post(prefix+"/v1/songs", handler.createSong)
			r.Patch(prefix+"/v1/songs/{id}", handler.updateSong)
			r.Delete(prefix+"/v1/songs/{id}", handler.deleteSong)

			r.Get(prefix+"/v1/analytics/metrics", handler.dashboardMetrics)
			r.Get(prefix+"/v1/analytics/songs/{id}/listening", handler.listeningMetrics)
			r.Get(prefix+"/v1/artists/featured", handler.featuredArtists)
		})
	})
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func validAdminKey(r *http.Request, key string) bool {
	if key == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}
