package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/musichub/server/internal/circuitbreaker"
	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/metrics"
)

// Open builds the configured backend and wraps it with instrumentation
// and, for network backends, a circuit breaker.
func Open(cfg config.StorageConfig, environment string, breakers *circuitbreaker.Manager, m *metrics.Metrics, log zerolog.Logger) (RecordStore, error) {
	var (
		store  RecordStore
		remote bool
		err    error
	)

	switch cfg.Backend {
	case config.BackendMemory, "":
		store = NewMemoryStore()
	case config.BackendFile:
		store, err = NewFileStore(cfg.FilePath, cfg.FlushInterval.Duration, environment, log)
	case config.BackendPostgres:
		store, err = NewPostgresStore(cfg)
		remote = true
	case config.BackendMongoDB:
		store, err = NewMongoDBStore(cfg.MongoDBURL, cfg.MongoDBDatabase, cfg.QueryTimeout.Duration)
		remote = true
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	if remote && breakers != nil {
		store = NewBreakerStore(store, breakers)
	}
	if m != nil {
		store = NewInstrumentedStore(store, m, cfg.Backend)
	}

	log.Info().Str("backend", cfg.Backend).Msg("storage.opened")
	return store, nil
}

// Collections names the record collections the services use.
type Collections struct {
	Transactions      string
	Songs             string
	Users             string
	ListeningSessions string
}

// CollectionsFromConfig maps config names onto Collections.
func CollectionsFromConfig(cfg config.CollectionsConfig) Collections {
	return Collections{
		Transactions:      cfg.Transactions,
		Songs:             cfg.Songs,
		Users:             cfg.Users,
		ListeningSessions: cfg.ListeningSessions,
	}
}

// DefaultCollections returns the standard collection names.
func DefaultCollections() Collections {
	return Collections{
		Transactions:      "transactions",
		Songs:             "songs",
		Users:             "users",
		ListeningSessions: "listening_sessions",
	}
}
