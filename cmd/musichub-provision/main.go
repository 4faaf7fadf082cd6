package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/logger"
	"github.com/musichub/server/internal/provision"
	"github.com/musichub/server/internal/storage"
)

// Creates or promotes the administrator named by MUSICHUB_ADMIN_EMAIL,
// MUSICHUB_ADMIN_NAME and MUSICHUB_ADMIN_PASSWORD.
func main() {
	configPath := flag.String("config", os.Getenv("MUSICHUB_CONFIG"), "path to config yaml (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("provision.dotenv_failed")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("provision.config_invalid")
	}
	appLog := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "musichub-provision",
		Environment: cfg.Logging.Environment,
	})
	if cfg.Storage.Backend == config.BackendMemory {
		appLog.Warn().Msg("provision.memory_backend: the admin record will not outlive this process")
	}

	store, err := storage.Open(cfg.Storage, cfg.Logging.Environment, nil, nil, appLog)
	if err != nil {
		appLog.Fatal().Err(err).Msg("provision.storage_failed")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := provision.EnsureAdmin(ctx, store, provision.AdminAccount{
		Email:    cfg.Admin.Email,
		Name:     cfg.Admin.Name,
		Password: cfg.Admin.Password,
	}, provision.WithUsersCollection(cfg.Storage.Collections.Users))
	if err != nil {
		appLog.Error().Err(err).Msg("provision.failed")
		store.Close()
		os.Exit(1)
	}

	appLog.Info().
		Str("user_id", res.UserID).
		Str("email", logger.RedactEmail(cfg.Admin.Email)).
		Str("outcome", string(res.Outcome)).
		Msg("provision.admin_ready")
	fmt.Printf("admin %s: %s\n", res.Outcome, res.UserID)
}
