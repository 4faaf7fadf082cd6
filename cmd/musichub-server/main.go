package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/pkg/musichub"
)

func main() {
	configPath := flag.String("config", os.Getenv("MUSICHUB_CONFIG"), "path to config yaml (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("server.dotenv_failed")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("server.config_invalid")
	}

	app, err := musichub.NewApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("server.init_failed")
	}
	appLog := app.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info().
			Str("address", cfg.Server.Address).
			Str("route_prefix", cfg.Server.RoutePrefix).
			Str("storage", cfg.Storage.Backend).
			Msg("server.listening")
		serveErr <- app.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error().Err(err).Msg("server.listen_failed")
		}
	case <-ctx.Done():
		appLog.Info().Msg("server.shutting_down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		appLog.Error().Err(err).Msg("server.shutdown_failed")
		os.Exit(1)
	}
	appLog.Info().Msg("server.stopped")
}
