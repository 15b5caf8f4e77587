package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"hotspot_service/internal/api"
	"hotspot_service/internal/config"
	"hotspot_service/internal/core"
	"hotspot_service/internal/domain/repository"
	"hotspot_service/internal/infrastructure/modelstore"
	"hotspot_service/internal/logging"
	"hotspot_service/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация репозиториев
	db, err := repository.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare schema")
	}
	eventsRepo := repository.NewEventsRepository(db)
	weatherRepo := repository.NewWeatherRepository(db)

	m := metrics.New()
	models := modelstore.New(cfg.ModelDir, logger, m)
	go func() {
		if err := models.Watch(ctx); err != nil {
			logger.Warn().Err(err).Msg("Model watcher stopped, artifacts will not reload")
		}
	}()

	service := core.NewHotspotService(
		core.NewScorer(cfg.Scoring),
		cfg.Weather,
		eventsRepo,
		weatherRepo,
		models,
		cfg.Center,
		logger,
	)

	// Настройка HTTP-обработчиков
	handler := api.NewHandler(service, m, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(cfg.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("db_driver", cfg.DatabaseDriver).
		Str("model_dir", cfg.ModelDir).
		Msg("Starting server")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server error")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
		logger.Info().Msg("Server stopped")
	}
}
