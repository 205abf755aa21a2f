// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/api"
	"github.com/tomtom215/campusfeed/internal/config"
	"github.com/tomtom215/campusfeed/internal/logging"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/preference/storage"
	"github.com/tomtom215/campusfeed/internal/supervisor"
	"github.com/tomtom215/campusfeed/internal/supervisor/services"
)

// engine is the wired preference engine.
type engine struct {
	store   *preference.Store
	updater *preference.Updater
	ranker  *preference.Ranker
	fanout  *preference.FanOut
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newEngine(backend storage.Backend, cfg *config.Config, logger zerolog.Logger) (*engine, error) {
	prefCfg := cfg.Preference.Clone()

	store := preference.NewStore(backend, backend, prefCfg, logger)
	updater, err := preference.NewUpdater(store, prefCfg, logger)
	if err != nil {
		return nil, err
	}
	scorer := preference.NewScorer(prefCfg, logger)

	return &engine{
		store:   store,
		updater: updater,
		ranker:  preference.NewRanker(store, scorer, logger),
		fanout:  preference.NewFanOut(updater, backend, cfg.FanOut.Engine(), logger),
	}, nil
}

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.Logging())
	logger := logging.Logger()

	logging.Info().
		Str("storage", cfg.Storage.Backend).
		Bool("events", cfg.Events.Enabled).
		Str("transport", cfg.Events.Bus.Kind).
		Int("tag_dim", cfg.Preference.Dimensions.TagDim).
		Int("keyword_dim", cfg.Preference.Dimensions.KeywordDim).
		Str("source_mode", string(cfg.Preference.Decay.SourceMode)).
		Msg("Starting Campusfeed with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open preference storage")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing preference storage")
		}
	}()

	eng, err := newEngine(backend, cfg, logger)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize preference engine")
		return
	}

	eventComponents, err := InitEvents(ctx, &cfg.Events, eng.updater, eng.fanout, logger)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize event bus")
		return
	}
	if eventComponents != nil {
		defer func() {
			if err := eventComponents.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
	}

	opts := []api.HandlerOption{
		api.WithFanOut(eng.fanout),
		api.WithHealthCheck("storage", func(ctx context.Context) error {
			_, err := backend.DefaultSources(ctx)
			return err
		}),
	}
	if eventComponents != nil {
		opts = append(opts,
			api.WithPublisher(eventComponents.Publisher()),
			api.WithHealthCheck("event_router", eventComponents.HealthCheck),
		)
	}

	handler, err := api.NewHandler(eng.updater, eng.ranker, logger, opts...)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create API handler")
		return
	}
	defer handler.Wait()
	defer handler.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, api.NewChiMiddleware(cfg.Server.Middleware())),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	// Data layer
	if cfg.Maintenance.Enabled {
		loc, _ := cfg.Maintenance.Location() // validated by config.Load
		tasks := buildMaintenanceTasks(&cfg.Maintenance, eng.updater, backend, logger)
		maintenance, err := services.NewMaintenanceService(tasks, loc, logger)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to create maintenance service")
			return
		}
		tree.AddDataService(maintenance)
		logging.Info().Int("tasks", len(tasks)).Str("schedule", cfg.Maintenance.Schedule).Msg("Maintenance service added to supervisor tree")
	}
	tree.AddDataService(services.NewFanOutResumerService(eng.fanout, cfg.FanOut.ResumeInterval, logger))

	// Messaging layer
	if eventComponents != nil {
		tree.AddMessagingService(services.NewEventRouterService(eventComponents.NewRouter))
		logging.Info().Msg("Event router added to supervisor tree (messaging layer)")
	}

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server added to supervisor tree (api layer)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	commands, conflicts := eng.updater.Stats()
	logging.Info().
		Int64("commands", commands).
		Int64("conflicts", conflicts).
		Msg("Application stopped gracefully")
}
