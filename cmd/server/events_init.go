// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/config"
	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/logging"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/supervisor/services"
)

// EventComponents holds the lifecycle event bus: the transport, the
// breaker-wrapped publisher, and the handler that applies events to the
// preference engine. Routers are built on demand because a Watermill
// router cannot be run twice.
type EventComponents struct {
	cfg       events.RouterConfig
	transport *events.Transport
	publisher *events.Publisher
	handler   *events.Handler
	wmLogger  watermill.LoggerAdapter
	logger    zerolog.Logger

	current atomic.Pointer[events.Router]
	builds  atomic.Int64
}

// InitEvents opens the configured transport and prepares the handler.
// Returns nil, nil when the event bus is disabled.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func InitEvents(ctx context.Context, cfg *config.EventsConfig, updater *preference.Updater, fanout *preference.FanOut, logger zerolog.Logger) (*EventComponents, error) {
	if !cfg.Enabled {
		logger.Info().Msg("Event bus disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}

	wmLogger := watermill.NewSlogLogger(logging.NewComponentSlogLogger("watermill"))

	transport, err := events.NewTransport(ctx, &cfg.Bus, wmLogger, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s transport: %w", cfg.Bus.Kind, err)
	}

	handler, err := events.NewHandler(updater, fanout, logger)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	ec := &EventComponents{
		cfg:       cfg.Router,
		transport: transport,
		publisher: events.NewPublisher(transport.Publisher, cfg.Publisher, logger),
		handler:   handler,
		wmLogger:  wmLogger,
		logger:    logger.With().Str("component", "events").Logger(),
	}

	ec.logger.Info().
		Str("transport", transport.Kind).
		Bool("dedup", cfg.Router.DeduplicationEnabled).
		Str("poison_topic", cfg.Router.PoisonQueueTopic).
		Msg("Event bus initialized")

	return ec, nil
}

// Publisher returns the publisher the API uses for default-source changes.
func (ec *EventComponents) Publisher() *events.Publisher {
	return ec.publisher
}

// NewRouter builds a fresh router with every lifecycle handler registered.
// It is the RouterFactory of the supervised EventRouterService.
func (ec *EventComponents) NewRouter() (services.EventRouter, error) {
	r, err := events.NewRouter(&ec.cfg, ec.transport.Publisher, ec.wmLogger)
	if err != nil {
		return nil, err
	}
	ec.handler.Register(r, ec.transport.Subscriber)
	ec.current.Store(r)

	if n := ec.builds.Add(1); n > 1 {
		ec.logger.Warn().Int64("generation", n).Msg("Event router rebuilt after stop")
	}
	return r, nil
}

// HealthCheck reports whether the current router is processing messages.
func (ec *EventComponents) HealthCheck(ctx context.Context) error {
	r := ec.current.Load()
	if r == nil {
		return events.ErrRouterNotRunning
	}
	return r.HealthCheck(ctx)
}

// Close stops publishing and releases the transport. The router itself is
// stopped by its supervisor through context cancellation.
func (ec *EventComponents) Close() error {
	stats := ec.handler.Stats()
	ec.logger.Info().
		Int64("processed", stats.Processed).
		Int64("rejected", stats.Rejected).
		Int64("invalid", stats.Invalid).
		Int64("failed", stats.Failed).
		Msg("Closing event bus")

	if r := ec.current.Load(); r != nil {
		dedup := r.DedupStats()
		ec.logger.Info().
			Int64("duplicates", r.Duplicates()).
			Int64("dedup_hits", dedup.Hits).
			Int64("dedup_misses", dedup.Misses).
			Int64("dedup_evictions", dedup.Evictions).
			Int("dedup_size", dedup.Size).
			Msg("Event deduplication summary")
	}

	return errors.Join(ec.publisher.Close(), ec.transport.Close())
}
