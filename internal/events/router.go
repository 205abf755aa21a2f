// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/campusfeed/internal/cache"
)

// MetadataEventID is the message metadata key holding the event ID.
const MetadataEventID = "event_id"

// MetadataEventType is the message metadata key holding the event type.
const MetadataEventType = "event_type"

// Router wraps the Watermill router with the engine's middleware chain.
type Router struct {
	router    *message.Router
	config    RouterConfig
	logger    watermill.LoggerAdapter
	poisonPub message.Publisher
	handlers  map[string]*message.Handler
	dedupRepo *InMemoryDeduplicator
	running   atomic.Bool
}

// InMemoryDeduplicator implements middleware.ExpiringKeyRepository over a
// TTL LRU so memory stays bounded under sustained traffic.
type InMemoryDeduplicator struct {
	cache      *cache.LRU[string]
	ttl        time.Duration
	duplicates atomic.Int64
}

// NewInMemoryDeduplicator creates a deduplicator holding at most capacity keys.
func NewInMemoryDeduplicator(capacity int, ttl time.Duration) *InMemoryDeduplicator {
	return &InMemoryDeduplicator{
		cache: cache.NewLRU[string](capacity, ttl),
		ttl:   ttl,
	}
}

// IsDuplicate records key and reports whether it was already seen within
// the TTL.
func (d *InMemoryDeduplicator) IsDuplicate(_ context.Context, key string) (bool, error) {
	dup := d.cache.IsDuplicate(key)
	if dup {
		d.duplicates.Add(1)
	}
	return dup, nil
}

// Duplicates returns how many messages were dropped as duplicates.
func (d *InMemoryDeduplicator) Duplicates() int64 {
	return d.duplicates.Load()
}

// Stats returns the counters of the underlying key set.
func (d *InMemoryDeduplicator) Stats() cache.Stats {
	return d.cache.Stats()
}

// sweep drops expired keys once per TTL until ctx is done, so keys from a
// quiet period do not sit in memory until capacity evicts them.
func (d *InMemoryDeduplicator) sweep(ctx context.Context) {
	interval := d.ttl
	if interval <= 0 {
		interval = cache.DefaultTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cache.CleanupExpired()
		}
	}
}

// eventKey returns the event ID of a message, falling back to the message UUID.
func eventKey(msg *message.Message) (string, error) {
	if id := msg.Metadata.Get(MetadataEventID); id != "" {
		return id, nil
	}
	return msg.UUID, nil
}

// NewRouter creates a Watermill router with the middleware chain, outermost
// first:
//
//  1. PoisonQueue: publishes anything that still fails and acks it
//  2. Deduplicator: drops redelivered event IDs
//  3. Throttle: optional rate limit
//  4. Retry: exponential backoff, skipped for PermanentError
//  5. Recoverer: turns handler panics into errors
//
// Deduplication sits outside Retry so a retried attempt is never mistaken
// for a redelivery.
func NewRouter(
	cfg *RouterConfig,
	poisonPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:    wmRouter,
		config:    *cfg,
		logger:    logger,
		poisonPub: poisonPublisher,
		handlers:  make(map[string]*message.Handler),
	}

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	if cfg.DeduplicationEnabled {
		r.dedupRepo = NewInMemoryDeduplicator(cfg.DeduplicationCapacity, cfg.DeduplicationTTL)
		dedup := &middleware.Deduplicator{
			KeyFactory: eventKey,
			Repository: r.dedupRepo,
			Timeout:    time.Second,
		}
		wmRouter.AddMiddleware(dedup.Middleware)
	}

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		ShouldRetry: func(params middleware.RetryParams) bool {
			return !IsPermanent(params.Err)
		},
		Logger: logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	wmRouter.AddMiddleware(middleware.Recoverer)

	return r, nil
}

// AddConsumerHandler registers a handler that doesn't produce output messages.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(
		name,
		subscribeTopic,
		subscriber,
		handler,
	)
	r.handlers[name] = h
	return h
}

// Handlers returns the names of the registered handlers.
func (r *Router) Handlers() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Run starts the router and blocks until context cancellation or Close().
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)

	if r.dedupRepo != nil {
		sweepCtx, stop := context.WithCancel(ctx)
		defer stop()
		go r.dedupRepo.sweep(sweepCtx)
	}
	return r.router.Run(ctx)
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router.
// Waits for in-flight messages to complete up to CloseTimeout.
func (r *Router) Close() error {
	return r.router.Close()
}

// IsRunning returns whether the router is currently processing messages.
func (r *Router) IsRunning() bool {
	return r.running.Load() && r.router.IsRunning()
}

// Duplicates returns how many redelivered events were dropped.
func (r *Router) Duplicates() int64 {
	if r.dedupRepo == nil {
		return 0
	}
	return r.dedupRepo.Duplicates()
}

// DedupStats returns the deduplication key set counters, or zero values
// when deduplication is disabled.
func (r *Router) DedupStats() cache.Stats {
	if r.dedupRepo == nil {
		return cache.Stats{}
	}
	return r.dedupRepo.Stats()
}

// HealthCheck returns nil while the router is processing messages.
func (r *Router) HealthCheck(_ context.Context) error {
	if !r.IsRunning() {
		return ErrRouterNotRunning
	}
	return nil
}
