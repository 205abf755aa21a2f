// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/campusfeed/internal/metrics"
	"github.com/tomtom215/campusfeed/internal/preference"
)

// BreakerConfig configures the circuit breaker in front of a backend.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRequests is the number of requests allowed in half-open state.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval is the cyclic reset period for counts in closed state.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout"`

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerBackend guards the hot-path calls of a Backend with a circuit
// breaker. Not-found and version conflicts are normal outcomes and never
// count as failures.
type BreakerBackend struct {
	Backend
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

// NewBreaker wraps b.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBreaker(b Backend, name string, cfg BreakerConfig, logger zerolog.Logger) *BreakerBackend {
	logger = logger.With().Str("component", "storage_breaker").Str("breaker", name).Logger()
	metrics.SetCircuitBreakerState(name, gobreaker.StateClosed.String())

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, preference.ErrNotFound) ||
				errors.Is(err, preference.ErrConcurrentUpdate) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("storage circuit breaker state change")
			metrics.SetCircuitBreakerState(name, to.String())
		},
	})

	return &BreakerBackend{Backend: b, cb: cb, name: name, logger: logger}
}

// State returns the breaker state name.
func (b *BreakerBackend) State() string {
	return b.cb.State().String()
}

// Load implements preference.Repository.
func (b *BreakerBackend) Load(ctx context.Context, userID string) (*preference.Preference, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.Backend.Load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*preference.Preference), nil
}

// Save implements preference.Repository.
func (b *BreakerBackend) Save(ctx context.Context, p *preference.Preference) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.Backend.Save(ctx, p)
	})
	return err
}

// Delete implements preference.Repository.
func (b *BreakerBackend) Delete(ctx context.Context, userID string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.Backend.Delete(ctx, userID)
	})
	return err
}

// DefaultSources implements preference.Catalog.
func (b *BreakerBackend) DefaultSources(ctx context.Context) ([]string, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.Backend.DefaultSources(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Unwrap returns the guarded backend.
func (b *BreakerBackend) Unwrap() Backend {
	return b.Backend
}
