// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/preference"
)

// Backend is everything the preference engine persists.
type Backend interface {
	preference.Repository
	preference.Catalog
	preference.JobStore
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config selects and configures a backend.
type Config struct {
	Backend string        `koanf:"backend"`
	Badger  BadgerConfig  `koanf:"badger"`
	SQL     SQLConfig     `koanf:"sql"`
	Breaker BreakerConfig `koanf:"breaker"`

	// DefaultSources seeds the catalog when it is empty.
	DefaultSources []string `koanf:"default_sources"`
}

// Open creates the configured backend, seeds the catalog if needed and
// wraps the result in a circuit breaker when enabled.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch cfg.Backend {
	case BackendMemory, "":
		b = NewMemoryRepository()
	case BackendBadger:
		b, err = OpenBadger(cfg.Badger)
	case BackendSQLite, BackendMySQL:
		sqlCfg := cfg.SQL
		sqlCfg.Dialect = Dialect(cfg.Backend)
		b, err = OpenSQL(ctx, sqlCfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := seedDefaults(ctx, b, cfg.DefaultSources); err != nil {
		_ = b.Close()
		return nil, err
	}

	logger.Info().
		Str("backend", backendName(cfg.Backend)).
		Int("seeded_defaults", len(cfg.DefaultSources)).
		Bool("circuit_breaker", cfg.Breaker.Enabled).
		Msg("preference storage opened")

	if cfg.Breaker.Enabled {
		return NewBreaker(b, "storage-"+backendName(cfg.Backend), cfg.Breaker, logger), nil
	}
	return b, nil
}

func seedDefaults(ctx context.Context, b Backend, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	existing, err := b.DefaultSources(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, id := range ids {
		if err := b.SetDefault(ctx, id, true); err != nil {
			return fmt.Errorf("seed default source %s: %w", id, err)
		}
	}
	return nil
}

func backendName(s string) string {
	if s == "" {
		return BackendMemory
	}
	return s
}

// GarbageCollector is implemented by backends that reclaim disk space in
// the background.
type GarbageCollector interface {
	RunGC(discardRatio float64) (int, error)
}

// AsGarbageCollector returns the garbage collector behind b, looking through
// a circuit breaker wrapper.
func AsGarbageCollector(b Backend) (GarbageCollector, bool) {
	if w, ok := b.(*BreakerBackend); ok {
		b = w.Unwrap()
	}
	gc, ok := b.(GarbageCollector)
	return gc, ok
}
