// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository persists Preference records.
//
// Implementations must make Save atomic per call and enforce the optimistic
// version contract:
//   - Version == 0: create; fails with ErrConcurrentUpdate if a record exists
//   - Version > 0: compare-and-swap; fails with ErrConcurrentUpdate if the
//     stored version differs
//
// On success Save increments p.Version in place.
type Repository interface {
	// Load returns the stored record or ErrNotFound.
	Load(ctx context.Context, userID string) (*Preference, error)

	// Save writes p under the optimistic version contract.
	Save(ctx context.Context, p *Preference) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error

	// UserIDs pages through user IDs in ascending order, starting strictly
	// after the given ID. An empty result means the end was reached.
	UserIDs(ctx context.Context, after string, limit int) ([]string, error)

	// Close releases resources held by the repository.
	Close() error
}

// Catalog is the read side of the source catalog that the engine needs:
// which sources every user follows by default.
type Catalog interface {
	// DefaultSources returns the IDs of all current default sources.
	DefaultSources(ctx context.Context) ([]string, error)

	// SetDefault marks or unmarks a source as a default source.
	SetDefault(ctx context.Context, sourceID string, isDefault bool) error
}

// Store provides get-or-create and save on top of a Repository.
// It is the only component that constructs fresh Preference records.
type Store struct {
	repo    Repository
	catalog Catalog
	ledger  *Ledger
	cfg     *Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewStore creates a Store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(repo Repository, catalog Catalog, cfg *Config, logger zerolog.Logger) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{
		repo:    repo,
		catalog: catalog,
		ledger:  NewLedger(&cfg.Decay),
		cfg:     cfg,
		logger:  logger.With().Str("component", "preference_store").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Repository returns the underlying repository.
func (s *Store) Repository() Repository {
	return s.repo
}

// Catalog returns the source catalog.
func (s *Store) Catalog() Catalog {
	return s.catalog
}

// Get returns the stored record without creating one.
func (s *Store) Get(ctx context.Context, userID string) (*Preference, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return s.repo.Load(ctx, userID)
}

// GetOrCreate returns the stored record for userID, creating and persisting
// an initialized one on first access. A create that loses a race with a
// concurrent create re-reads the winner.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*Preference, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	p, err := s.repo.Load(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load preference: %w", err)
	}

	fresh, err := s.NewPreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.repo.Save(ctx, fresh)
	switch {
	case err == nil:
		s.logger.Debug().
			Str("user_id", userID).
			Int("default_sources", len(fresh.SourceWeights)).
			Msg("preference created")
		return fresh, nil
	case errors.Is(err, ErrConcurrentUpdate):
		p, err = s.repo.Load(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("reload preference after create race: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("create preference: %w", err)
	}
}

// NewPreference builds an unsaved, initialized record: uniform weights over
// the current default sources, a uniform 1/T tag vector and a constant
// keyword vector.
func (s *Store) NewPreference(ctx context.Context, userID string) (*Preference, error) {
	defaults, err := s.defaultSources(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tagDim := s.cfg.Dimensions.TagDim
	return &Preference{
		UserID:        userID,
		SourceWeights: s.ledger.Uniform(defaults),
		TagVector:     Uniform(tagDim, 1/float64(tagDim)),
		KeywordVector: Uniform(s.cfg.Dimensions.KeywordDim, s.cfg.Dimensions.KeywordInit),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Save persists p under the optimistic version contract.
func (s *Store) Save(ctx context.Context, p *Preference) error {
	p.UpdatedAt = s.now()
	return s.repo.Save(ctx, p)
}

// Delete removes the record for userID.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	return s.repo.Delete(ctx, userID)
}

func (s *Store) defaultSources(ctx context.Context) ([]string, error) {
	if s.catalog == nil {
		return nil, nil
	}
	ids, err := s.catalog.DefaultSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list default sources: %w", err)
	}
	return ids, nil
}
