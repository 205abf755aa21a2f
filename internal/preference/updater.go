// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

// Operation names used in logs and metrics.
const (
	OpInit           = "init"
	OpSubscribe      = "subscribe"
	OpUnsubscribe    = "unsubscribe"
	OpAction         = "action"
	OpDefaultAdded   = "default_added"
	OpDefaultRemoved = "default_removed"
	OpRenormalize    = "renormalize"
	OpDelete         = "delete"
)

// errNoChange short-circuits a mutation that found nothing to do.
var errNoChange = errors.New("no change")

// mutation edits a working copy of a Preference. The copy is saved only
// when the mutation returns nil.
type mutation func(ctx context.Context, p *Preference) error

// Updater applies the profile mutation rules. Each public method is one
// command: one locked read-modify-write ending in a single Save.
type Updater struct {
	store  *Store
	ledger *Ledger
	cfg    *Config
	locks  *userLocks
	logger zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error

	conflicts atomic.Int64
	commands  atomic.Int64
}

// NewUpdater creates an Updater bound to store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewUpdater(store *Store, cfg *Config, logger zerolog.Logger) (*Updater, error) {
	if store == nil {
		return nil, errors.New("preference store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Updater{
		store:  store,
		ledger: NewLedger(&cfg.Decay),
		cfg:    cfg,
		locks:  newUserLocks(),
		logger: logger.With().Str("component", "preference_updater").Logger(),
		sleep:  sleepContext,
	}, nil
}

// Store returns the store the updater writes through.
func (u *Updater) Store() *Store {
	return u.store
}

// Ledger returns the weight ledger used by the updater.
func (u *Updater) Ledger() *Ledger {
	return u.ledger
}

// Stats returns the number of commands run and optimistic conflicts seen.
func (u *Updater) Stats() (commands, conflicts int64) {
	return u.commands.Load(), u.conflicts.Load()
}

// Init makes sure the user has an initialized record. An existing record
// with an empty weight map is re-seeded uniformly over the current default
// sources; anything else is left alone.
func (u *Updater) Init(ctx context.Context, userID string) (*Preference, error) {
	return u.mutate(ctx, OpInit, userID, func(ctx context.Context, p *Preference) error {
		changed := false

		if len(p.SourceWeights) == 0 {
			defaults, err := u.store.defaultSources(ctx)
			if err != nil {
				return err
			}
			if len(defaults) > 0 {
				p.SourceWeights = u.ledger.Uniform(defaults)
				changed = true
			}
		}
		if p.TagVector == nil {
			p.TagVector = Uniform(u.cfg.Dimensions.TagDim, 1/float64(u.cfg.Dimensions.TagDim))
			changed = true
		}
		if p.KeywordVector == nil {
			p.KeywordVector = Uniform(u.cfg.Dimensions.KeywordDim, u.cfg.Dimensions.KeywordInit)
			changed = true
		}

		if !changed {
			return errNoChange
		}
		return nil
	})
}

// Subscribe records an explicit subscription and inserts the source into
// the weight map. Returns ErrAlreadySubscribed if the user already
// subscribed to sourceID.
func (u *Updater) Subscribe(ctx context.Context, userID, sourceID string) error {
	if sourceID == "" {
		return ErrInvalidSourceID
	}

	_, err := u.mutate(ctx, OpSubscribe, userID, func(_ context.Context, p *Preference) error {
		if p.IsSubscribed(sourceID) {
			return fmt.Errorf("%w: user %s, source %s", ErrAlreadySubscribed, userID, sourceID)
		}
		p.addSubscription(sourceID)
		p.SourceWeights, _ = u.ledger.Insert(p.SourceWeights, sourceID)
		return nil
	})
	return err
}

// Unsubscribe drops an explicit subscription. The source weight is removed
// unless the source is a current default, which the user keeps following
// implicitly. Returns ErrNotSubscribed, leaving the record unchanged, when
// there was no subscription.
func (u *Updater) Unsubscribe(ctx context.Context, userID, sourceID string) error {
	if sourceID == "" {
		return ErrInvalidSourceID
	}

	_, err := u.mutate(ctx, OpUnsubscribe, userID, func(ctx context.Context, p *Preference) error {
		if !p.removeSubscription(sourceID) {
			u.logger.Warn().
				Str("user_id", userID).
				Str("source_id", sourceID).
				Msg("unsubscribe for a source the user is not subscribed to")
			return fmt.Errorf("%w: user %s, source %s", ErrNotSubscribed, userID, sourceID)
		}

		isDefault, err := u.isDefault(ctx, sourceID)
		if err != nil {
			return err
		}
		if !isDefault {
			p.SourceWeights, _ = u.ledger.Remove(p.SourceWeights, sourceID)
		}
		return nil
	})
	return err
}

// RecordAction applies the decay rule for a browse or favorite of article.
// The source weight, tag vector and keyword vector are updated together and
// saved once. A vector whose dimension disagrees with the profile skips only
// its own blend.
func (u *Updater) RecordAction(ctx context.Context, userID string, article *Article, kind ActionKind) error {
	if article == nil || article.SourceID == "" {
		return ErrInvalidSourceID
	}
	alpha, err := u.cfg.AlphaFor(kind)
	if err != nil {
		return err
	}

	_, err = u.mutate(ctx, OpAction, userID, func(_ context.Context, p *Preference) error {
		weights, seeded := u.ledger.DecayUpdate(p.SourceWeights, article.SourceID, alpha)
		if seeded {
			u.logger.Warn().
				Str("user_id", userID).
				Str("source_id", article.SourceID).
				Str("article_id", article.ID).
				Float64("bootstrap_weight", u.cfg.Decay.BootstrapWeight).
				Msg("action on a source without weight, bootstrapping entry")
		}
		p.SourceWeights = weights

		if blended, ok := u.blend(userID, article, "tag_vector", p.TagVector, article.TagVector, alpha); ok {
			p.TagVector = blended
		}
		if blended, ok := u.blend(userID, article, "semantic_vector", p.KeywordVector, article.SemanticVector, alpha); ok {
			p.KeywordVector = blended
		}
		return nil
	})
	return err
}

// ApplyDefaultAdded inserts a newly added default source into one user's
// weights. It reports whether the record changed; a user who already has
// the source is left alone, which makes repeated fan-out passes harmless.
func (u *Updater) ApplyDefaultAdded(ctx context.Context, userID, sourceID string) (bool, error) {
	if sourceID == "" {
		return false, ErrInvalidSourceID
	}

	applied := false
	_, err := u.mutate(ctx, OpDefaultAdded, userID, func(ctx context.Context, p *Preference) error {
		if p.SourceWeights.Has(sourceID) {
			return errNoChange
		}
		if len(p.SourceWeights) == 0 {
			defaults, err := u.store.defaultSources(ctx)
			if err != nil {
				return err
			}
			p.SourceWeights = u.ledger.Uniform(append(defaults, sourceID))
		} else {
			p.SourceWeights, _ = u.ledger.Insert(p.SourceWeights, sourceID)
		}
		applied = true
		return nil
	})
	return applied, err
}

// ApplyDefaultRemoved removes a retired default source from one user's
// weights. Users explicitly subscribed to the source keep it.
func (u *Updater) ApplyDefaultRemoved(ctx context.Context, userID, sourceID string) (bool, error) {
	if sourceID == "" {
		return false, ErrInvalidSourceID
	}

	applied := false
	_, err := u.mutate(ctx, OpDefaultRemoved, userID, func(_ context.Context, p *Preference) error {
		if p.IsSubscribed(sourceID) || !p.SourceWeights.Has(sourceID) {
			return errNoChange
		}
		p.SourceWeights, _ = u.ledger.Remove(p.SourceWeights, sourceID)
		applied = true
		return nil
	})
	return applied, err
}

// Renormalize repairs accumulated drift: the weight map is divided by its
// actual sum when it strays past the tolerance, and vectors with the wrong
// width or non-finite values are reset to their initial values.
func (u *Updater) Renormalize(ctx context.Context, userID string) (bool, error) {
	repaired := false
	_, err := u.mutate(ctx, OpRenormalize, userID, func(_ context.Context, p *Preference) error {
		if u.ledger.NeedsRepair(p.SourceWeights) {
			u.logger.Debug().
				Str("user_id", userID).
				Float64("drift", u.ledger.Drift(p.SourceWeights)).
				Msg("renormalizing source weights")
			p.SourceWeights = u.ledger.Normalize(p.SourceWeights)
			repaired = true
		}
		if len(p.TagVector) != u.cfg.Dimensions.TagDim || !finite(p.TagVector) {
			u.logger.Warn().
				Str("user_id", userID).
				Int("want", u.cfg.Dimensions.TagDim).
				Int("got", len(p.TagVector)).
				Msg("resetting tag vector")
			p.TagVector = Uniform(u.cfg.Dimensions.TagDim, 1/float64(u.cfg.Dimensions.TagDim))
			repaired = true
		}
		if len(p.KeywordVector) != u.cfg.Dimensions.KeywordDim || !finite(p.KeywordVector) {
			u.logger.Warn().
				Str("user_id", userID).
				Int("want", u.cfg.Dimensions.KeywordDim).
				Int("got", len(p.KeywordVector)).
				Msg("resetting keyword vector")
			p.KeywordVector = Uniform(u.cfg.Dimensions.KeywordDim, u.cfg.Dimensions.KeywordInit)
			repaired = true
		}
		if !repaired {
			return errNoChange
		}
		return nil
	})
	if repaired && err == nil {
		metrics.RecordDriftRepair()
	}
	return repaired && err == nil, err
}

// DeleteUser removes the user's record. The user owns exactly one record,
// so this is the cascade for a deleted account.
func (u *Updater) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	release := u.locks.lock(userID)
	defer release()

	start := time.Now()
	err := u.store.Delete(ctx, userID)
	metrics.RecordPreferenceUpdate(OpDelete, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	u.logger.Info().Str("user_id", userID).Msg("preference deleted")
	return nil
}

// blend applies one vector sub-update, logging and counting a dimension
// mismatch instead of failing the command.
func (u *Updater) blend(userID string, article *Article, field string, current, signal []float64, alpha float64) ([]float64, bool) {
	if len(signal) == 0 {
		u.logger.Debug().
			Str("user_id", userID).
			Str("article_id", article.ID).
			Str("field", field).
			Int("want", len(current)).
			Msg("article has no vector, skipping blend")
		metrics.RecordDimensionMismatch("update", field)
		return nil, false
	}
	if !finite(signal) {
		u.logger.Warn().
			Str("user_id", userID).
			Str("article_id", article.ID).
			Str("field", field).
			Msg("article vector has non-finite values, skipping blend")
		return nil, false
	}
	out, err := Blend(current, signal, alpha)
	if err != nil {
		var dimErr *DimensionError
		if errors.As(err, &dimErr) {
			u.logger.Warn().
				Str("user_id", userID).
				Str("article_id", article.ID).
				Str("field", field).
				Int("want", dimErr.Want).
				Int("got", dimErr.Got).
				Msg("dimension mismatch, skipping blend")
			metrics.RecordDimensionMismatch("update", field)
		}
		return nil, false
	}
	return out, true
}

func (u *Updater) isDefault(ctx context.Context, sourceID string) (bool, error) {
	defaults, err := u.store.defaultSources(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range defaults {
		if id == sourceID {
			return true, nil
		}
	}
	return false, nil
}

// mutate runs fn against a fresh copy of the user's record and saves it,
// retrying on optimistic conflicts. It holds the user's lock throughout so
// commands from this process never race each other; the version check
// covers writers in other processes.
func (u *Updater) mutate(ctx context.Context, op, userID string, fn mutation) (*Preference, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	release := u.locks.lock(userID)
	defer release()

	u.commands.Add(1)
	start := time.Now()
	attempts := u.cfg.Concurrency.MaxRetries

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := u.store.GetOrCreate(ctx, userID)
		if err != nil {
			metrics.RecordPreferenceUpdate(op, time.Since(start), err)
			return nil, err
		}

		working := current.Clone()
		if err := fn(ctx, working); err != nil {
			if errors.Is(err, errNoChange) {
				metrics.RecordPreferenceUpdate(op, time.Since(start), nil)
				return current, nil
			}
			if IsRejection(err) {
				metrics.RecordPreferenceRejection(op)
			} else {
				metrics.RecordPreferenceUpdate(op, time.Since(start), err)
			}
			return current, err
		}

		err = u.store.Save(ctx, working)
		if err == nil {
			metrics.RecordPreferenceUpdate(op, time.Since(start), nil)
			u.logger.Debug().
				Str("op", op).
				Str("user_id", userID).
				Uint64("version", working.Version).
				Int("attempt", attempt).
				Msg("preference updated")
			return working, nil
		}
		if !errors.Is(err, ErrConcurrentUpdate) {
			metrics.RecordPreferenceUpdate(op, time.Since(start), err)
			return nil, fmt.Errorf("save preference: %w", err)
		}

		u.conflicts.Add(1)
		metrics.RecordUpdateConflict()
		u.logger.Debug().
			Str("op", op).
			Str("user_id", userID).
			Int("attempt", attempt).
			Msg("optimistic conflict, retrying")

		if attempt < attempts {
			if err := u.sleep(ctx, time.Duration(attempt)*u.cfg.Concurrency.RetryBackoff); err != nil {
				return nil, err
			}
		}
	}

	err := fmt.Errorf("update preference for user %s after %d attempts: %w", userID, attempts, ErrConcurrentUpdate)
	metrics.RecordPreferenceUpdate(op, time.Since(start), err)
	u.logger.Warn().
		Str("op", op).
		Str("user_id", userID).
		Int("attempts", attempts).
		Msg("giving up after repeated optimistic conflicts")
	return nil, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
