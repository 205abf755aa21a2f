// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"fmt"
	"time"
)

// SourceDecayMode selects how RecordAction moves the weight of the acted-on
// source before the rest of the map is rescaled.
type SourceDecayMode string

const (
	// SourceDecayReinforce blends the weight toward 1: w' = (1-alpha)*w + alpha.
	SourceDecayReinforce SourceDecayMode = "reinforce"

	// SourceDecayScale scales the weight down: w' = (1-alpha)*w.
	SourceDecayScale SourceDecayMode = "scale"
)

// Config contains all configuration for the preference engine.
type Config struct {
	// Dimensions fixes the widths of the dense profile vectors.
	Dimensions DimensionConfig `json:"dimensions" koanf:"dimensions"`

	// Decay contains the update rule constants.
	Decay DecayConfig `json:"decay" koanf:"decay"`

	// Scoring contains the scoring rule constants.
	Scoring ScoringConfig `json:"scoring" koanf:"scoring"`

	// Concurrency bounds the optimistic retry loop.
	Concurrency ConcurrencyConfig `json:"concurrency" koanf:"concurrency"`
}

// DimensionConfig fixes the widths of the dense vectors.
type DimensionConfig struct {
	// TagDim is T, the number of content tags.
	// Default: 16.
	TagDim int `json:"tag_dim" koanf:"tag_dim"`

	// KeywordDim is K, the width of the semantic keyword space.
	// Default: 100.
	KeywordDim int `json:"keyword_dim" koanf:"keyword_dim"`

	// KeywordInit is the initial value of every keyword axis.
	// Default: 0.01.
	KeywordInit float64 `json:"keyword_init" koanf:"keyword_init"`
}

// DecayConfig contains the constants of the action-decay rules.
type DecayConfig struct {
	// BrowseAlpha is the blend factor applied on a browse.
	// Default: 0.1.
	BrowseAlpha float64 `json:"browse_alpha" koanf:"browse_alpha"`

	// FavoriteAlpha is the blend factor applied on a favorite.
	// Default: 0.2.
	FavoriteAlpha float64 `json:"favorite_alpha" koanf:"favorite_alpha"`

	// PruneFloor drops non-target sources below this weight during decay.
	// Default: 0.05.
	PruneFloor float64 `json:"prune_floor" koanf:"prune_floor"`

	// BootstrapWeight seeds a source that an action references but the map
	// does not contain yet.
	// Default: 0.1.
	BootstrapWeight float64 `json:"bootstrap_weight" koanf:"bootstrap_weight"`

	// SourceMode selects the rule for the acted-on source weight.
	// Default: reinforce.
	SourceMode SourceDecayMode `json:"source_mode" koanf:"source_mode"`

	// WeightTolerance is how far the weight sum may drift from 1.0 before
	// maintenance repairs it.
	// Default: 1e-6.
	WeightTolerance float64 `json:"weight_tolerance" koanf:"weight_tolerance"`
}

// ScoringConfig contains the scoring constants.
type ScoringConfig struct {
	// MajorTagBonus is added once when an article carries a major tag.
	// Default: 0.5.
	MajorTagBonus float64 `json:"major_tag_bonus" koanf:"major_tag_bonus"`

	// MajorTags are the labels that earn the bonus.
	// Default: ["major", "重大"].
	MajorTags []string `json:"major_tags" koanf:"major_tags"`
}

// ConcurrencyConfig bounds optimistic update retries.
type ConcurrencyConfig struct {
	// MaxRetries is the number of read-modify-write attempts before
	// ErrConcurrentUpdate is surfaced.
	// Default: 5.
	MaxRetries int `json:"max_retries" koanf:"max_retries"`

	// RetryBackoff is the base sleep between attempts, multiplied by the
	// attempt number.
	// Default: 5ms.
	RetryBackoff time.Duration `json:"retry_backoff" koanf:"retry_backoff"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Dimensions: DimensionConfig{
			TagDim:      16,
			KeywordDim:  100,
			KeywordInit: 0.01,
		},
		Decay: DecayConfig{
			BrowseAlpha:     0.1,
			FavoriteAlpha:   0.2,
			PruneFloor:      1.0 / 20,
			BootstrapWeight: 0.1,
			SourceMode:      SourceDecayReinforce,
			WeightTolerance: 1e-6,
		},
		Scoring: ScoringConfig{
			MajorTagBonus: 0.5,
			MajorTags:     []string{"major", "重大"},
		},
		Concurrency: ConcurrencyConfig{
			MaxRetries:   5,
			RetryBackoff: 5 * time.Millisecond,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Dimensions.TagDim < 1 {
		return fmt.Errorf("dimensions.tag_dim must be positive, got %d", c.Dimensions.TagDim)
	}
	if c.Dimensions.KeywordDim < 1 {
		return fmt.Errorf("dimensions.keyword_dim must be positive, got %d", c.Dimensions.KeywordDim)
	}
	if c.Dimensions.KeywordInit < 0 {
		return fmt.Errorf("dimensions.keyword_init must be non-negative, got %f", c.Dimensions.KeywordInit)
	}

	if c.Decay.BrowseAlpha <= 0 || c.Decay.BrowseAlpha >= 1 {
		return fmt.Errorf("decay.browse_alpha must be in (0, 1), got %f", c.Decay.BrowseAlpha)
	}
	if c.Decay.FavoriteAlpha <= 0 || c.Decay.FavoriteAlpha >= 1 {
		return fmt.Errorf("decay.favorite_alpha must be in (0, 1), got %f", c.Decay.FavoriteAlpha)
	}
	if c.Decay.PruneFloor < 0 || c.Decay.PruneFloor >= 1 {
		return fmt.Errorf("decay.prune_floor must be in [0, 1), got %f", c.Decay.PruneFloor)
	}
	if c.Decay.BootstrapWeight <= 0 || c.Decay.BootstrapWeight >= 1 {
		return fmt.Errorf("decay.bootstrap_weight must be in (0, 1), got %f", c.Decay.BootstrapWeight)
	}
	switch c.Decay.SourceMode {
	case SourceDecayReinforce, SourceDecayScale:
	default:
		return fmt.Errorf("decay.source_mode must be %q or %q, got %q",
			SourceDecayReinforce, SourceDecayScale, c.Decay.SourceMode)
	}
	if c.Decay.WeightTolerance <= 0 {
		return fmt.Errorf("decay.weight_tolerance must be positive, got %g", c.Decay.WeightTolerance)
	}

	if c.Scoring.MajorTagBonus < 0 {
		return fmt.Errorf("scoring.major_tag_bonus must be non-negative, got %f", c.Scoring.MajorTagBonus)
	}

	if c.Concurrency.MaxRetries < 1 {
		return fmt.Errorf("concurrency.max_retries must be positive, got %d", c.Concurrency.MaxRetries)
	}
	if c.Concurrency.RetryBackoff < 0 {
		return fmt.Errorf("concurrency.retry_backoff must be non-negative, got %v", c.Concurrency.RetryBackoff)
	}

	return nil
}

// AlphaFor returns the decay rate for an action kind.
func (c *Config) AlphaFor(kind ActionKind) (float64, error) {
	switch kind {
	case ActionBrowse:
		return c.Decay.BrowseAlpha, nil
	case ActionFavorite:
		return c.Decay.FavoriteAlpha, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownAction, int(kind))
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := &Config{
		Dimensions:  c.Dimensions,
		Decay:       c.Decay,
		Scoring:     c.Scoring,
		Concurrency: c.Concurrency,
	}
	if c.Scoring.MajorTags != nil {
		clone.Scoring.MajorTags = make([]string, len(c.Scoring.MajorTags))
		copy(clone.Scoring.MajorTags, c.Scoring.MajorTags)
	}
	return clone
}
