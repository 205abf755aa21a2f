// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

// ScoreBreakdown lists the four additive components of an article's score.
type ScoreBreakdown struct {
	ArticleID string  `json:"article_id"`
	SourceID  string  `json:"source_id"`
	Source    float64 `json:"source"`
	MajorTag  float64 `json:"major_tag"`
	Tag       float64 `json:"tag"`
	Semantic  float64 `json:"semantic"`
	Total     float64 `json:"total"`

	// Skipped names the components dropped for a dimension mismatch.
	Skipped []string `json:"skipped,omitempty"`
}

// Scorer computes
//
//	score = w(source) + bonus·[major tag] + tags·tag_vector + embedding·keyword_vector
//
// for one user and one article. A component whose vectors disagree in
// dimension contributes 0 and is logged.
type Scorer struct {
	bonus     float64
	majorTags []string
	logger    zerolog.Logger
}

// NewScorer creates a Scorer from cfg.Scoring.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScorer(cfg *Config, logger zerolog.Logger) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tags := make([]string, len(cfg.Scoring.MajorTags))
	copy(tags, cfg.Scoring.MajorTags)
	return &Scorer{
		bonus:     cfg.Scoring.MajorTagBonus,
		majorTags: tags,
		logger:    logger.With().Str("component", "preference_scorer").Logger(),
	}
}

// Score returns the total score of article for p.
func (s *Scorer) Score(p *Preference, article *Article) float64 {
	return s.Explain(p, article).Total
}

// Explain returns the per-component breakdown of the score.
func (s *Scorer) Explain(p *Preference, article *Article) ScoreBreakdown {
	b := ScoreBreakdown{
		ArticleID: article.ID,
		SourceID:  article.SourceID,
		Source:    p.SourceWeights.Get(article.SourceID),
	}
	if article.HasAnyTag(s.majorTags) {
		b.MajorTag = s.bonus
	}

	b.Tag = s.similarity(p, article, "tag_vector", article.TagVector, p.TagVector, &b)
	b.Semantic = s.similarity(p, article, "semantic_vector", article.SemanticVector, p.KeywordVector, &b)

	b.Total = b.Source + b.MajorTag + b.Tag + b.Semantic
	return b
}

func (s *Scorer) similarity(p *Preference, article *Article, field string, a, b []float64, out *ScoreBreakdown) float64 {
	if len(a) == 0 {
		s.logger.Debug().
			Str("user_id", p.UserID).
			Str("article_id", article.ID).
			Str("field", field).
			Int("want", len(b)).
			Msg("article has no vector, component scored as 0")
		metrics.RecordDimensionMismatch("score", field)
		return 0
	}
	v, err := Dot(a, b)
	if err != nil {
		var dimErr *DimensionError
		if errors.As(err, &dimErr) {
			s.logger.Warn().
				Str("user_id", p.UserID).
				Str("article_id", article.ID).
				Str("field", field).
				Int("want", dimErr.Want).
				Int("got", dimErr.Got).
				Msg("dimension mismatch, component scored as 0")
			metrics.RecordDimensionMismatch("score", field)
		}
		out.Skipped = append(out.Skipped, field)
		return 0
	}
	return v
}
