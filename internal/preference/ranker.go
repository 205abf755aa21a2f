// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

// RankedArticle pairs an article with its score breakdown.
type RankedArticle struct {
	Article Article        `json:"article"`
	Score   ScoreBreakdown `json:"score"`
}

// Ranker orders candidate articles for a user.
type Ranker struct {
	store  *Store
	scorer *Scorer
	logger zerolog.Logger
}

// NewRanker creates a Ranker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRanker(store *Store, scorer *Scorer, logger zerolog.Logger) *Ranker {
	return &Ranker{
		store:  store,
		scorer: scorer,
		logger: logger.With().Str("component", "preference_ranker").Logger(),
	}
}

// Rank returns articles ordered by descending score. Ties keep their input
// order. The input slice is not modified.
func (r *Ranker) Rank(ctx context.Context, userID string, articles []Article) ([]Article, error) {
	ranked, err := r.Explain(ctx, userID, articles)
	if err != nil {
		return nil, err
	}
	out := make([]Article, len(ranked))
	for i := range ranked {
		out[i] = ranked[i].Article
	}
	return out, nil
}

// Explain ranks like Rank and keeps the score breakdown of every article.
func (r *Ranker) Explain(ctx context.Context, userID string, articles []Article) ([]RankedArticle, error) {
	start := time.Now()

	p, err := r.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedArticle, len(articles))
	for i := range articles {
		ranked[i] = RankedArticle{
			Article: articles[i],
			Score:   r.scorer.Explain(p, &articles[i]),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Total > ranked[j].Score.Total
	})

	metrics.RecordRank(len(articles), time.Since(start))
	r.logger.Debug().
		Str("user_id", userID).
		Int("candidates", len(articles)).
		Dur("duration", time.Since(start)).
		Msg("ranked articles")

	return ranked, nil
}

// CandidateSources returns the sources whose articles should be fetched for
// the user: every default source plus the user's explicit subscriptions,
// deduplicated and sorted.
func (r *Ranker) CandidateSources(ctx context.Context, userID string) ([]string, error) {
	p, err := r.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	defaults, err := r.store.defaultSources(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(defaults)+len(p.Subscriptions))
	out := make([]string, 0, len(defaults)+len(p.Subscriptions))
	for _, list := range [][]string{defaults, p.Subscriptions} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
