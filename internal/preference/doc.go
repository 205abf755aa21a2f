// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

// Package preference implements the adaptive preference and ranking engine
// behind the campus article feed.
//
// # Model
//
// Every user owns exactly one Preference record holding three signal spaces:
//
//   - Source weights: a sparse map from source ID to weight that always sums
//     to 1.0 (or is empty)
//   - Tag vector: a dense vector with one axis per content tag
//   - Keyword vector: a dense semantic embedding of fixed width
//
// The record is created lazily on first access and mutated only by the
// Updater through four operation families: Init, Subscribe, Unsubscribe
// and RecordAction (decay). The sparse weight map is only ever changed by
// the Ledger.
//
// # Scoring
//
// The Scorer is a pure function of (Preference, Article):
//
//	score = weight(source) + bonus(if tagged major)
//	      + dot(tags, tag vector) + dot(semantic, keyword vector)
//
// Dot products whose dimensions disagree contribute zero and are logged as
// a data quality signal. The Ranker sorts candidates by score, descending,
// preserving the caller's order among ties.
//
// # Concurrency
//
// Mutations are serialized per user twice over: an in-process lock keyed by
// user ID, and an optimistic Version on the record that the Repository
// checks on Save. Conflicts are retried a bounded number of times before
// ErrConcurrentUpdate is surfaced. Reads take no locks.
//
// # Usage
//
//	cfg := preference.DefaultConfig()
//	store := preference.NewStore(repo, catalog, cfg, logger)
//	updater, err := preference.NewUpdater(store, cfg, logger)
//
//	err = updater.Subscribe(ctx, "u1", "s5")
//	err = updater.RecordAction(ctx, "u1", article, preference.ActionFavorite)
//
//	ranker := preference.NewRanker(store, preference.NewScorer(cfg, logger), logger)
//	ordered, err := ranker.Rank(ctx, "u1", candidates)
package preference
