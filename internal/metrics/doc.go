// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Preference Metrics:
  - campusfeed_preference_updates_total: Mutations (counter)
    Labels: op, result (ok, error, rejected)
  - campusfeed_preference_update_duration_seconds: Read-modify-write latency (histogram)
  - campusfeed_preference_update_conflicts_total: Optimistic version conflicts (counter)
  - campusfeed_dimension_mismatches_total: Skipped vector terms (counter)
    Labels: stage (update, score), field (tag_vector, semantic_vector)
  - campusfeed_weight_drift_repairs_total: Maintenance renormalizations (counter)

Ranking Metrics:
  - campusfeed_rank_duration_seconds (histogram)
  - campusfeed_rank_candidates (histogram)

Fan-Out Metrics:
  - campusfeed_fanout_users_total: Labels kind (added, removed), result (applied, noop, error)
  - campusfeed_fanout_jobs_active (gauge)

Event and Storage Metrics:
  - campusfeed_events_processed_total, campusfeed_events_published_total
  - campusfeed_storage_operation_duration_seconds, campusfeed_storage_errors_total
  - campusfeed_circuit_breaker_state

# Usage

	start := time.Now()
	err := updater.Subscribe(ctx, userID, sourceID)
	metrics.RecordPreferenceUpdate("subscribe", time.Since(start), err)
*/
package metrics
