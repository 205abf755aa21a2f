// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Preference Update Metrics
	PreferenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_preference_updates_total",
			Help: "Total number of preference mutations by operation and result",
		},
		[]string{"op", "result"}, // op: init, subscribe, unsubscribe, action, default_added, default_removed, renormalize, delete
	)

	PreferenceUpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusfeed_preference_update_duration_seconds",
			Help:    "Duration of a full read-modify-write preference mutation",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)

	PreferenceUpdateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campusfeed_preference_update_conflicts_total",
			Help: "Total number of optimistic version conflicts on preference save",
		},
	)

	DimensionMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_dimension_mismatches_total",
			Help: "Total number of article vectors whose dimension disagreed with the profile",
		},
		[]string{"stage", "field"}, // stage: update, score; field: tag_vector, semantic_vector
	)

	WeightDriftRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campusfeed_weight_drift_repairs_total",
			Help: "Total number of source weight maps renormalized by maintenance",
		},
	)

	// Ranking Metrics
	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campusfeed_rank_duration_seconds",
			Help:    "Duration of ranking one candidate list",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	RankCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campusfeed_rank_candidates",
			Help:    "Number of candidates per ranking request",
			Buckets: []float64{1, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Default Source Fan-Out Metrics
	FanOutUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_fanout_users_total",
			Help: "Total number of users processed by default source fan-out",
		},
		[]string{"kind", "result"}, // result: applied, noop, error
	)

	FanOutJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campusfeed_fanout_jobs_active",
			Help: "Number of default source fan-out jobs currently running",
		},
	)

	// Event Metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_events_processed_total",
			Help: "Total number of lifecycle events handled by type and result",
		},
		[]string{"type", "result"}, // result: ok, rejected, duplicate, error
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_events_published_total",
			Help: "Total number of lifecycle events published",
		},
		[]string{"type", "result"},
	)

	// Storage Metrics
	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusfeed_storage_operation_duration_seconds",
			Help:    "Duration of preference repository operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_storage_errors_total",
			Help: "Total number of preference repository errors",
		},
		[]string{"backend", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campusfeed_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Maintenance Metrics
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_maintenance_runs_total",
			Help: "Total number of scheduled maintenance task runs",
		},
		[]string{"task", "result"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusfeed_maintenance_duration_seconds",
			Help:    "Duration of scheduled maintenance task runs",
			Buckets: []float64{.01, .1, 1, 5, 30, 60, 300},
		},
		[]string{"task"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusfeed_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusfeed_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "route"},
	)
)

// RecordPreferenceUpdate records the outcome of one preference mutation.
func RecordPreferenceUpdate(op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PreferenceUpdates.WithLabelValues(op, result).Inc()
	PreferenceUpdateDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordPreferenceRejection records a mutation rejected as a caller error.
func RecordPreferenceRejection(op string) {
	PreferenceUpdates.WithLabelValues(op, "rejected").Inc()
}

// RecordUpdateConflict records an optimistic version conflict.
func RecordUpdateConflict() {
	PreferenceUpdateConflicts.Inc()
}

// RecordDimensionMismatch records a skipped vector term.
func RecordDimensionMismatch(stage, field string) {
	DimensionMismatches.WithLabelValues(stage, field).Inc()
}

// RecordDriftRepair records one renormalized weight map.
func RecordDriftRepair() {
	WeightDriftRepairs.Inc()
}

// RecordRank records a ranking request.
func RecordRank(candidates int, duration time.Duration) {
	RankCandidates.Observe(float64(candidates))
	RankDuration.Observe(duration.Seconds())
}

// RecordFanOutUser records the outcome of applying a fan-out job to one user.
func RecordFanOutUser(kind, result string) {
	FanOutUsers.WithLabelValues(kind, result).Inc()
}

// TrackFanOutJob tracks running fan-out jobs.
func TrackFanOutJob(inc bool) {
	if inc {
		FanOutJobsActive.Inc()
	} else {
		FanOutJobsActive.Dec()
	}
}

// RecordEventProcessed records a handled lifecycle event.
func RecordEventProcessed(eventType, result string) {
	EventsProcessed.WithLabelValues(eventType, result).Inc()
}

// RecordEventPublished records a published lifecycle event.
func RecordEventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(eventType, result).Inc()
}

// RecordStorageOperation records a repository call.
func RecordStorageOperation(backend, operation string, duration time.Duration, err error) {
	StorageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		StorageErrors.WithLabelValues(backend, operation).Inc()
	}
}

// SetCircuitBreakerState publishes a breaker state as a gauge value.
func SetCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}

// RecordMaintenanceRun records one scheduled maintenance task run.
func RecordMaintenanceRun(task string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MaintenanceRuns.WithLabelValues(task, result).Inc()
	MaintenanceDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
