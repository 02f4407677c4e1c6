// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package metrics provides Prometheus instrumentation for:
//   - Platform API requests (latency, retries, rate limiting)
//   - Sync runs per organization and entity type
//   - Upsert outcomes (written / skipped / failed)
//   - Circuit breaker state
//   - HTTP API serving
//   - DuckDB query performance
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Platform API client metrics

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_api_request_duration_seconds",
			Help:    "Duration of fundraising platform API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity_type"},
	)

	APIRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_api_request_errors_total",
			Help: "Total number of platform API request errors",
		},
		[]string{"entity_type", "reason"}, // "http", "decode", "auth", "rate_limit"
	)

	APIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_api_retries_total",
			Help: "Total number of platform API request retries",
		},
	)

	TokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_oauth_token_refreshes_total",
			Help: "Total number of OAuth2 token refreshes",
		},
	)

	// Sync engine metrics

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of entity sync runs",
		},
		[]string{"entity_type", "mode", "status"}, // mode: full|incremental; status: completed|failed
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of entity sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"entity_type"},
	)

	SyncPagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pages_fetched_total",
			Help: "Total number of pages fetched from the platform API",
		},
		[]string{"entity_type"},
	)

	SyncPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_page_records",
			Help:    "Records per fetched page",
			Buckets: []float64{1, 10, 50, 100, 150, 200},
		},
	)

	SyncRecordsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_upserted_total",
			Help: "Total records written by the sync engine",
		},
		[]string{"entity_type"},
	)

	SyncRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_skipped_total",
			Help: "Total records skipped by the sync engine",
		},
		[]string{"entity_type", "reason"}, // "missing_reference"
	)

	SyncRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_failed_total",
			Help: "Total records that failed to upsert",
		},
		[]string{"entity_type"},
	)

	OrganizationSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organization_syncs_total",
			Help: "Total organization sync invocations",
		},
		[]string{"status"}, // "completed", "failed"
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	// HTTP API metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)
)

// ObserveQuery records a database query duration and, when err is non-nil,
// an error for the same operation/table pair.
func ObserveQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request. The route label must be
// the chi route pattern, not the raw path, to keep cardinality bounded.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordSyncRun records the outcome of one entity sync run.
func RecordSyncRun(entityType, mode string, duration time.Duration, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	SyncRuns.WithLabelValues(entityType, mode, status).Inc()
	SyncDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}
