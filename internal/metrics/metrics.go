// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package metrics provides Prometheus instrumentation for the risk worker:
// analysis task runs, records written, store query performance, and alert
// delivery. Exposed on the ops server's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task Metrics
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_task_runs_total",
			Help: "Total number of analysis task runs by outcome",
		},
		[]string{"task", "outcome"}, // outcome: success, failure, skipped
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskworker_task_duration_seconds",
			Help:    "Duration of analysis task runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	TaskOverlapSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_task_overlap_skips_total",
			Help: "Ticks skipped because the previous run of the task was still in flight",
		},
		[]string{"task"},
	)

	EntitiesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_entities_skipped_total",
			Help: "Entities skipped during a scan (insufficient data, malformed records)",
		},
		[]string{"task", "reason"},
	)

	// Record Write Metrics
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_records_written_total",
			Help: "Anomaly, pattern, and prediction records written to the store",
		},
		[]string{"record_type"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskworker_db_query_duration_seconds",
			Help:    "Duration of analytics store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_db_query_errors_total",
			Help: "Total number of analytics store query errors",
		},
		[]string{"operation", "table"},
	)

	// Webhook Notifier Metrics
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_webhook_deliveries_total",
			Help: "Webhook alert deliveries by outcome",
		},
		[]string{"outcome"}, // outcome: sent, failed, rate_limited, breaker_open
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskworker_circuit_breaker_state",
			Help: "Circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskworker_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// ObserveTask records the duration and outcome of one task run.
func ObserveTask(task string, start time.Time, err error) {
	TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	TaskRuns.WithLabelValues(task, outcome).Inc()
}

// ObserveQuery records the duration of one store query and counts errors.
func ObserveQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
