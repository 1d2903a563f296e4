// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campus"

var (
	// HTTPRequestDuration tracks sandbox HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// APIRequestDuration tracks outgoing REST call latency.
	// status_code is "error" when no response was received.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Outgoing API request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// QueryCacheLookups counts query cache lookups by result.
	QueryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "lookups_total",
			Help:      "Query cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// QueryCacheInvalidations counts invalidations by the root key segment.
	QueryCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "invalidations_total",
			Help:      "Query cache invalidations by root key",
		},
		[]string{"root"},
	)

	// EnrollmentAttempts counts enrollment workflow outcomes.
	EnrollmentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "attempts_total",
			Help:      "Enrollment workflow attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// SandboxRecords tracks the number of records held by the sandbox.
	SandboxRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "records",
			Help:      "Number of sandbox records by kind",
		},
		[]string{"kind"},
	)
)
