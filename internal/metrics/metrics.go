// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelmatch_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog
	CatalogRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelmatch_catalog_rows",
			Help: "Number of movies in the loaded vector store",
		},
	)

	// Similarity engine
	SimilarityQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelmatch_similarity_query_duration_seconds",
			Help:    "Duration of a full similarity pass over the catalog",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// Watch-history aggregation
	AggregationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_aggregation_items_total",
			Help: "Watched items processed by the aggregator, by outcome",
		},
		[]string{"outcome"}, // "matched", "unmatched", "duplicate"
	)

	// Letterboxd fetcher
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelmatch_history_fetch_duration_seconds",
			Help:    "Duration of a single diary page fetch",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelmatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker, by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelmatch_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records one finished API request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSimilarityQuery records the duration of one ranking pass.
func ObserveSimilarityQuery(start time.Time) {
	SimilarityQueryDuration.Observe(time.Since(start).Seconds())
}
