// Package metrics defines the Prometheus metric collectors used by the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	LookupResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	SnapshotLoadsTotal   *prometheus.CounterVec
	SnapshotVersion      prometheus.Gauge
	SnapshotDocuments    prometheus.Gauge
	SnapshotTerms        prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg means
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_lookups_total",
				Help: "Total lookups by kind (term, query) and result (hit, zero_result, error).",
			},
			[]string{"kind", "result"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_lookup_latency_seconds",
				Help:    "Lookup latency in seconds.",
				Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"cache_status"},
		),
		LookupResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsearch_lookup_results_count",
				Help:    "Number of documents returned per lookup.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		SnapshotLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_snapshot_loads_total",
				Help: "Snapshot load attempts by trigger and status.",
			},
			[]string{"trigger", "status"},
		),
		SnapshotVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_snapshot_version",
				Help: "Version number of the snapshot currently served.",
			},
		),
		SnapshotDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_snapshot_documents",
				Help: "Documents in the snapshot currently served.",
			},
		),
		SnapshotTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_snapshot_terms",
				Help: "Vocabulary size of the snapshot currently served.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LookupsTotal,
		m.LookupLatency,
		m.LookupResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SnapshotLoadsTotal,
		m.SnapshotVersion,
		m.SnapshotDocuments,
		m.SnapshotTerms,
		m.CircuitBreakerState,
	)

	return m
}

// Handler serves the metrics gathered by g in the Prometheus or OpenMetrics
// text format. A nil g means the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
