// Package metrics exposes Prometheus instrumentation for the HTTP layer and the insights engine.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "sitelens"

var (
	httpDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	insightDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 3, 10}
)

// Metrics holds the registered collectors.
// It implements usecase.MetricsRecorder.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	insightRequests   *prometheus.CounterVec
	insightDuration   *prometheus.HistogramVec
	narratives        *prometheus.CounterVec
	locationCache     *prometheus.CounterVec
	datasetFetchError prometheus.Counter
}

// New registers all metrics on a fresh registry together with Go and process collectors
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	return NewWithRegistry(registry)
}

// NewWithRegistry registers the application metrics on registry
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   httpDurationBuckets,
		}, []string{"method", "route"}),
		insightRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "insights_requests_total",
			Help:      "Insight operations by outcome",
		}, []string{"operation", "outcome"}),
		insightDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "insights_duration_seconds",
			Help:      "Insight operation duration",
			Buckets:   insightDurationBuckets,
		}, []string{"operation"}),
		narratives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "narrative_total",
			Help:      "Narratives composed by source and degradation",
		}, []string{"source", "degraded"}),
		locationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "location_cache_total",
			Help:      "Candidate location cache lookups",
		}, []string{"result"}),
		datasetFetchError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dataset_fetch_errors_total",
			Help:      "Failed location dataset fetches",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration,
		m.insightRequests, m.insightDuration,
		m.narratives, m.locationCache, m.datasetFetchError,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records a completed HTTP request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveInsight records an insight operation
func (m *Metrics) ObserveInsight(operation, outcome string, elapsed time.Duration) {
	m.insightRequests.WithLabelValues(operation, outcome).Inc()
	m.insightDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveNarrative records a composed narrative
func (m *Metrics) ObserveNarrative(source string, degraded bool) {
	m.narratives.WithLabelValues(source, strconv.FormatBool(degraded)).Inc()
}

// ObserveLocationCache records a candidate cache lookup
func (m *Metrics) ObserveLocationCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.locationCache.WithLabelValues(result).Inc()
}

// ObserveDatasetError records a failed dataset fetch
func (m *Metrics) ObserveDatasetError() {
	m.datasetFetchError.Inc()
}
