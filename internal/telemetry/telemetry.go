package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments for the search and indexing paths.
// Labels stay low-cardinality: operation names and outcome only.
type Metrics struct {
	registry *prometheus.Registry

	SearchRequests  *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	IndexOperations *prometheus.CounterVec
	IndexedChunks   prometheus.Counter
}

// New builds and registers the instrument set on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.SearchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notare",
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Search requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	m.SearchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notare",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Search request latency by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	m.IndexOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notare",
		Subsystem: "index",
		Name:      "operations_total",
		Help:      "Content index operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	m.IndexedChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notare",
		Subsystem: "index",
		Name:      "chunks_total",
		Help:      "Total content chunks written to the store.",
	})

	m.registry.MustRegister(
		m.SearchRequests,
		m.SearchDuration,
		m.IndexOperations,
		m.IndexedChunks,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one search request.
func (m *Metrics) ObserveSearch(operation string, start time.Time, err error) {
	m.SearchRequests.WithLabelValues(operation, outcome(err)).Inc()
	m.SearchDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveIndex records one index operation.
func (m *Metrics) ObserveIndex(operation string, err error) {
	m.IndexOperations.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
