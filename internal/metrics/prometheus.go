// Package metrics provides Prometheus metrics for the client and the write proxy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metrics. It implements client.Recorder.
type Metrics struct {
	registry prometheus.Gatherer

	// Client metrics
	writesTotal    *prometheus.CounterVec
	writeDuration  *prometheus.HistogramVec
	targetWrites   *prometheus.CounterVec
	targetDuration *prometheus.HistogramVec
	pointsTotal    *prometheus.CounterVec
	routeCacheHits prometheus.Counter
	routeCacheMiss prometheus.Counter

	// Proxy metrics
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	ledgerRecorded   prometheus.Counter
}

// NewMetrics creates and registers metrics on reg. A nil reg gets a fresh
// registry, which keeps repeated construction in tests from colliding.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		writesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_client_writes_total",
				Help: "Total number of cluster writes by outcome",
			},
			[]string{"outcome"},
		),
		writeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsdb_client_write_duration_seconds",
				Help:    "Duration of cluster writes",
				Buckets: latencyBuckets,
			},
			[]string{"outcome"},
		),
		targetWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_client_target_writes_total",
				Help: "Total number of per-node writes by failure kind",
			},
			[]string{"endpoint", "kind"},
		),
		targetDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsdb_client_target_write_duration_seconds",
				Help:    "Duration of per-node writes",
				Buckets: latencyBuckets,
			},
			[]string{"endpoint"},
		),
		pointsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_client_points_total",
				Help: "Total number of points reported by storage nodes",
			},
			[]string{"result"},
		),
		routeCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tsdb_client_route_cache_hits_total",
				Help: "Total number of route cache hits",
			},
		),
		routeCacheMiss: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tsdb_client_route_cache_misses_total",
				Help: "Total number of route cache misses",
			},
		),

		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsdb_proxy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsdb_proxy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"method", "path"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tsdb_proxy_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		ledgerRecorded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tsdb_proxy_ledger_entries_total",
				Help: "Total number of failed key sets recorded in the ledger",
			},
		),
	}
}

// ObserveWrite records a cluster write
func (m *Metrics) ObserveWrite(outcome string, d time.Duration) {
	m.writesTotal.WithLabelValues(outcome).Inc()
	m.writeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveTarget records one per-node write
func (m *Metrics) ObserveTarget(endpoint, kind string, d time.Duration) {
	if kind == "" {
		kind = "none"
	}
	m.targetWrites.WithLabelValues(endpoint, kind).Inc()
	m.targetDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObservePoints records point counts reported by storage nodes
func (m *Metrics) ObservePoints(success, failed uint32) {
	m.pointsTotal.WithLabelValues("success").Add(float64(success))
	m.pointsTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveRouteCache records route cache lookups
func (m *Metrics) ObserveRouteCache(hits, misses int) {
	m.routeCacheHits.Add(float64(hits))
	m.routeCacheMiss.Add(float64(misses))
}

// RecordLedgerEntries counts failed key sets written to the ledger
func (m *Metrics) RecordLedgerEntries(n int) {
	m.ledgerRecorded.Add(float64(n))
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the registered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records HTTP metrics for every request
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
