// Package obs holds the portal's Prometheus metrics.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups HTTP and domain collectors registered on one registry.
type Metrics struct {
	reg *prometheus.Registry

	inFlight        prometheus.Gauge
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	tokensIssued *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	activeTokens prometheus.GaugeFunc
}

// NewMetrics registers all collectors on a fresh registry. activeTokens
// reports the current registry size when non-nil.
func NewMetrics(activeTokens func() int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_tokens_issued_total",
			Help: "Tokens issued, by kind (session, resource).",
		}, []string{"kind"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_fetch_total",
			Help: "Resource fetch attempts, by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		m.inFlight, m.requests, m.requestDuration, m.tokensIssued, m.fetches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if activeTokens != nil {
		m.activeTokens = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "portal_registry_entries",
			Help: "Active resource tokens awaiting fetch.",
		}, func() float64 { return float64(activeTokens()) })
		m.reg.MustRegister(m.activeTokens)
	}
	return m
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// TokenIssued counts an issued token of kind.
func (m *Metrics) TokenIssued(kind string) { m.tokensIssued.WithLabelValues(kind).Inc() }

// Fetch counts a fetch attempt with its outcome.
func (m *Metrics) Fetch(outcome string) { m.fetches.WithLabelValues(outcome).Inc() }

// Instrument wraps next with request counters. route must be a low-cardinality
// name (the mux pattern), never the raw path: /pdf/{token} embeds secrets.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
