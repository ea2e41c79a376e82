// Package metrics exposes the Prometheus collectors ckeylockd publishes:
// connection counts, per-request-kind counters and latencies, and auth
// failures. Adapted from the teacher's infrastructure/metrics package,
// trimmed to this service's own surface (no HTTP/blockchain/database
// collectors — this service has none of those).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector ckeylockd registers.
type Metrics struct {
	ConnectionsOpened prometheus.Counter
	ConnectionsActive prometheus.Gauge
	AuthFailuresTotal prometheus.Counter

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestErrors    *prometheus.CounterVec

	StoreSize prometheus.Gauge
}

// New builds a Metrics instance registered against registerer. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions between runs.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ckeylock_connections_opened_total",
			Help: "Total number of WebSocket connections accepted.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ckeylock_connections_active",
			Help: "Current number of open WebSocket connections.",
		}),
		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ckeylock_auth_failures_total",
			Help: "Total number of rejected handshakes due to a missing or wrong Authorization header.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ckeylock_requests_total",
			Help: "Total number of requests executed, by kind and outcome.",
		}, []string{"kind", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ckeylock_request_duration_seconds",
			Help:    "Time spent executing a request through the executor, by kind.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .5, 1},
		}, []string{"kind"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ckeylock_request_errors_total",
			Help: "Total number of requests that failed, by kind.",
		}, []string{"kind"}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ckeylock_store_keys",
			Help: "Number of keys currently held in the store.",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.ConnectionsOpened,
			m.ConnectionsActive,
			m.AuthFailuresTotal,
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestErrors,
			m.StoreSize,
		)
	}

	return m
}

// ConnectionOpened records a newly accepted WebSocket connection.
func (m *Metrics) ConnectionOpened() {
	m.ConnectionsOpened.Inc()
	m.ConnectionsActive.Inc()
}

// ConnectionClosed records a WebSocket connection going away.
func (m *Metrics) ConnectionClosed() {
	m.ConnectionsActive.Dec()
}

// AuthFailure records a rejected handshake.
func (m *Metrics) AuthFailure() {
	m.AuthFailuresTotal.Inc()
}

// RecordRequest records one executed request's kind, outcome, and latency.
func (m *Metrics) RecordRequest(kind string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		m.RequestErrors.WithLabelValues(kind).Inc()
	}
	m.RequestsTotal.WithLabelValues(kind, status).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetStoreSize publishes the current key count.
func (m *Metrics) SetStoreSize(count int) {
	m.StoreSize.Set(float64(count))
}
