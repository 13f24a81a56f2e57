// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers the console's Prometheus metrics.
type Collector struct {
	backendRequests *prometheus.CounterVec
	backendLatency  prometheus.Histogram
	loginSuccess    prometheus.Counter
	loginFailure    prometheus.Counter
	forcedLogouts   prometheus.Counter
	backendUp       prometheus.Gauge
	activeSessions  prometheus.GaugeFunc
}

// NewCollector creates a Collector and registers its metrics with the given
// registry. activeSessions reports the session store's in-memory count and
// may be nil.
func NewCollector(reg prometheus.Registerer, activeSessions func() float64) *Collector {
	c := &Collector{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regconsole_backend_requests_total",
			Help: "Backend registry calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "regconsole_backend_latency_seconds",
			Help:    "Backend registry call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regconsole_login_success_total",
			Help: "Successful credential exchanges.",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regconsole_login_failure_total",
			Help: "Rejected credential exchanges.",
		}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regconsole_forced_logouts_total",
			Help: "Sessions cleared because the backend rejected their token.",
		}),
		backendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regconsole_backend_up",
			Help: "Whether the last backend availability probe succeeded.",
		}),
	}

	reg.MustRegister(
		c.backendRequests,
		c.backendLatency,
		c.loginSuccess,
		c.loginFailure,
		c.forcedLogouts,
		c.backendUp,
	)

	if activeSessions != nil {
		c.activeSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "regconsole_active_sessions",
			Help: "Sessions currently held in memory.",
		}, activeSessions)
		reg.MustRegister(c.activeSessions)
	}

	return c
}

// RecordBackendRequest records one backend call.
func (c *Collector) RecordBackendRequest(operation, outcome string, duration time.Duration) {
	c.backendRequests.WithLabelValues(operation, outcome).Inc()
	c.backendLatency.Observe(duration.Seconds())
}

// RecordLoginSuccess records a successful credential exchange.
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure records a rejected credential exchange.
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordForcedLogout records a session cleared after token rejection.
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// SetBackendUp records the latest availability probe outcome.
func (c *Collector) SetBackendUp(up bool) {
	if up {
		c.backendUp.Set(1)
	} else {
		c.backendUp.Set(0)
	}
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
