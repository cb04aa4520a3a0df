// Package metrics exposes server metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "cloudra"

// Collector is a prometheus.Collector for HTTP traffic and best-effort
// side effects that failed without failing their request.
type Collector struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	bestEffortFailure *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "The number of HTTP requests handled.",
			}, []string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "The time taken to handle an HTTP request.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			}, []string{"method", "route"},
		),
		bestEffortFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "best_effort_failures_total",
				Help:      "The number of skipped object deletions and archive entries.",
			}, []string{"operation"},
		),
	}
}

// ObserveRequest records one handled request. A nil Collector is a no-op.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// BestEffortFailure counts n failures of operation. A nil Collector is a
// no-op.
func (c *Collector) BestEffortFailure(operation string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bestEffortFailure.WithLabelValues(operation).Add(float64(n))
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.requestDuration.Describe(ch)
	c.bestEffortFailure.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.requestDuration.Collect(ch)
	c.bestEffortFailure.Collect(ch)
}
