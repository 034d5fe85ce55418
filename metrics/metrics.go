// Package metrics collects Prometheus metrics for the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the server needs from a metrics backend.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordStorageError(operation string)
}

// Collector records request counts, latencies and storage failures.
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	storageErrors *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messageboard_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "messageboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messageboard_storage_errors_total",
			Help: "Storage operations that failed with an unexpected error.",
		}, []string{"operation"}),
	}

	reg.MustRegister(c.requests, c.latency, c.storageErrors)
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordStorageError(operation string) {
	c.storageErrors.WithLabelValues(operation).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordStorageError(string)                         {}
