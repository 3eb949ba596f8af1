// Package metrics exposes cycle and request counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restpoll"

// Metrics owns its registry; instances never share collectors.
type Metrics struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	failures        *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	dlqForwarded    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by resulting phase.",
		}, []string{"phase"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed tasks by error kind.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound HTTP requests by status class.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Outbound HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		dlqForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_forwarded_total",
			Help:      "Dead letter entries forwarded to the webhook.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.cycles, m.failures, m.requests, m.requestDuration, m.dlqForwarded)
	return m
}

// ObserveRequest implements httpclient.RequestObserver.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(d.Seconds())
}

// ObserveCycle records the phase a cycle ended in; kind is the error kind
// name for failed cycles and empty otherwise.
func (m *Metrics) ObserveCycle(phase, kind string) {
	m.cycles.WithLabelValues(phase).Inc()
	if kind != "" {
		m.failures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveForward(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.dlqForwarded.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
