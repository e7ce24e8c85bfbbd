// Package metrics exposes the Prometheus collectors of the archive service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. Each instance owns its registry so tests can
// build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	GateDecisions    *prometheus.CounterVec
	WorkflowDrift    prometheus.Counter
	InvoicesVerified prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archive",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archive",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archive",
			Name:      "permission_decisions_total",
			Help:      "Permission gate decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		WorkflowDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archive",
			Name:      "workflow_inconsistent_documents_total",
			Help:      "Documents whose stored progress disagreed with their markers.",
		}),
		InvoicesVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archive",
			Name:      "invoices_verified_total",
			Help:      "Invoices verified by an admin.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration, m.GateDecisions, m.WorkflowDrift, m.InvoicesVerified,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

// ObserveDecision counts a gate decision.
func (m *Metrics) ObserveDecision(action string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.GateDecisions.WithLabelValues(action, outcome).Inc()
}
