// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency. Generation calls run long, so the
// upper buckets go past the usual 10s.
var defaultBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// Outcome labels for OutcomesTotal.
const (
	OutcomeSuccess          = "success"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeConfigError      = "config_error"
	OutcomeInternalError    = "internal_error"
	OutcomeMethodNotAllowed = "method_not_allowed"
)

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	OutcomesTotal *prometheus.CounterVec

	knownPaths []string
}

// New creates a Metrics instance with a custom registry and all collectors registered.
// knownPaths bounds the path label; any other path is recorded as "other".
func New(knownPaths ...string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemini_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gemini_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gemini_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gemini_proxy_upstream_request_duration_seconds",
			Help:    "Upstream generateContent call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"model"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemini_proxy_upstream_responses_total",
			Help: "Total upstream responses by model and status code.",
		}, []string{"model", "status_code"}),

		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemini_proxy_outcomes_total",
			Help: "Proxy invocations by outcome.",
		}, []string{"outcome"}),

		knownPaths: knownPaths,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.OutcomesTotal,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizePath returns a bounded path label for Prometheus metrics.
func (m *Metrics) NormalizePath(path string) string {
	for _, known := range m.knownPaths {
		if path == known || strings.HasPrefix(path, known+"/") || strings.HasPrefix(path, known+"?") {
			return known
		}
	}
	return "other"
}

// ObserveOutcome counts one proxy invocation. A nil receiver is a no-op.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}
