package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Chat endpoint outcomes, by HTTP status
	ChatReplies *prometheus.CounterVec

	// Product Service calls
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// Chat UI sessions over WebSocket
	SessionsActive prometheus.Gauge
	SessionSends   *prometheus.CounterVec
}

// NewMetrics creates a metrics collector on its own registry, so tests can
// build as many as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatagent_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatagent_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ChatReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatagent_chat_replies_total",
				Help: "Chat endpoint replies by HTTP status",
			},
			[]string{"status"},
		),
		UpstreamCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatagent_product_service_calls_total",
				Help: "Product Service search calls by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatagent_product_service_duration_seconds",
				Help:    "Product Service search duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatagent_ui_sessions_active",
				Help: "Number of connected chat UI sessions",
			},
		),
		SessionSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatagent_ui_sends_total",
				Help: "Chat UI send attempts by result",
			},
			[]string{"result"},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstreamCall records one Product Service call.
func (m *Metrics) RecordUpstreamCall(outcome string, duration time.Duration) {
	m.UpstreamCalls.WithLabelValues(outcome).Inc()
	m.UpstreamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
