package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Session lifecycle metrics
	SessionsActive         prometheus.Gauge
	SessionSetupsTotal     *prometheus.CounterVec
	SessionDeletesTotal    prometheus.Counter
	SessionReloadsTotal    prometheus.Counter
	SessionRecoveriesTotal prometheus.Counter
	ValidationDuration     prometheus.Histogram

	// Dispatcher metrics
	EventsDispatchedTotal *prometheus.CounterVec
	RepliesSentTotal      *prometheus.CounterVec

	// Sink metrics
	WebhookDeliveriesTotal   *prometheus.CounterVec
	WebsocketBroadcastsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of currently registered sessions",
			},
		),
		SessionSetupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_setups_total",
				Help: "Total number of session setup attempts",
			},
			[]string{"status"},
		),
		SessionDeletesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "session_deletes_total",
				Help: "Total number of deleted sessions",
			},
		),
		SessionReloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "session_reloads_total",
				Help: "Total number of session reloads",
			},
		),
		SessionRecoveriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "session_recoveries_total",
				Help: "Total number of watchdog-triggered session recoveries",
			},
		),
		ValidationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "session_validation_duration_seconds",
				Help:    "Duration of session health validations in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		EventsDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_dispatched_total",
				Help: "Total number of events fanned out to sinks",
			},
			[]string{"kind"},
		),
		RepliesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replies_sent_total",
				Help: "Total number of automatic replies sent",
			},
			[]string{"mode"},
		),

		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"status"},
		),
		WebsocketBroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websocket_broadcasts_total",
				Help: "Total number of websocket broadcast attempts",
			},
			[]string{"status"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionSetupsTotal)
	m.registry.MustRegister(m.SessionDeletesTotal)
	m.registry.MustRegister(m.SessionReloadsTotal)
	m.registry.MustRegister(m.SessionRecoveriesTotal)
	m.registry.MustRegister(m.ValidationDuration)
	m.registry.MustRegister(m.EventsDispatchedTotal)
	m.registry.MustRegister(m.RepliesSentTotal)
	m.registry.MustRegister(m.WebhookDeliveriesTotal)
	m.registry.MustRegister(m.WebsocketBroadcastsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
