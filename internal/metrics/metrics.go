// Package metrics exposes prometheus collectors for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Order outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the bot collectors on a private registry. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry       *prometheus.Registry
	orders         *prometheus.CounterVec
	updates        *prometheus.CounterVec
	activeSessions prometheus.Gauge
	gatewayTimings *prometheus.SummaryVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletbot_orders_total",
				Help: "Sell orders submitted, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletbot_updates_total",
				Help: "Chat updates received, by kind",
			},
			[]string{"kind"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletbot_active_sessions",
				Help: "Live sell flow sessions",
			},
		),
		gatewayTimings: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "walletbot_gateway_call_seconds",
				Help:       "Per method exchange gateway timing",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"method", "outcome"},
		),
	}

	m.registry.MustRegister(m.orders, m.updates, m.activeSessions, m.gatewayTimings)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOrder counts a submitted order.
func (m *Metrics) ObserveOrder(kind, outcome string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(kind, outcome).Inc()
}

// IncUpdate counts an inbound chat update.
func (m *Metrics) IncUpdate(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// SetActiveSessions reports the number of live sessions.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// ObserveGatewayCall records the duration of one gateway call.
func (m *Metrics) ObserveGatewayCall(method string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.gatewayTimings.WithLabelValues(method, outcome).Observe(d.Seconds())
}
