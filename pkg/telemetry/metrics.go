// Package telemetry exposes the gateway's Prometheus metrics: how many
// sessions of each kind are live, how many were ever created, and how many
// clients are connected.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session kind labels reported on the session metrics.
const (
	KindLocal   = "local"
	KindSandbox = "sandbox"
	KindSSH     = "ssh"
)

// Metrics holds the gateway's Prometheus collectors on a private registry so
// that multiple instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	activeSessions   *prometheus.GaugeVec
	sessionsCreated  *prometheus.CounterVec
	connectedClients prometheus.Gauge
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "termgate",
			Name:      "active_sessions",
			Help:      "Number of live terminal sessions by kind.",
		}, []string{"kind"}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termgate",
			Name:      "sessions_created_total",
			Help:      "Terminal sessions created since process start, by kind.",
		}, []string{"kind"}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termgate",
			Name:      "connected_clients",
			Help:      "Number of connected WebSocket clients.",
		}),
	}

	m.registry.MustRegister(m.activeSessions, m.sessionsCreated, m.connectedClients)
	return m
}

// SessionStarted records a new live session of the given kind.
func (m *Metrics) SessionStarted(kind string) {
	m.sessionsCreated.WithLabelValues(kind).Inc()
	m.activeSessions.WithLabelValues(kind).Inc()
}

// SessionEnded records that a session of the given kind is gone.
func (m *Metrics) SessionEnded(kind string) {
	m.activeSessions.WithLabelValues(kind).Dec()
}

// ClientConnected records a new WebSocket client.
func (m *Metrics) ClientConnected() {
	m.connectedClients.Inc()
}

// ClientDisconnected records a WebSocket client going away.
func (m *Metrics) ClientDisconnected() {
	m.connectedClients.Dec()
}

// Handler serves the text exposition format for this instance's collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the raw metric families. Test hook.
func (m *Metrics) Gather() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			name := fam.GetName()
			for _, label := range metric.GetLabel() {
				name += "{" + label.GetName() + "=" + label.GetValue() + "}"
			}
			switch {
			case metric.GetGauge() != nil:
				out[name] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				out[name] = metric.GetCounter().GetValue()
			}
		}
	}
	return out, nil
}
