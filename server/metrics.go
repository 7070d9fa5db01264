package server

import "github.com/prometheus/client_golang/prometheus"

type serverMetrics struct {
	activeConnections  prometheus.Gauge
	connectionsTotal   prometheus.Counter
	subscribedChannels prometheus.Gauge
	heartbeatEvictions prometheus.Counter
	brokerUp           prometheus.Gauge
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &serverMetrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Current number of live WebSocket connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total connections accepted since start.",
		}),
		subscribedChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_channels_subscribed",
			Help: "Channels with at least one local subscriber.",
		}),
		heartbeatEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_heartbeat_evictions_total",
			Help: "Connections terminated for missed heartbeats.",
		}),
		brokerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_broker_up",
			Help: "Whether the pub/sub broker is reachable (1) or degraded (0).",
		}),
	}

	reg.MustRegister(
		m.activeConnections,
		m.connectionsTotal,
		m.subscribedChannels,
		m.heartbeatEvictions,
		m.brokerUp,
	)
	return m
}

func (m *serverMetrics) incConnection() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
	m.connectionsTotal.Inc()
}

func (m *serverMetrics) decConnection() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *serverMetrics) observe(channels int, brokerUp bool) {
	if m == nil {
		return
	}
	m.subscribedChannels.Set(float64(channels))
	if brokerUp {
		m.brokerUp.Set(1)
	} else {
		m.brokerUp.Set(0)
	}
}

func (m *serverMetrics) recordEviction() {
	if m == nil {
		return
	}
	m.heartbeatEvictions.Inc()
}
