package stream

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects push stream statistics. A nil *Metrics records nothing.
type Metrics struct {
	connected  prometheus.Gauge
	reconnects prometheus.Counter
	events     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

// NewMetrics creates an unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cloudbridge_stream_connected",
			Help: "1 while the push stream is connected",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudbridge_stream_reconnects_total",
			Help: "Push stream reconnection attempts",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_stream_events_total",
			Help: "Push events delivered to the handler by kind",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_stream_events_dropped_total",
			Help: "Push events discarded before delivery by reason",
		}, []string{"reason"}),
	}
}

// Collectors returns the collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.connected, m.reconnects, m.events, m.dropped}
}

func (m *Metrics) setConnected(v bool) {
	if m == nil {
		return
	}
	if v {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) observeReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) observeEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeDrop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}
