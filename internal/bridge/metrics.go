package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects bridge statistics. A nil *Metrics records nothing.
type Metrics struct {
	commands  *prometheus.CounterVec
	published *prometheus.CounterVec
	dropped   prometheus.Counter
}

// NewMetrics creates an unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_mqtt_commands_total",
			Help: "MQTT commands by final outcome",
		}, []string{"outcome"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_mqtt_published_total",
			Help: "MQTT messages published by kind",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudbridge_mqtt_dropped_total",
			Help: "Outbound messages dropped because the queue was full",
		}),
	}
}

// Collectors returns the collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.commands, m.published, m.dropped}
}

func (m *Metrics) observeCommand(outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observePublish(kind string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
