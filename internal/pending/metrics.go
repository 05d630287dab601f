package pending

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts command outcomes across all pending states sharing it.
// A nil *Metrics records nothing.
type Metrics struct {
	outcomes *prometheus.CounterVec
	active   prometheus.Gauge
}

// NewMetrics creates an unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_commands_total",
			Help: "Commands by final pending-state outcome",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cloudbridge_commands_pending",
			Help: "Commands awaiting confirmation",
		}),
	}
}

// Collectors returns the collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.outcomes, m.active}
}

func (m *Metrics) began() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) ended(outcome Outcome) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.outcomes.WithLabelValues(outcome.String()).Inc()
}
