package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Push event results.
const (
	pushApplied       = "applied"
	pushNoop          = "noop"
	pushUnknownDevice = "unknown_device"
	pushIgnored       = "ignored"
)

// Metrics collects reconciliation statistics. A nil *Metrics records nothing.
type Metrics struct {
	polls         *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	devices       prometheus.Gauge
	stale         prometheus.Gauge
	pushEvents    *prometheus.CounterVec
	notifications prometheus.Counter
}

// NewMetrics creates an unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_polls_total",
			Help: "Full device polls by outcome",
		}, []string{"outcome"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloudbridge_poll_duration_seconds",
			Help:    "Duration of full device polls",
			Buckets: prometheus.DefBuckets,
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cloudbridge_devices",
			Help: "Devices in the current table",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cloudbridge_table_stale",
			Help: "1 when the last poll failed and the table may be out of date",
		}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_push_events_total",
			Help: "Push events handled by kind and result",
		}, []string{"kind", "result"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudbridge_table_notifications_total",
			Help: "Devices-updated notifications sent to subscribers",
		}),
	}
}

// Collectors returns the collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.polls, m.pollDuration, m.devices, m.stale, m.pushEvents, m.notifications}
}

func (m *Metrics) observePoll(outcome string, d time.Duration, devices int, ok bool) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(outcome).Inc()
	m.pollDuration.Observe(d.Seconds())
	if ok {
		m.devices.Set(float64(devices))
		m.stale.Set(0)
	} else {
		m.stale.Set(1)
	}
}

func (m *Metrics) observePush(kind, result string) {
	if m == nil {
		return
	}
	m.pushEvents.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) observeNotify() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}
