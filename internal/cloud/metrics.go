package cloud

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects request-level statistics for the remote client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	retries  prometheus.Counter
	duration *prometheus.HistogramVec
	actions  *prometheus.CounterVec
}

// NewMetrics creates an unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_cloud_requests_total",
			Help: "Remote API requests by method and final outcome",
		}, []string{"method", "outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudbridge_cloud_retries_total",
			Help: "Remote API attempts repeated after a transient failure",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudbridge_cloud_request_duration_seconds",
			Help:    "Remote API request duration including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbridge_cloud_actions_total",
			Help: "Device actions sent by action and outcome",
		}, []string{"action", "outcome"}),
	}
}

// Collectors returns the collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.requests, m.retries, m.duration, m.actions}
}

func (m *Metrics) observeRequest(method string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, Outcome(err)).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) observeAction(action string, err error) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, Outcome(err)).Inc()
}
