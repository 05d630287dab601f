package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
)

// defaultHealthInterval applies when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource reports reconciliation state. *coordinator.Coordinator
// satisfies it.
type HealthSource interface {
	Table() device.Table
	LastUpdateSuccess() bool
	LastPoll() time.Time
	StreamState() stream.State
}

// StreamRecorder receives the stream state on every health report.
type StreamRecorder interface {
	RecordStreamStatus(status string, attempts int, backoff time.Duration)
}

// Statistics are the bridge counters reported in health messages.
type Statistics struct {
	commandsReceived atomic.Int64
	commandsFailed   atomic.Int64
	statesPublished  atomic.Int64
	doorbells        atomic.Int64
	alerts           atomic.Int64
	dropped          atomic.Int64
}

// Snapshot copies the counters.
func (s *Statistics) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		CommandsReceived: s.commandsReceived.Load(),
		CommandsFailed:   s.commandsFailed.Load(),
		StatesPublished:  s.statesPublished.Load(),
		Doorbells:        s.doorbells.Load(),
		Alerts:           s.alerts.Load(),
		Dropped:          s.dropped.Load(),
	}
}

// HealthReporter manages periodic health status reporting.
type HealthReporter struct {
	clientID  string
	version   string
	topic     string
	qos       byte
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    HealthSource
	recorder  StreamRecorder
	stats     *Statistics
	logger    Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	ClientID string
	Version  string

	// Topic is the retained health topic.
	Topic string
	QoS   byte

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    HealthSource

	// Recorder is optional.
	Recorder StreamRecorder

	Stats  *Statistics
	Logger Logger
}

// NewHealthReporter creates a new health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	stats := cfg.Stats
	if stats == nil {
		stats = &Statistics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &HealthReporter{
		clientID:  cfg.ClientID,
		version:   cfg.Version,
		topic:     cfg.Topic,
		qos:       cfg.QoS,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		recorder:  cfg.Recorder,
		stats:     stats,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Current builds the health message without publishing it.
func (h *HealthReporter) Current() HealthMessage {
	status, reason := h.determineStatus()
	return h.buildMessage(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source == nil {
		return HealthHealthy, ""
	}

	st := h.source.StreamState()
	if st.Status == stream.StatusClosed {
		return HealthUnhealthy, "push stream closed"
	}
	if !h.source.LastUpdateSuccess() {
		return HealthDegraded, "device table stale"
	}
	if !st.Connected() {
		return HealthDegraded, "push stream " + st.Status.String()
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		ClientID:      h.clientID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Reason:        reason,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Statistics:    h.stats.Snapshot(),
	}
	if h.source == nil {
		return msg
	}

	msg.Devices = len(h.source.Table())
	msg.TableFresh = h.source.LastUpdateSuccess()
	if lp := h.source.LastPoll(); !lp.IsZero() {
		lp = lp.UTC()
		msg.LastPoll = &lp
	}

	st := h.source.StreamState()
	msg.Stream = &StreamHealth{
		Status:         st.Status.String(),
		Attempts:       st.Attempts,
		BackoffSeconds: st.Backoff.Seconds(),
	}
	if st.LastError != nil {
		msg.Stream.LastError = st.LastError.Error()
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	msg := h.buildMessage(status, reason)

	if h.recorder != nil && msg.Stream != nil {
		h.recorder.RecordStreamStatus(msg.Stream.Status, msg.Stream.Attempts,
			time.Duration(msg.Stream.BackoffSeconds*float64(time.Second)))
	}

	if h.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, h.qos, true)
}
