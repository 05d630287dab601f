package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/entity"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
)

const (
	// defaultCommandTimeout bounds one Execute call, cloud retries included.
	defaultCommandTimeout = 30 * time.Second

	// outboundQueueSize is the capacity of the publisher queue.
	outboundQueueSize = 256
)

// Published message kinds, used as metric labels.
const (
	kindState    = "state"
	kindClear    = "clear"
	kindAck      = "ack"
	kindDoorbell = "doorbell"
	kindAlert    = "alert"
)

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the interface for MQTT operations. *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Source is the reconciled device table. *coordinator.Coordinator
// satisfies it.
type Source interface {
	entity.Source
	HealthSource
	SubscribeDoorbells(fn func(deviceID, timestamp string)) *coordinator.Subscription
	SubscribeAlerts(fn func(coordinator.Alert)) *coordinator.Subscription
}

// Telemetry records command outcomes and stream state for long-term
// storage. *influxdb.Client satisfies it.
type Telemetry interface {
	StreamRecorder
	RecordCommand(deviceID, deviceType, outcome string)
}

// Options holds configuration for creating a bridge.
type Options struct {
	MQTT   MQTTClient
	Topics mqtt.Topics
	QoS    byte

	Source    Source
	Commander entity.Commander

	// Pending configures confirmation tracking for every controller.
	Pending pending.Config

	// CommandTimeout bounds a single command. Default: 30 seconds.
	CommandTimeout time.Duration

	// HealthInterval is how often health is published. Default: 30 seconds.
	HealthInterval time.Duration

	ClientID string
	Version  string

	// Telemetry, Metrics and Logger are optional.
	Telemetry Telemetry
	Metrics   *Metrics
	Logger    Logger
}

// outbound is a message waiting for the publisher goroutine.
type outbound struct {
	kind     string
	topic    string
	payload  []byte
	retained bool
}

// claim is the command currently executing on a device. Outcomes that
// end it before Execute returns are held in terminal so that the accepted
// ack is always published first.
type claim struct {
	id       string
	began    bool
	terminal *AckMessage
}

// handle serialises commands for one device.
type handle struct {
	mu   sync.Mutex
	ctrl entity.Controller
}

// Bridge publishes the device table to MQTT and executes MQTT commands
// through entity controllers.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt           MQTTClient
	topics         mqtt.Topics
	qos            byte
	source         Source
	deps           entity.Deps
	commandTimeout time.Duration
	health         *HealthReporter
	stats          *Statistics
	telemetry      Telemetry
	metrics        *Metrics
	logger         Logger

	// Controllers are created on first command and released when their
	// device leaves the table.
	ctrlMu      sync.Mutex
	controllers map[string]*handle
	stopped     bool

	// claims holds the command being executed per device; inflight holds
	// the command whose target is pending.
	cmdMu    sync.Mutex
	claims   map[string]*claim
	inflight map[string]string

	latest    atomic.Pointer[device.Table]
	wake      chan struct{}
	out       chan outbound
	published map[string][]byte // publisher goroutine only

	subs []*coordinator.Subscription

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Source == nil {
		return nil, errors.New("device source is required")
	}
	if opts.Commander == nil {
		return nil, errors.New("commander is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:           opts.MQTT,
		topics:         opts.Topics,
		qos:            opts.QoS,
		source:         opts.Source,
		commandTimeout: opts.CommandTimeout,
		stats:          &Statistics{},
		telemetry:      opts.Telemetry,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		controllers:    make(map[string]*handle),
		claims:         make(map[string]*claim),
		inflight:       make(map[string]string),
		wake:           make(chan struct{}, 1),
		out:            make(chan outbound, outboundQueueSize),
		published:      make(map[string][]byte),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
	}
	if b.topics.Prefix == "" {
		b.topics = mqtt.NewTopics("")
	}
	if b.commandTimeout <= 0 {
		b.commandTimeout = defaultCommandTimeout
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}

	b.deps = entity.Deps{
		Source:    opts.Source,
		Commander: opts.Commander,
		Pending:   opts.Pending,
		OnOutcome: b.handleOutcome,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		ClientID:  opts.ClientID,
		Version:   opts.Version,
		Topic:     b.topics.Health(),
		QoS:       opts.QoS,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Source:    opts.Source,
		Recorder:  opts.Telemetry,
		Stats:     b.stats,
		Logger:    b.logger,
	})

	return b, nil
}

// Start subscribes to the device table and the command topic and starts
// health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	b.subs = append(b.subs,
		b.source.Subscribe(b.onTable),
		b.source.SubscribeDoorbells(b.onDoorbell),
		b.source.SubscribeAlerts(b.onAlert),
	)
	b.onTable(b.source.Table())

	b.wg.Add(1)
	go b.publishLoop()

	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	b.health.Start(ctx)

	b.logger.Info("bridge started", "devices", len(b.source.Table()))
	return nil
}

// Stop gracefully shuts down the bridge. In-flight commands are cancelled
// and queued messages are flushed before the final health status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctrlMu.Lock()
		b.stopped = true
		b.ctrlMu.Unlock()

		for _, sub := range b.subs {
			sub.Unsubscribe()
		}
		b.ctxCancel()
		close(b.done)
		b.wg.Wait()

		b.releaseControllers(func(string) bool { return true })
		b.health.Stop()

		b.logger.Info("bridge stopped")
	})
}

// Health returns the current health message without publishing it.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}

// Stats returns a copy of the bridge counters.
func (b *Bridge) Stats() StatsSnapshot {
	return b.stats.Snapshot()
}

// handleCommand is the MQTT handler for {prefix}/command/+.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, ok := b.topics.DeviceFromCommand(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}
	b.stats.commandsReceived.Add(1)

	msg, err := ParseCommand(payload)
	if err != nil {
		b.fail(msg.ID, deviceID, err)
		return nil
	}

	h, err := b.acquire(deviceID)
	if errors.Is(err, errStopped) {
		return nil
	}
	if err != nil {
		b.fail(msg.ID, deviceID, err)
		return nil
	}

	go b.execute(h, deviceID, msg)
	return nil
}

// acquire returns the cached controller for deviceID, creating it on first
// use, and registers one command with the wait group.
func (b *Bridge) acquire(deviceID string) (*handle, error) {
	snap, ok := b.source.Device(deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	b.ctrlMu.Lock()
	defer b.ctrlMu.Unlock()
	if b.stopped {
		return nil, errStopped
	}
	h, ok := b.controllers[deviceID]
	if !ok {
		ctrl, ok := entity.ForDevice(deviceID, snap.Type, b.deps)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotControllable, snap.Type)
		}
		h = &handle{ctrl: ctrl}
		b.controllers[deviceID] = h
	}
	b.wg.Add(1)
	return h, nil
}

func (b *Bridge) execute(h *handle, deviceID string, msg CommandMessage) {
	defer b.wg.Done()

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
	defer cancel()

	c := &claim{id: msg.ID}
	b.cmdMu.Lock()
	b.claims[deviceID] = c
	b.cmdMu.Unlock()

	err := h.ctrl.Execute(ctx, msg.Command, msg.Parameters)

	b.cmdMu.Lock()
	delete(b.claims, deviceID)
	began, terminal := c.began, c.terminal
	b.cmdMu.Unlock()

	if err != nil {
		// A failed send outranks any confirmation seen while it ran.
		b.fail(msg.ID, deviceID, err)
		return
	}

	b.enqueueAck(NewAck(msg.ID, deviceID, AckAccepted))
	switch {
	case terminal != nil:
		b.enqueueAck(*terminal)
		b.recordCommand(deviceID, string(terminal.Status))
	case !began:
		// Nothing to confirm, e.g. a channel skip.
		b.recordCommand(deviceID, "sent")
	}

	b.logger.Debug("command accepted",
		"device_id", deviceID,
		"command", msg.Command,
		"command_id", msg.ID,
	)
}

// handleOutcome runs for every pending transition. It may be called with
// the coordinator lock held, so it only updates maps and enqueues.
func (b *Bridge) handleOutcome(deviceID string, outcome pending.Outcome) {
	var ack *AckMessage

	b.cmdMu.Lock()
	current, tracked := b.inflight[deviceID]
	c := b.claims[deviceID]
	switch outcome {
	case pending.Began:
		if c != nil {
			c.began = true
			b.inflight[deviceID] = c.id
		}
	case pending.Superseded:
		delete(b.inflight, deviceID)
		if tracked {
			a := NewAck(current, deviceID, AckSuperseded)
			ack = &a
		}
	case pending.Confirmed:
		delete(b.inflight, deviceID)
		if tracked {
			a := NewAck(current, deviceID, AckConfirmed)
			ack = &a
		}
	case pending.TimedOut:
		delete(b.inflight, deviceID)
		if tracked {
			a := NewAck(current, deviceID, AckTimeout)
			a.Error = &AckError{Code: ErrCodeTimeout, Message: "no confirming update received"}
			ack = &a
		}
	case pending.Failed:
		// The executing goroutine sends the failed ack.
		delete(b.inflight, deviceID)
	}
	if ack != nil && c != nil && c.id == ack.CommandID {
		// Still executing; execute publishes it after the accepted ack.
		c.terminal = ack
		ack = nil
	}
	b.cmdMu.Unlock()

	if ack == nil {
		return
	}
	b.enqueueAck(*ack)
	b.recordCommand(deviceID, string(ack.Status))
}

func (b *Bridge) fail(commandID, deviceID string, err error) {
	b.stats.commandsFailed.Add(1)
	b.enqueueAck(NewFailedAck(commandID, deviceID, err))
	b.recordCommand(deviceID, string(AckFailed))

	b.logger.Warn("command failed",
		"device_id", deviceID,
		"command_id", commandID,
		"error", err,
	)
}

func (b *Bridge) recordCommand(deviceID, outcome string) {
	b.metrics.observeCommand(outcome)
	if b.telemetry == nil {
		return
	}
	var typ string
	if snap, ok := b.source.Device(deviceID); ok {
		typ = string(snap.Type)
	}
	b.telemetry.RecordCommand(deviceID, typ, outcome)
}

// onTable stores the latest table and wakes the publisher. Called under
// the coordinator lock.
func (b *Bridge) onTable(t device.Table) {
	b.latest.Store(&t)
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) onDoorbell(deviceID, timestamp string) {
	b.stats.doorbells.Add(1)
	msg := DoorbellMessage{DeviceID: deviceID, Timestamp: timestamp}
	if snap, ok := b.source.Device(deviceID); ok {
		msg.DeviceName = snap.Name
	}
	b.enqueueJSON(kindDoorbell, b.topics.Doorbell(deviceID), msg, false)
}

func (b *Bridge) onAlert(a coordinator.Alert) {
	b.stats.alerts.Add(1)
	b.enqueueJSON(kindAlert, b.topics.Alert(), NewAlertMessage(a), false)
}

func (b *Bridge) enqueueAck(ack AckMessage) {
	b.enqueueJSON(kindAck, b.topics.Ack(ack.DeviceID), ack, false)
}

func (b *Bridge) enqueueJSON(kind, topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("failed to encode message", "topic", topic, "error", err)
		return
	}
	if err := b.enqueue(outbound{kind: kind, topic: topic, payload: payload, retained: retained}); err != nil {
		b.logger.Warn("dropping outbound message", "topic", topic, "error", err)
	}
}

func (b *Bridge) enqueue(m outbound) error {
	select {
	case b.out <- m:
		return nil
	default:
		b.stats.dropped.Add(1)
		b.metrics.observeDrop()
		return ErrQueueFull
	}
}

// publishLoop is the only goroutine that publishes states, acks and events.
func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			b.drain()
			return
		case <-b.wake:
			b.publishTable()
		case m := <-b.out:
			b.send(m)
		}
	}
}

// drain flushes whatever is queued at shutdown.
func (b *Bridge) drain() {
	for {
		select {
		case m := <-b.out:
			b.send(m)
		default:
			return
		}
	}
}

func (b *Bridge) send(m outbound) {
	if err := b.mqtt.Publish(m.topic, m.payload, b.qos, m.retained); err != nil {
		b.logger.Warn("publish failed", "topic", m.topic, "error", err)
		return
	}
	b.metrics.observePublish(m.kind)
}

// publishTable publishes every snapshot that differs from what was last
// published and clears the retained state of removed devices.
func (b *Bridge) publishTable() {
	t := b.latest.Load()
	if t == nil {
		return
	}
	table := *t
	now := time.Now().UTC()

	for _, id := range table.IDs() {
		snap := table[id]
		state, err := json.Marshal(snap)
		if err != nil {
			b.logger.Error("failed to encode device state", "device_id", id, "error", err)
			continue
		}
		if bytes.Equal(state, b.published[id]) {
			continue
		}
		payload, err := json.Marshal(StateMessage{DeviceID: id, Timestamp: now, State: snap})
		if err != nil {
			continue
		}
		if err := b.mqtt.Publish(b.topics.State(id), payload, b.qos, true); err != nil {
			b.logger.Warn("state publish failed", "device_id", id, "error", err)
			continue
		}
		b.published[id] = state
		b.stats.statesPublished.Add(1)
		b.metrics.observePublish(kindState)
	}

	for id := range b.published {
		if _, ok := table[id]; ok {
			continue
		}
		// An empty retained payload removes the retained message.
		if err := b.mqtt.Publish(b.topics.State(id), nil, b.qos, true); err != nil {
			b.logger.Warn("state clear failed", "device_id", id, "error", err)
			continue
		}
		delete(b.published, id)
		b.metrics.observePublish(kindClear)
	}

	b.releaseControllers(func(id string) bool {
		_, ok := table[id]
		return !ok
	})
}

// releaseControllers releases controllers selected by drop. Release may
// report outcomes, so it runs without ctrlMu.
func (b *Bridge) releaseControllers(drop func(id string) bool) {
	var released []entity.Controller
	b.ctrlMu.Lock()
	for id, h := range b.controllers {
		if drop(id) {
			released = append(released, h.ctrl)
			delete(b.controllers, id)
		}
	}
	b.ctrlMu.Unlock()

	for _, c := range released {
		c.Release()
	}
}
