package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// PublishedTo returns the messages published on topic, in order.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to every handler whose subscription
// matches topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var matched []mqtt.MessageHandler
	for pattern, h := range m.handlers {
		if topicMatches(pattern, topic) {
			matched = append(matched, h)
		}
	}
	m.mu.Unlock()
	for _, h := range matched {
		_ = h(topic, payload)
	}
}

func topicMatches(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	for i, seg := range p {
		if seg == "#" {
			return true
		}
		if i >= len(t) || (seg != "+" && seg != t[i]) {
			return false
		}
	}
	return len(p) == len(t)
}

// fakeLister serves a mutable device list.
type fakeLister struct {
	mu      sync.Mutex
	devices []map[string]any
}

func (f *fakeLister) ListDevices(context.Context) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeLister) set(devices ...map[string]any) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

// fakeCommander records calls and returns queued errors in order.
type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	errs  []error

	// during, when set, runs inside every call before it returns.
	during func(call string)
}

func (f *fakeCommander) record(format string, args ...any) error {
	call := fmt.Sprintf(format, args...)

	f.mu.Lock()
	f.calls = append(f.calls, call)
	during := f.during
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if during != nil {
		during(call)
	}
	return err
}

func (f *fakeCommander) onCall(fn func(call string)) {
	f.mu.Lock()
	f.during = fn
	f.mu.Unlock()
}

func (f *fakeCommander) failNext(errs ...error) {
	f.mu.Lock()
	f.errs = append(f.errs, errs...)
	f.mu.Unlock()
}

func (f *fakeCommander) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCommander) SetPowerState(_ context.Context, id string, on bool) error {
	return f.record("setPowerState %s %t", id, on)
}
func (f *fakeCommander) SetBrightness(_ context.Context, id string, v int) error {
	return f.record("setBrightness %s %d", id, v)
}
func (f *fakeCommander) SetColor(_ context.Context, id string, c device.RGB) error {
	return f.record("setColor %s %d,%d,%d", id, c.R, c.G, c.B)
}
func (f *fakeCommander) SetColorTemperature(_ context.Context, id string, k int) error {
	return f.record("setColorTemperature %s %d", id, k)
}
func (f *fakeCommander) SetRangeValue(_ context.Context, id string, v int) error {
	return f.record("setRangeValue %s %d", id, v)
}
func (f *fakeCommander) SetMode(_ context.Context, id, mode string) error {
	return f.record("setMode %s %s", id, mode)
}
func (f *fakeCommander) SetLockState(_ context.Context, id string, lock bool) error {
	return f.record("setLockState %s %t", id, lock)
}
func (f *fakeCommander) SetVolume(_ context.Context, id string, v int) error {
	return f.record("setVolume %s %d", id, v)
}
func (f *fakeCommander) SetMute(_ context.Context, id string, mute bool) error {
	return f.record("setMute %s %t", id, mute)
}
func (f *fakeCommander) SetPowerLevel(_ context.Context, id string, v int) error {
	return f.record("setPowerLevel %s %d", id, v)
}
func (f *fakeCommander) SkipChannels(_ context.Context, id string, n int) error {
	return f.record("skipChannels %s %d", id, n)
}
func (f *fakeCommander) MediaControl(_ context.Context, id, control string) error {
	return f.record("mediaControl %s %s", id, control)
}
func (f *fakeCommander) SetTargetTemperature(_ context.Context, id string, c float64) error {
	return f.record("targetTemperature %s %.1f", id, c)
}
func (f *fakeCommander) SetThermostatMode(_ context.Context, id, mode string) error {
	return f.record("setThermostatMode %s %s", id, mode)
}

// manualClock fires pending timeouts only when Fire is called.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) pending.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// Fire runs every timer that has not been stopped.
func (c *manualClock) Fire() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// fakeTelemetry records what the bridge reports.
type fakeTelemetry struct {
	mu       sync.Mutex
	commands []string
	streams  []string
}

func (f *fakeTelemetry) RecordCommand(deviceID, deviceType, outcome string) {
	f.mu.Lock()
	f.commands = append(f.commands, deviceID+" "+deviceType+" "+outcome)
	f.mu.Unlock()
}

func (f *fakeTelemetry) RecordStreamStatus(status string, _ int, _ time.Duration) {
	f.mu.Lock()
	f.streams = append(f.streams, status)
	f.mu.Unlock()
}

func (f *fakeTelemetry) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type harness struct {
	t      *testing.T
	coord  *coordinator.Coordinator
	lister *fakeLister
	cmd    *fakeCommander
	clock  *manualClock
	mqtt   *MockMQTTClient
	tel    *fakeTelemetry
	bridge *Bridge
	topics mqtt.Topics
}

func newHarness(t *testing.T, devices ...map[string]any) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		lister: &fakeLister{devices: devices},
		cmd:    &fakeCommander{},
		clock:  &manualClock{},
		mqtt:   NewMockMQTTClient(),
		tel:    &fakeTelemetry{},
		topics: mqtt.NewTopics("test"),
	}
	h.coord = coordinator.New(h.lister, nil, coordinator.Config{})
	if _, err := h.coord.Poll(context.Background()); err != nil {
		t.Fatalf("initial poll: %v", err)
	}

	b, err := New(Options{
		MQTT:           h.mqtt,
		Topics:         h.topics,
		QoS:            1,
		Source:         h.coord,
		Commander:      h.cmd,
		Pending:        pending.Config{Clock: h.clock},
		HealthInterval: time.Hour,
		ClientID:       "test-bridge",
		Version:        "test",
		Telemetry:      h.tel,
		Metrics:        NewMetrics(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.bridge = b
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return h
}

func (h *harness) push(id, action string, value map[string]any) {
	h.coord.ApplyPushEvent(stream.KindDeviceMessageArrived, id, map[string]any{
		"message": map[string]any{
			"deviceId": id,
			"payload":  map[string]any{"action": action, "value": value},
		},
	})
}

func (h *harness) command(deviceID, payload string) {
	h.mqtt.SimulateMessage(h.topics.Command(deviceID), []byte(payload))
}

// acks decodes every ack published for deviceID.
func (h *harness) acks(deviceID string) []AckMessage {
	var out []AckMessage
	for _, p := range h.mqtt.PublishedTo(h.topics.Ack(deviceID)) {
		var ack AckMessage
		if err := json.Unmarshal(p.Payload, &ack); err != nil {
			h.t.Fatalf("decoding ack: %v", err)
		}
		out = append(out, ack)
	}
	return out
}

// waitAck waits until an ack with status exists for commandID.
func (h *harness) waitAck(deviceID, commandID string, status AckStatus) AckMessage {
	h.t.Helper()
	var found AckMessage
	waitFor(h.t, fmt.Sprintf("%s ack for %s", status, commandID), func() bool {
		for _, a := range h.acks(deviceID) {
			if a.CommandID == commandID && a.Status == status {
				found = a
				return true
			}
		}
		return false
	})
	return found
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func raw(id, typ string, fields map[string]any) map[string]any {
	m := map[string]any{
		"id":         id,
		"name":       "Device " + id,
		"deviceType": typ,
		"isOnline":   true,
		"powerState": "Off",
	}
	for k, v := range fields {
		m[k] = v
	}
	return m
}
