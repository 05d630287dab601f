package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
)

// mockPublisher implements HealthPublisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []mockPublish
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.messages...)
}

// staticSource is a HealthSource with fixed answers.
type staticSource struct {
	table    device.Table
	fresh    bool
	lastPoll time.Time
	stream   stream.State
}

func (s staticSource) Table() device.Table       { return s.table }
func (s staticSource) LastUpdateSuccess() bool   { return s.fresh }
func (s staticSource) LastPoll() time.Time       { return s.lastPoll }
func (s staticSource) StreamState() stream.State { return s.stream }

func connectedSource() staticSource {
	return staticSource{
		table:    device.Table{"d1": {ID: "d1"}, "d2": {ID: "d2"}},
		fresh:    true,
		lastPoll: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		stream:   stream.State{Status: stream.StatusConnected},
	}
}

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		source     HealthSource
		wantStatus HealthStatus
		wantReason string
	}{
		{"all good", true, connectedSource(), HealthHealthy, ""},
		{"mqtt down", false, connectedSource(), HealthDegraded, "MQTT disconnected"},
		{"stale table", true, func() HealthSource {
			s := connectedSource()
			s.fresh = false
			return s
		}(), HealthDegraded, "device table stale"},
		{"stream reconnecting", true, func() HealthSource {
			s := connectedSource()
			s.stream = stream.State{Status: stream.StatusConnecting, Attempts: 2}
			return s
		}(), HealthDegraded, "push stream " + stream.StatusConnecting.String()},
		{"stream gave up", true, func() HealthSource {
			s := connectedSource()
			s.stream = stream.State{Status: stream.StatusClosed}
			return s
		}(), HealthUnhealthy, "push stream closed"},
		{"no source", true, nil, HealthHealthy, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthReporter(HealthReporterConfig{
				Publisher: newMockPublisher(tt.connected),
				Source:    tt.source,
			})
			status, reason := h.determineStatus()
			if status != tt.wantStatus || reason != tt.wantReason {
				t.Errorf("determineStatus() = (%s, %q), want (%s, %q)", status, reason, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func TestPublishNow_Message(t *testing.T) {
	pub := newMockPublisher(true)
	src := connectedSource()
	src.stream = stream.State{
		Status:    stream.StatusDisconnected,
		Attempts:  3,
		Backoff:   4 * time.Second,
		LastError: errors.New("connection reset"),
	}
	tel := &fakeTelemetry{}
	stats := &Statistics{}
	stats.commandsReceived.Add(5)

	h := NewHealthReporter(HealthReporterConfig{
		ClientID:  "bridge-1",
		Version:   "1.2.3",
		Topic:     "cb/health",
		QoS:       1,
		Publisher: pub,
		Source:    src,
		Recorder:  tel,
		Stats:     stats,
	})
	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msgs := pub.getMessages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].Topic != "cb/health" || !msgs[0].Retained || msgs[0].QoS != 1 {
		t.Errorf("publish = %+v", msgs[0])
	}

	var msg HealthMessage
	if err := json.Unmarshal(msgs[0].Payload, &msg); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if msg.Status != HealthDegraded || msg.Devices != 2 || !msg.TableFresh || msg.Version != "1.2.3" {
		t.Errorf("message = %+v", msg)
	}
	if msg.LastPoll == nil || !msg.LastPoll.Equal(src.lastPoll) {
		t.Errorf("last poll = %v", msg.LastPoll)
	}
	if msg.Stream == nil || msg.Stream.Attempts != 3 || msg.Stream.BackoffSeconds != 4 || msg.Stream.LastError != "connection reset" {
		t.Errorf("stream = %+v", msg.Stream)
	}
	if msg.Statistics.CommandsReceived != 5 {
		t.Errorf("statistics = %+v", msg.Statistics)
	}

	tel.mu.Lock()
	defer tel.mu.Unlock()
	if len(tel.streams) != 1 || tel.streams[0] != stream.StatusDisconnected.String() {
		t.Errorf("recorded stream statuses = %q", tel.streams)
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	pub := newMockPublisher(true)
	h := NewHealthReporter(HealthReporterConfig{
		Topic:     "cb/health",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
		Source:    connectedSource(),
	})

	h.Start(context.Background())
	waitFor(t, "periodic health", func() bool { return len(pub.getMessages()) >= 3 })
	h.Stop()
	h.Stop()

	msgs := pub.getMessages()
	var last HealthMessage
	if err := json.Unmarshal(msgs[len(msgs)-1].Payload, &last); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if last.Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", last.Status)
	}

	count := len(msgs)
	time.Sleep(30 * time.Millisecond)
	if len(pub.getMessages()) != count {
		t.Error("health still published after Stop")
	}
}

func TestNewHealthReporter_DefaultInterval(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if h.interval != defaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.interval, defaultHealthInterval)
	}
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() without publisher = %v, want nil", err)
	}
}
