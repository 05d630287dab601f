package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/config"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "cloudbridge-dev-token",
		Org:           "cloudbridge",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test unless a server is reachable.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// recordingWriter captures points as line protocol.
type recordingWriter struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingWriter) WritePoint(p *write.Point) {
	r.mu.Lock()
	r.lines = append(r.lines, write.PointToLineProtocol(p, time.Second))
	r.mu.Unlock()
}

func (r *recordingWriter) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecordingClient() (*Client, *recordingWriter) {
	w := &recordingWriter{}
	return &Client{
		points:    w,
		connected: true,
		now:       func() time.Time { return fixedTime },
	}, w
}

// =============================================================================
// Telemetry Tests
// =============================================================================

func TestRecordPoll(t *testing.T) {
	c, w := newRecordingClient()

	c.RecordPoll(12, 250*time.Millisecond, nil)
	c.RecordPoll(0, time.Second, errors.New("connection refused"))

	lines := w.Lines()
	if len(lines) != 2 {
		t.Fatalf("points = %d, want 2", len(lines))
	}

	for _, want := range []string{"cloudbridge_poll,result=success", "devices=12i", "duration_ms=250"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("success point %q missing %q", lines[0], want)
		}
	}
	for _, want := range []string{"result=failure", `error="connection refused"`, "devices=0i"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("failure point %q missing %q", lines[1], want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "1772366400") {
		t.Errorf("timestamp not taken from clock: %q", lines[0])
	}
}

func TestRecordStreamStatus(t *testing.T) {
	c, w := newRecordingClient()

	c.RecordStreamStatus("disconnected", 3, 4*time.Second)

	line := w.Lines()[0]
	for _, want := range []string{"cloudbridge_stream,status=disconnected", "attempts=3i", "backoff_s=4"} {
		if !strings.Contains(line, want) {
			t.Errorf("point %q missing %q", line, want)
		}
	}
}

func TestRecordCommand(t *testing.T) {
	c, w := newRecordingClient()

	c.RecordCommand("5f1c", "switch", "confirmed")

	line := w.Lines()[0]
	for _, want := range []string{"cloudbridge_command,", "device_type=switch", "outcome=confirmed", `device_id="5f1c"`} {
		if !strings.Contains(line, want) {
			t.Errorf("point %q missing %q", line, want)
		}
	}
}

func TestWriteSkippedWhenDisconnected(t *testing.T) {
	c, w := newRecordingClient()
	c.connected = false

	c.RecordPoll(1, time.Millisecond, nil)
	c.WritePoint("custom", nil, map[string]any{"v": 1})

	if n := len(w.Lines()); n != 0 {
		t.Errorf("points written while disconnected = %d", n)
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
	c.Flush()
}

func TestConnectAndRecord(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.RecordPoll(3, 120*time.Millisecond, nil)
	client.RecordStreamStatus("connected", 0, time.Second)
	client.RecordCommand("int-test", "light", "confirmed")
	client.Flush()

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}
