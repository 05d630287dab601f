package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at a local broker. Tests in
// this file never dial it; see integration_test.go for broker tests.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "cloudbridge-test",
		},
		QoS:         1,
		TopicPrefix: "cloudbridge",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("home/cloud")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"State", topics.State("dev1"), "home/cloud/state/dev1"},
		{"Doorbell", topics.Doorbell("dev1"), "home/cloud/event/doorbell/dev1"},
		{"Alert", topics.Alert(), "home/cloud/alert"},
		{"Health", topics.Health(), "home/cloud/health"},
		{"Status", topics.Status(), "home/cloud/status"},
		{"Command", topics.Command("dev1"), "home/cloud/command/dev1"},
		{"Ack", topics.Ack("dev1"), "home/cloud/ack/dev1"},
		{"AllCommands", topics.AllCommands(), "home/cloud/command/+"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestNewTopicsPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "cloudbridge/alert"},
		{"/", "cloudbridge/alert"},
		{"site/", "site/alert"},
		{"/site", "site/alert"},
	}
	for _, tt := range tests {
		if got := NewTopics(tt.prefix).Alert(); got != tt.want {
			t.Errorf("NewTopics(%q).Alert() = %q, want %q", tt.prefix, got, tt.want)
		}
	}

	// The zero value falls back to the default prefix too.
	if got := (Topics{}).Health(); got != "cloudbridge/health" {
		t.Errorf("Topics{}.Health() = %q", got)
	}
}

func TestDeviceFromCommand(t *testing.T) {
	topics := NewTopics("cloudbridge")

	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"cloudbridge/command/abc123", "abc123", true},
		{"cloudbridge/command/", "", false},
		{"cloudbridge/command/abc/extra", "", false},
		{"cloudbridge/ack/abc123", "", false},
		{"other/command/abc123", "", false},
	}
	for _, tt := range tests {
		id, ok := topics.DeviceFromCommand(tt.topic)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("DeviceFromCommand(%q) = %q, %v; want %q, %v", tt.topic, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "cloudbridge-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("auto-reconnect and clean session must be enabled")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without broker.tls")
	}

	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	opts = buildClientOptions(cfg)
	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("TLS server = %v", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("cb"), "cloudbridge-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("last will must be enabled and retained")
	}
	if opts.WillTopic != "cb/status" {
		t.Errorf("WillTopic = %q, want cb/status", opts.WillTopic)
	}
	if !strings.Contains(string(opts.WillPayload), `"status":"offline"`) ||
		!strings.Contains(string(opts.WillPayload), `"reason":"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestValidationBeforeConnection(t *testing.T) {
	client := &Client{cfg: testConfig()}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", client.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", client.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish oversize", client.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", client.PublishRetained("t", []byte("x")), ErrNotConnected},
		{"subscribe empty topic", client.Subscribe("", 1, handler), ErrInvalidTopic},
		{"subscribe bad qos", client.Subscribe("t", 3, handler), ErrInvalidQoS},
		{"subscribe nil handler", client.Subscribe("t", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", client.Subscribe("t", 1, handler), ErrNotConnected},
		{"unsubscribe empty topic", client.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", client.Unsubscribe("t"), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Handler Dispatch Tests
// =============================================================================

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestDispatchRecoversPanic(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	client.dispatch(func(string, []byte) error { panic("boom") }, "cb/command/x", nil)

	if len(logger.errors) != 1 {
		t.Errorf("errors logged = %d, want 1", len(logger.errors))
	}
}

func TestDispatchLogsHandlerError(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	client.dispatch(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return errors.New("bad command")
	}, "cb/command/x", []byte(`{}`))

	if gotTopic != "cb/command/x" || string(gotPayload) != "{}" {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings logged = %d, want 1", len(logger.warns))
	}
}

func TestDispatchWithoutLogger(t *testing.T) {
	client := &Client{}
	// Must not panic even though nobody is listening.
	client.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	client.dispatch(func(string, []byte) error { return errors.New("x") }, "t", nil)
}

func TestCallbacks(t *testing.T) {
	client := &Client{}
	var connected, lost bool
	client.SetOnConnect(func() { connected = true })
	client.SetOnDisconnect(func(error) { lost = true })

	client.handleDisconnect(errors.New("reset"))
	if !lost {
		t.Error("OnDisconnect not called")
	}
	if client.IsConnected() {
		t.Error("connected after disconnect")
	}
	if connected {
		t.Error("OnConnect called on disconnect")
	}
}
