package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for cloudbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Stream    StreamConfig    `yaml:"stream"`
	Commands  CommandsConfig  `yaml:"commands"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CloudConfig contains settings for the remote device API.
type CloudConfig struct {
	// APIKey authenticates every request. Never logged.
	APIKey string `yaml:"api_key"`

	// APIURL is the base URL of the REST API (no trailing /api/v1).
	APIURL string `yaml:"api_url"`

	// ClientID is sent as clientId in every action body.
	ClientID string `yaml:"client_id"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// MaxRetries is the number of retries after the first attempt for
	// transient failures.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoffMS is the linear backoff unit in milliseconds. The wait
	// before retry n is RetryBackoffMS * n.
	RetryBackoffMS int `yaml:"retry_backoff_ms"`

	// PollInterval is the full-refresh interval in seconds.
	PollInterval int `yaml:"poll_interval"`

	// MaxRateLimitWait caps how long a rate-limited poll defers the follow-up
	// poll, in seconds.
	MaxRateLimitWait int `yaml:"max_rate_limit_wait"`
}

// StreamConfig contains settings for the server-push event stream.
type StreamConfig struct {
	URL               string  `yaml:"url"`
	InitialBackoff    int     `yaml:"initial_backoff"`
	MaxBackoff        int     `yaml:"max_backoff"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	MaxAttempts       int     `yaml:"max_attempts"`
}

// CommandsConfig contains settings for command confirmation tracking.
type CommandsConfig struct {
	// PendingTimeout is how long a command's target is shown as
	// indeterminate before falling back to the store value, in seconds.
	PendingTimeout int `yaml:"pending_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`

	// HealthInterval is how often bridge health is published, in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the read-only HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the live device event feed served
// by the HTTP API.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CLOUDBRIDGE_SECTION_KEY
// For example: CLOUDBRIDGE_CLOUD_API_KEY, CLOUDBRIDGE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			APIURL:           "https://api.sinric.pro",
			ClientID:         "cloudbridge",
			RequestTimeout:   10,
			MaxRetries:       3,
			RetryBackoffMS:   1000,
			PollInterval:     1800,
			MaxRateLimitWait: 300,
		},
		Stream: StreamConfig{
			URL:               "https://portal.sinric.pro/sse/stream",
			InitialBackoff:    1,
			MaxBackoff:        60,
			BackoffMultiplier: 2,
			MaxAttempts:       10,
		},
		Commands: CommandsConfig{
			PendingTimeout: 10,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cloudbridge",
			},
			QoS:         1,
			TopicPrefix: "cloudbridge",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			HealthInterval: 30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("CLOUDBRIDGE_CLOUD_API_KEY"); v != "" {
		cfg.Cloud.APIKey = v
	}
	if v := os.Getenv("CLOUDBRIDGE_CLOUD_API_URL"); v != "" {
		cfg.Cloud.APIURL = v
	}
	if v := os.Getenv("CLOUDBRIDGE_CLOUD_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cloud.PollInterval = n
		}
	}
	if v := os.Getenv("CLOUDBRIDGE_STREAM_URL"); v != "" {
		cfg.Stream.URL = v
	}

	// MQTT
	if v := os.Getenv("CLOUDBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CLOUDBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CLOUDBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CLOUDBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("CLOUDBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("CLOUDBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Cloud.APIKey == "" {
		errs = append(errs, "cloud.api_key is required (set CLOUDBRIDGE_CLOUD_API_KEY environment variable)")
	}
	if err := validateURL(c.Cloud.APIURL); err != nil {
		errs = append(errs, "cloud.api_url "+err.Error())
	}
	if err := validateURL(c.Stream.URL); err != nil {
		errs = append(errs, "stream.url "+err.Error())
	}
	if c.Cloud.RequestTimeout <= 0 {
		errs = append(errs, "cloud.request_timeout must be positive")
	}
	if c.Cloud.MaxRetries < 0 {
		errs = append(errs, "cloud.max_retries cannot be negative")
	}
	if c.Cloud.PollInterval <= 0 {
		errs = append(errs, "cloud.poll_interval must be positive")
	}

	if c.Stream.InitialBackoff <= 0 {
		errs = append(errs, "stream.initial_backoff must be positive")
	}
	if c.Stream.MaxBackoff < c.Stream.InitialBackoff {
		errs = append(errs, "stream.max_backoff must be >= stream.initial_backoff")
	}
	if c.Stream.BackoffMultiplier < 1 {
		errs = append(errs, "stream.backoff_multiplier must be >= 1")
	}
	if c.Stream.MaxAttempts <= 0 {
		errs = append(errs, "stream.max_attempts must be positive")
	}

	if c.Commands.PendingTimeout <= 0 {
		errs = append(errs, "commands.pending_timeout must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.API.Enabled && !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0 {
		errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be positive")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// GetRequestTimeout returns the per-request cloud timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}

// GetRetryBackoff returns the linear retry backoff unit as a Duration.
func (c *Config) GetRetryBackoff() time.Duration {
	return time.Duration(c.Cloud.RetryBackoffMS) * time.Millisecond
}

// GetPollInterval returns the full-refresh interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Cloud.PollInterval) * time.Second
}

// GetMaxRateLimitWait returns the cap on rate-limit deferral as a Duration.
func (c *Config) GetMaxRateLimitWait() time.Duration {
	return time.Duration(c.Cloud.MaxRateLimitWait) * time.Second
}

// GetPendingTimeout returns the command confirmation window as a Duration.
func (c *Config) GetPendingTimeout() time.Duration {
	return time.Duration(c.Commands.PendingTimeout) * time.Second
}

// GetHealthInterval returns the bridge health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.MQTT.HealthInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
