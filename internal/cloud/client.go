package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/config"
)

// HeaderAPIKey carries the API key on every request, including the push stream.
const HeaderAPIKey = "x-sinric-api-key"

const (
	devicesPath = "/api/v1/devices"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 4 << 20
)

// Logger defines the logging interface used by the client.
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

// Client performs authenticated requests against the device API.
//
// Transient failures (connection errors, client timeouts, HTTP 408, 500,
// 502, 503 and 504) are retried internally with linear backoff. Only
// terminal or exhausted errors are returned to callers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	clientID   string
	timeout    time.Duration
	backoff    time.Duration
	maxRetries int

	http    *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	logger  Logger
	metrics *Metrics
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics attaches a metrics collector set.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSleep replaces the backoff sleep. The function must return ctx.Err()
// if ctx ends before d elapses.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// New creates a client from the cloud configuration section.
func New(cfg config.CloudConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrAuthentication)
	}
	if cfg.APIURL == "" {
		return nil, errors.New("cloud: api url is required")
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		clientID:   cfg.ClientID,
		timeout:    time.Duration(cfg.RequestTimeout) * time.Second,
		backoff:    time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		maxRetries: max(0, cfg.MaxRetries),
		http:       &http.Client{},
		sleep:      sleepContext,
		now:        time.Now,
		logger:     noopLogger{},
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request performs method on path and decodes the JSON object response.
//
// A successful response whose body is empty or not a JSON object yields an
// empty map and no error.
func (c *Client) Request(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cloud: encoding request body: %w", err)
		}
	}

	started := time.Now()
	result, err := c.requestWithRetry(ctx, method, path, payload)
	c.metrics.observeRequest(method, started, err)
	return result, err
}

func (c *Client) requestWithRetry(ctx context.Context, method, path string, payload []byte) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(attempt)
			c.logger.Debug("retrying cloud request",
				"method", method,
				"path", path,
				"attempt", attempt,
				"wait", wait,
				"error", lastErr,
			)
			c.metrics.observeRetry()
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		result, retryable, err := c.do(ctx, method, path, payload)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	c.logger.Warn("cloud request failed after retries",
		"method", method,
		"path", path,
		"attempts", c.maxRetries+1,
		"error", lastErr,
	)
	return nil, lastErr
}

// do performs a single attempt. retryable reports whether
// the error is transient.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (result map[string]any, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		return nil, false, fmt.Errorf("cloud: building request: %w", err)
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if isTimeout(err) {
			return nil, true, &TimeoutError{Err: err}
		}
		return nil, true, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			if isTimeout(readErr) {
				return nil, true, &TimeoutError{Err: readErr}
			}
			return nil, true, &ConnectionError{Err: readErr}
		}
		return decodeObject(data, c.logger, path), false, nil

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, false, &AuthenticationError{StatusCode: resp.StatusCode}

	case resp.StatusCode == http.StatusNotFound:
		return nil, false, &DeviceNotFoundError{}

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now())}

	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		return nil, true, &TimeoutError{StatusCode: resp.StatusCode}

	case resp.StatusCode == http.StatusInternalServerError,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable:
		return nil, true, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}

	default:
		return nil, false, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
}

// decodeObject tolerates empty and non-object bodies.
func decodeObject(data []byte, logger Logger, path string) map[string]any {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		logger.Debug("ignoring malformed response body", "path", path, "error", err)
		return map[string]any{}
	}
	return out
}

func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return ""
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := max(0, t.Sub(now))
		return &d
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ListDevices fetches the full device list. Entries that are not JSON
// objects are skipped.
func (c *Client) ListDevices(ctx context.Context) ([]map[string]any, error) {
	result, err := c.Request(ctx, http.MethodGet, devicesPath, nil)
	if err != nil {
		return nil, err
	}
	items, _ := result["devices"].([]any)
	devices := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			devices = append(devices, m)
		}
	}
	return devices, nil
}

// ValidateAPIKey checks the configured key by listing devices.
func (c *Client) ValidateAPIKey(ctx context.Context) error {
	_, err := c.ListDevices(ctx)
	return err
}
