package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/config"
)

// HeaderAPIKey carries the API key on the stream request.
const HeaderAPIKey = "x-sinric-api-key"

// Status is the connection state of a Client.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a point-in-time copy of the connection state.
type State struct {
	Status          Status
	Attempts        int
	Backoff         time.Duration
	ShouldReconnect bool
	LastError       error
}

// Connected reports whether the stream is currently open.
func (s State) Connected() bool { return s.Status == StatusConnected }

// Handler receives decoded events. deviceID is empty for user alerts.
// Handlers run on the read loop and should return quickly.
type Handler func(kind, deviceID string, payload map[string]any)

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

// Client maintains the push stream connection.
//
// Thread Safety:
//   - Connect, Disconnect and State are safe for concurrent use.
//   - The Handler is only ever called from the single read loop.
type Client struct {
	url     string
	apiKey  string
	handler Handler

	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	maxAttempts    int

	http    *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
	logger  Logger
	metrics *Metrics

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. It must not set an
// overall timeout since the stream stays open indefinitely.
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

// New creates a stream client. It does not connect.
func New(cfg config.StreamConfig, apiKey string, handler Handler, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrAuthentication)
	}
	if cfg.URL == "" {
		return nil, errors.New("stream: url is required")
	}
	if handler == nil {
		return nil, errors.New("stream: handler is required")
	}

	c := &Client{
		url:            cfg.URL,
		apiKey:         apiKey,
		handler:        handler,
		initialBackoff: time.Duration(cfg.InitialBackoff) * time.Second,
		maxBackoff:     time.Duration(cfg.MaxBackoff) * time.Second,
		multiplier:     cfg.BackoffMultiplier,
		maxAttempts:    cfg.MaxAttempts,
		http:           &http.Client{},
		sleep:          sleepContext,
		logger:         noopLogger{},
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = time.Second
	}
	if c.maxBackoff < c.initialBackoff {
		c.maxBackoff = c.initialBackoff
	}
	if c.multiplier < 1 {
		c.multiplier = 2
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 10
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = State{Status: StatusDisconnected, Backoff: c.initialBackoff}
	return c, nil
}

// NextBackoff returns the wait that follows cur: cur × multiplier, capped at
// limit.
func NextBackoff(cur, limit time.Duration, multiplier float64) time.Duration {
	next := time.Duration(float64(cur) * multiplier)
	if next > limit || next <= 0 {
		return limit
	}
	return next
}

// Connect starts the supervising loop. It returns immediately; a second
// call while the loop is running is a no-op. After the loop has stopped
// (Disconnect, authentication failure or exhausted attempts) Connect starts
// afresh with a reset attempt counter and backoff.
//
// The loop also stops when ctx is cancelled.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
		default:
			c.logger.Debug("stream already running")
			return
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = State{
		Status:          StatusConnecting,
		Backoff:         c.initialBackoff,
		ShouldReconnect: true,
	}

	go c.run(loopCtx, c.done)
	c.logger.Info("stream loop started", "url", c.url)
}

// Disconnect stops the loop, closes any open connection and waits for the
// loop to exit. It is safe to call at any time, including more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.state.ShouldReconnect = false
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.mu.Lock()
	c.state.Status = StatusDisconnected
	c.mu.Unlock()
	c.metrics.setConnected(false)
}

// State returns a copy of the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the stream is currently open.
func (c *Client) Connected() bool {
	return c.State().Connected()
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		err := c.session(ctx)
		c.metrics.setConnected(false)

		if ctx.Err() != nil {
			c.update(func(s *State) {
				s.Status = StatusDisconnected
				s.ShouldReconnect = false
			})
			return
		}

		if errors.Is(err, ErrAuthentication) {
			c.logger.Error("stream authentication failed, not reconnecting", "error", err)
			c.update(func(s *State) {
				s.Status = StatusClosed
				s.ShouldReconnect = false
				s.LastError = err
			})
			return
		}

		var attempts int
		var wait time.Duration
		c.update(func(s *State) {
			s.Status = StatusDisconnected
			s.Attempts++
			s.LastError = err
			attempts, wait = s.Attempts, s.Backoff
		})

		if attempts >= c.maxAttempts {
			c.logger.Error("stream reconnection attempts exhausted",
				"attempts", attempts,
				"error", err,
			)
			c.update(func(s *State) {
				s.Status = StatusClosed
				s.ShouldReconnect = false
				s.LastError = fmt.Errorf("%w: %w", ErrMaxAttempts, err)
			})
			return
		}

		c.logger.Info("stream reconnecting",
			"wait", wait,
			"attempt", attempts,
			"max_attempts", c.maxAttempts,
			"error", err,
		)
		c.metrics.observeReconnect()
		if c.sleep(ctx, wait) != nil {
			c.update(func(s *State) { s.ShouldReconnect = false })
			return
		}
		c.update(func(s *State) {
			s.Status = StatusConnecting
			s.Backoff = NextBackoff(s.Backoff, c.maxBackoff, c.multiplier)
		})
	}
}

// session performs one connection attempt and reads until the stream ends.
// It always returns a non-nil error describing why the session ended.
func (c *Client) session(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("stream: building request: %w", err)
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("stream connection error", "error", err)
		return fmt.Errorf("stream: connecting: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("stream connection refused", "status", resp.StatusCode)
		return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	c.update(func(s *State) {
		s.Status = StatusConnected
		s.Attempts = 0
		s.Backoff = c.initialBackoff
		s.LastError = nil
	})
	c.metrics.setConnected(true)
	c.logger.Info("stream connected")

	return readFrames(resp.Body, c.dispatch)
}

func (c *Client) dispatch(f frame) {
	ev, reason := decodeFrame(f)
	if reason != "" {
		c.metrics.observeDrop(reason)
		if reason == dropMalformed {
			c.logger.Warn("dropping malformed stream event", "event", f.event)
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in stream handler",
				"kind", ev.Kind,
				"device_id", ev.DeviceID,
				"panic", r,
			)
		}
	}()
	c.metrics.observeEvent(ev.Kind)
	c.handler(ev.Kind, ev.DeviceID, ev.Payload)
}

func (c *Client) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
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
