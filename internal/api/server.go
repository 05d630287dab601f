package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceSource is the reconciled device table. *coordinator.Coordinator
// satisfies it.
type DeviceSource interface {
	Table() device.Table
	Device(id string) (*device.Snapshot, bool)
	LastUpdateSuccess() bool
	LastPoll() time.Time
	StreamState() stream.State

	Subscribe(fn func(device.Table)) *coordinator.Subscription
	SubscribeDoorbells(fn func(deviceID, timestamp string)) *coordinator.Subscription
	SubscribeAlerts(fn func(coordinator.Alert)) *coordinator.Subscription
}

// ConnectionChecker reports whether a dependency is connected.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger

	// WebSocket configures the live event feed. Zero values take defaults.
	WebSocket config.WebSocketConfig

	Source DeviceSource

	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// MQTT is optional; when set its state is reported by /health.
	MQTT ConnectionChecker

	Version string
}

// Server is the HTTP API server for cloudbridge.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	source    DeviceSource
	gatherer  prometheus.Gatherer
	mqtt      ConnectionChecker
	version   string
	startTime time.Time
	hub       *Hub
	relay     *eventRelay
	server    *http.Server
	addr      string

	done      chan struct{}
	closeOnce sync.Once
}

// withWebSocketDefaults fills unset feed settings.
func withWebSocketDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.Path == "" {
		cfg.Path = "/api/v1/ws"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 8192
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10
	}
	return cfg
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("device source is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		source:    deps.Source,
		gatherer:  deps.Gatherer,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	s.hub = NewHub(withWebSocketDefaults(deps.WebSocket), deps.Logger)
	s.relay = newEventRelay(s.hub, deps.Source)
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener, begins relaying device events to websocket
// clients and serves in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr().String()
	s.logger.Info("API server listening", "address", s.addr)

	s.relay.start()
	go s.runHub(ctx)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address once started.
func (s *Server) Addr() string {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	s.closeOnce.Do(func() {
		s.relay.stop()
		close(s.done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
