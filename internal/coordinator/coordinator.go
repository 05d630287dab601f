package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
)

const defaultPollInterval = 30 * time.Minute

// DeviceLister fetches the full device list. *cloud.Client satisfies it.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]map[string]any, error)
}

// Stream is the push stream owned by the coordinator. *stream.Client
// satisfies it.
type Stream interface {
	Connect(ctx context.Context)
	Disconnect()
	State() stream.State
}

// StreamFactory creates the coordinator's stream bound to handler.
type StreamFactory func(handler func(kind, deviceID string, payload map[string]any)) (Stream, error)

// Telemetry receives poll results for operational reporting.
type Telemetry interface {
	RecordPoll(devices int, duration time.Duration, err error)
}

// Logger defines the logging interface used by the coordinator.
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

// Config holds coordinator timing.
type Config struct {
	// PollInterval is the period between scheduled polls.
	PollInterval time.Duration

	// MaxRateLimitWait caps the delay of the follow-up poll scheduled
	// after a rate-limited poll. Zero disables the follow-up.
	MaxRateLimitWait time.Duration
}

// Coordinator owns the device table and reconciles polls with push events.
//
// Every mutation of the table is followed by exactly one devices-updated
// notification carrying the new table. Mutations and their notifications
// are serialised, so subscribers observe tables in the order they were
// published. Subscribers run synchronously and must not call Poll.
type Coordinator struct {
	lister    DeviceLister
	newStream StreamFactory
	cfg       Config

	store *device.Store
	group singleflight.Group

	// mu serialises table mutations with their notifications.
	mu sync.Mutex

	tableSubs    registry[func(device.Table)]
	doorbellSubs registry[doorbellSub]
	alertSubs    registry[func(Alert)]

	lastSuccess atomic.Bool
	lastPoll    atomic.Pointer[time.Time]

	now       func() time.Time
	logger    Logger
	metrics   *Metrics
	telemetry Telemetry

	started  atomic.Bool
	lifeMu   sync.Mutex
	stream   Stream
	cancel   context.CancelFunc
	retryCh  chan time.Duration
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// doorbellSub matches one device, or every device when deviceID is empty.
type doorbellSub struct {
	deviceID string
	fn       func(deviceID, timestamp string)
}

// Option configures optional Coordinator dependencies.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics attaches a metrics collector set.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTelemetry attaches a poll telemetry sink.
func WithTelemetry(t Telemetry) Option {
	return func(c *Coordinator) { c.telemetry = t }
}

// WithClock replaces the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator. newStream may be nil, in which case no push
// stream is run and the table changes only on polls.
func New(lister DeviceLister, newStream StreamFactory, cfg Config, opts ...Option) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	c := &Coordinator{
		lister:    lister,
		newStream: newStream,
		cfg:       cfg,
		store:     device.NewStore(),
		now:       time.Now,
		logger:    noopLogger{},
		retryCh:   make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs the initial poll, connects the push stream and starts the
// poll loop. An authentication failure on the initial poll aborts Start;
// any other failure is logged and the coordinator runs with an empty,
// stale table until a later poll succeeds.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if _, err := c.Poll(ctx); err != nil {
		if errors.Is(err, ErrReauthRequired) {
			c.started.Store(false)
			return err
		}
		c.logger.Warn("initial poll failed, continuing with stale table", "error", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var s Stream
	if c.newStream != nil {
		var err error
		s, err = c.newStream(c.ApplyPushEvent)
		if err != nil {
			cancel()
			c.started.Store(false)
			return fmt.Errorf("coordinator: creating stream: %w", err)
		}
	}

	c.lifeMu.Lock()
	c.cancel = cancel
	c.stream = s
	c.lifeMu.Unlock()

	if s != nil {
		s.Connect(runCtx)
	}

	c.wg.Add(1)
	go c.pollLoop(runCtx)

	c.logger.Info("coordinator started",
		"devices", c.store.Len(),
		"poll_interval", c.cfg.PollInterval,
	)
	return nil
}

// Stop disconnects the stream and stops the poll loop, waiting for both to
// exit. It is safe to call more than once and before Start.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.lifeMu.Lock()
		cancel, s := c.cancel, c.stream
		c.lifeMu.Unlock()

		if s != nil {
			s.Disconnect()
		}
		if cancel != nil {
			cancel()
		}
		c.wg.Wait()
		c.logger.Info("coordinator stopped")
	})
}

func (c *Coordinator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var retryTimer *time.Timer
	var retryC <-chan time.Time
	defer func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			c.scheduledPoll(ctx)

		case wait := <-c.retryCh:
			if retryTimer != nil {
				retryTimer.Stop()
			}
			retryTimer = time.NewTimer(wait)
			retryC = retryTimer.C

		case <-retryC:
			retryC = nil
			c.scheduledPoll(ctx)
		}
	}
}

func (c *Coordinator) scheduledPoll(ctx context.Context) {
	if _, err := c.Poll(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("scheduled poll failed", "error", err)
	}
}

// Poll fetches the full device list and replaces the table with it.
// Concurrent calls share a single request.
//
// On failure the previous table is kept and LastUpdateSuccess reports
// false. Authentication failures return ErrReauthRequired; everything else
// returns ErrUpdateFailed. Both wrap the cloud error. A rate-limited poll
// fails immediately and, when the server named a retry-after, schedules a
// single follow-up poll after that delay without delaying the regular
// interval.
func (c *Coordinator) Poll(ctx context.Context) (device.Table, error) {
	v, err, _ := c.group.Do("poll", func() (any, error) {
		return c.poll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(device.Table), nil
}

func (c *Coordinator) poll(ctx context.Context) (device.Table, error) {
	started := time.Now()
	raw, err := c.lister.ListDevices(ctx)
	elapsed := time.Since(started)

	if err != nil {
		c.lastSuccess.Store(false)
		c.metrics.observePoll(cloud.Outcome(err), elapsed, 0, false)
		if c.telemetry != nil {
			c.telemetry.RecordPoll(0, elapsed, err)
		}
		return nil, c.pollFailure(err)
	}

	snaps := make([]*device.Snapshot, 0, len(raw))
	for _, entry := range raw {
		snap, perr := device.FromAPI(entry)
		if perr != nil {
			c.logger.Warn("skipping device entry", "error", perr)
			continue
		}
		snaps = append(snaps, snap)
	}

	c.mu.Lock()
	table := c.store.Replace(snaps)
	c.lastSuccess.Store(true)
	now := c.now()
	c.lastPoll.Store(&now)
	c.notify(table)
	c.mu.Unlock()

	c.metrics.observePoll(cloud.Outcome(nil), elapsed, len(table), true)
	if c.telemetry != nil {
		c.telemetry.RecordPoll(len(table), elapsed, nil)
	}
	c.logger.Debug("poll complete", "devices", len(table), "duration", elapsed)
	return table, nil
}

func (c *Coordinator) pollFailure(err error) error {
	if errors.Is(err, cloud.ErrAuthentication) {
		c.logger.Error("poll rejected, API key must be replaced", "error", err)
		return fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}

	var rl *cloud.RateLimitError
	if errors.As(err, &rl) {
		c.logger.Warn("poll rate limited", "retry_after", rl.RetryAfter)
		if rl.RetryAfter != nil && c.cfg.MaxRateLimitWait > 0 {
			c.scheduleRetry(min(*rl.RetryAfter, c.cfg.MaxRateLimitWait))
		}
	}
	return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
}

// scheduleRetry asks the poll loop for a one-shot poll after wait. A newer
// request replaces an older one.
func (c *Coordinator) scheduleRetry(wait time.Duration) {
	select {
	case c.retryCh <- wait:
	default:
		select {
		case <-c.retryCh:
		default:
		}
		select {
		case c.retryCh <- wait:
		default:
		}
	}
}

// ApplyPushEvent merges one push event into the table. It is the handler
// bound to the coordinator's stream and is exported for tests and
// alternative event sources.
//
// Events for devices not in the table are dropped. Connection events only
// change the table on an actual online transition. A device message that
// leaves every field unchanged publishes nothing. Doorbell presses always
// publish and additionally fire the per-device doorbell callbacks.
func (c *Coordinator) ApplyPushEvent(kind, deviceID string, payload map[string]any) {
	if kind == stream.KindUserAlert {
		c.handleAlert(payload)
		return
	}

	if _, ok := c.store.Get(deviceID); !ok {
		c.logger.Debug("push event for unknown device", "kind", kind, "device_id", deviceID)
		c.metrics.observePush(kind, pushUnknownDevice)
		return
	}

	var merge device.MergeResult
	c.mu.Lock()
	table, changed := c.store.Update(deviceID, func(s *device.Snapshot) (*device.Snapshot, bool) {
		switch kind {
		case stream.KindDeviceConnected:
			if s.Online {
				return s, false
			}
			c.logger.Info("device online", "device_id", deviceID, "name", s.Name)
			return s.WithOnline(true), true

		case stream.KindDeviceDisconnected:
			if !s.Online {
				return s, false
			}
			c.logger.Info("device offline", "device_id", deviceID, "name", s.Name)
			return s.WithOnline(false), true

		case stream.KindDeviceMessageArrived:
			merge = device.ApplyMessage(s, device.MessageFromPayload(payload), c.now())
			return merge.Snapshot, merge.HasChanges()
		}
		return s, false
	})
	if changed {
		c.notify(table)
	}
	c.mu.Unlock()

	switch {
	case changed:
		c.metrics.observePush(kind, pushApplied)
		c.logger.Debug("push event applied", "kind", kind, "device_id", deviceID, "fields", merge.Changed)
	case kind == stream.KindDeviceConnected || kind == stream.KindDeviceDisconnected || kind == stream.KindDeviceMessageArrived:
		c.metrics.observePush(kind, pushNoop)
	default:
		c.metrics.observePush(kind, pushIgnored)
	}

	if merge.Doorbell {
		c.fireDoorbell(deviceID, merge.RingTime)
	}
}

func (c *Coordinator) handleAlert(payload map[string]any) {
	alert := alertFromPayload(payload, c.deviceName, c.now())
	c.logger.Info("alert received", "severity", alert.Severity, "message", alert.Message)
	c.metrics.observePush(stream.KindUserAlert, pushApplied)

	for _, fn := range c.alertSubs.snapshot() {
		c.safeCall("alert", func() { fn(alert) })
	}
}

func (c *Coordinator) deviceName(id string) string {
	if s, ok := c.store.Get(id); ok {
		return s.Name
	}
	return ""
}

func (c *Coordinator) fireDoorbell(deviceID, ts string) {
	for _, sub := range c.doorbellSubs.snapshot() {
		if sub.deviceID != "" && sub.deviceID != deviceID {
			continue
		}
		fn := sub.fn
		c.safeCall("doorbell", func() { fn(deviceID, ts) })
	}
}

// notify must be called with mu held.
func (c *Coordinator) notify(table device.Table) {
	c.metrics.observeNotify()
	for _, fn := range c.tableSubs.snapshot() {
		c.safeCall("devices updated", func() { fn(table) })
	}
}

func (c *Coordinator) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in subscriber", "subscription", what, "panic", r)
		}
	}()
	fn()
}

// Subscribe registers fn for devices-updated notifications. fn receives the
// full table after every replace or mutating merge.
func (c *Coordinator) Subscribe(fn func(device.Table)) *Subscription {
	return c.tableSubs.add(fn)
}

// SubscribeDoorbell registers fn for presses of one doorbell. fn receives
// the ring timestamp.
func (c *Coordinator) SubscribeDoorbell(deviceID string, fn func(timestamp string)) *Subscription {
	return c.doorbellSubs.add(doorbellSub{
		deviceID: deviceID,
		fn:       func(_, ts string) { fn(ts) },
	})
}

// SubscribeDoorbells registers fn for presses of any doorbell.
func (c *Coordinator) SubscribeDoorbells(fn func(deviceID, timestamp string)) *Subscription {
	return c.doorbellSubs.add(doorbellSub{fn: fn})
}

// SubscribeAlerts registers fn for user alerts.
func (c *Coordinator) SubscribeAlerts(fn func(Alert)) *Subscription {
	return c.alertSubs.add(fn)
}

// Table returns the current device table. Callers must not modify it.
func (c *Coordinator) Table() device.Table {
	return c.store.Table()
}

// Device returns the current snapshot for id.
func (c *Coordinator) Device(id string) (*device.Snapshot, bool) {
	return c.store.Get(id)
}

// LastUpdateSuccess reports whether the most recent poll succeeded. It is
// false before the first successful poll.
func (c *Coordinator) LastUpdateSuccess() bool {
	return c.lastSuccess.Load()
}

// LastPoll returns the time of the last successful poll, or the zero time.
func (c *Coordinator) LastPoll() time.Time {
	if t := c.lastPoll.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// StreamState returns the push stream state. Without a stream it reports
// disconnected.
func (c *Coordinator) StreamState() stream.State {
	c.lifeMu.Lock()
	s := c.stream
	c.lifeMu.Unlock()
	if s == nil {
		return stream.State{Status: stream.StatusDisconnected}
	}
	return s.State()
}

// StreamConnected reports whether the push stream is open.
func (c *Coordinator) StreamConnected() bool {
	return c.StreamState().Connected()
}
