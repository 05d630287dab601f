package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/stream"
)

// fakeLister serves a fixed device list.
type fakeLister struct {
	mu      sync.Mutex
	devices []map[string]any
	err     error
}

func (f *fakeLister) ListDevices(context.Context) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

// fakeCommander records every call and returns queued errors in order.
type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (f *fakeCommander) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
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

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	f     func()
	done  bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) pending.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && t.at <= c.now {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type harness struct {
	coord  *coordinator.Coordinator
	lister *fakeLister
	cmd    *fakeCommander
	clock  *fakeClock
	deps   Deps

	mu       sync.Mutex
	outcomes []pending.Outcome
}

func newHarness(t *testing.T, devices ...map[string]any) *harness {
	t.Helper()
	h := &harness{
		lister: &fakeLister{devices: devices},
		cmd:    &fakeCommander{},
		clock:  &fakeClock{},
	}
	h.coord = coordinator.New(h.lister, nil, coordinator.Config{})
	h.deps = Deps{
		Source:    h.coord,
		Commander: h.cmd,
		Pending:   pending.Config{Clock: h.clock},
		OnOutcome: func(_ string, o pending.Outcome) {
			h.mu.Lock()
			h.outcomes = append(h.outcomes, o)
			h.mu.Unlock()
		},
	}
	if _, err := h.coord.Poll(context.Background()); err != nil {
		t.Fatalf("initial poll: %v", err)
	}
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

func (h *harness) Outcomes() []pending.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pending.Outcome(nil), h.outcomes...)
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

func assertCalls(t *testing.T, cmd *fakeCommander, want ...string) {
	t.Helper()
	got := cmd.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %q, want %q", got, want)
		}
	}
}

var errCloudTimeout = &cloud.TimeoutError{}
