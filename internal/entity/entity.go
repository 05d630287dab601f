package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
)

// Source is the read side of the device table. *coordinator.Coordinator
// satisfies it.
type Source interface {
	Device(id string) (*device.Snapshot, bool)
	LastUpdateSuccess() bool
	Subscribe(fn func(device.Table)) *coordinator.Subscription
}

// Commander sends device actions. *cloud.Client satisfies it.
type Commander interface {
	SetPowerState(ctx context.Context, deviceID string, on bool) error
	SetBrightness(ctx context.Context, deviceID string, brightness int) error
	SetColor(ctx context.Context, deviceID string, color device.RGB) error
	SetColorTemperature(ctx context.Context, deviceID string, kelvin int) error
	SetRangeValue(ctx context.Context, deviceID string, value int) error
	SetMode(ctx context.Context, deviceID, mode string) error
	SetLockState(ctx context.Context, deviceID string, lock bool) error
	SetVolume(ctx context.Context, deviceID string, volume int) error
	SetMute(ctx context.Context, deviceID string, mute bool) error
	SetPowerLevel(ctx context.Context, deviceID string, level int) error
	SkipChannels(ctx context.Context, deviceID string, count int) error
	MediaControl(ctx context.Context, deviceID, control string) error
	SetTargetTemperature(ctx context.Context, deviceID string, celsius float64) error
	SetThermostatMode(ctx context.Context, deviceID, mode string) error
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Source    Source
	Commander Commander

	// Pending configures each controller's pending state. OnChange is
	// ignored; use OnOutcome.
	Pending pending.Config

	// OnOutcome, when set, is called for every pending-state transition
	// of any controller built from these Deps.
	OnOutcome func(deviceID string, outcome pending.Outcome)
}

// Controller is the type-independent view of a device controller.
type Controller interface {
	DeviceID() string
	Available() bool
	Pending() bool
	Execute(ctx context.Context, command string, params map[string]any) error
	Release()
}

// ForDevice returns the controller for a device type. Sensors and
// doorbells have nothing to control and report false.
func ForDevice(id string, typ device.Type, deps Deps) (Controller, bool) {
	switch typ {
	case device.TypeSwitch:
		return NewSwitch(id, deps), true
	case device.TypeLight, device.TypeDimmableSwitch:
		return NewLight(id, typ == device.TypeDimmableSwitch, deps), true
	case device.TypeBlind:
		return NewBlind(id, deps), true
	case device.TypeGarageDoor:
		return NewGarageDoor(id, deps), true
	case device.TypeSmartLock:
		return NewLock(id, deps), true
	case device.TypeFan:
		return NewFan(id, deps), true
	case device.TypeThermostat, device.TypeACUnit:
		return NewClimate(id, typ == device.TypeACUnit, deps), true
	case device.TypeSpeaker, device.TypeTV:
		return NewMediaPlayer(id, typ == device.TypeTV, deps), true
	}
	return nil, false
}

// base carries the pending-state plumbing common to all controllers.
type base[T any] struct {
	id    string
	src   Source
	cmd   Commander
	state *pending.State[T]
	sub   *coordinator.Subscription
}

func newBase[T any](id string, deps Deps, match pending.MatchFunc[T]) *base[T] {
	b := &base[T]{id: id, src: deps.Source, cmd: deps.Commander}

	cfg := deps.Pending
	cfg.OnChange = nil
	if fn := deps.OnOutcome; fn != nil {
		cfg.OnChange = func(o pending.Outcome) { fn(id, o) }
	}
	b.state = pending.New(match, cfg)
	b.sub = deps.Source.Subscribe(func(t device.Table) {
		b.state.Observe(t[id])
	})
	return b
}

// DeviceID returns the controlled device's id.
func (b *base[T]) DeviceID() string { return b.id }

// Available reports whether the last poll succeeded and the device is
// known and online.
func (b *base[T]) Available() bool {
	if !b.src.LastUpdateSuccess() {
		return false
	}
	s, ok := b.src.Device(b.id)
	return ok && s.Online
}

// Pending reports whether a command is awaiting confirmation.
func (b *base[T]) Pending() bool { return b.state.Active() }

// Release stops watching the table and drops any pending command.
func (b *base[T]) Release() {
	b.sub.Unsubscribe()
	b.state.Clear()
}

// snapshot returns the stored snapshot regardless of pending state.
func (b *base[T]) snapshot() *device.Snapshot {
	s, _ := b.src.Device(b.id)
	return s
}

// settled returns the snapshot only when no command is pending.
func (b *base[T]) settled() *device.Snapshot {
	if b.state.Active() {
		return nil
	}
	return b.snapshot()
}

func (b *base[T]) issue(ctx context.Context, target T, send func(context.Context) error) error {
	if !b.Available() {
		return fmt.Errorf("%w: %s", ErrUnavailable, b.id)
	}
	return pending.Issue(ctx, b.state, b.id, target, send)
}

func (b *base[T]) fire(ctx context.Context, send func(context.Context) error) error {
	if !b.Available() {
		return fmt.Errorf("%w: %s", ErrUnavailable, b.id)
	}
	return pending.Send(ctx, b.id, send)
}

// steps chains actions so that a retry resumes at the step that failed.
func steps(fns ...func(context.Context) error) func(context.Context) error {
	done := 0
	return func(ctx context.Context) error {
		for done < len(fns) {
			if err := fns[done](ctx); err != nil {
				return err
			}
			done++
		}
		return nil
	}
}

func unsupported(command string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedCommand, command)
}

func ptr[T any](v T) *T { return &v }

func eq[T comparable](want *T, got *T) bool {
	return want == nil || (got != nil && *got == *want)
}
