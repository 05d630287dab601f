package entity

import (
	"context"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// Switch controls an on/off device.
type Switch struct {
	*base[bool]
}

// NewSwitch creates a switch controller.
func NewSwitch(id string, deps Deps) *Switch {
	return &Switch{base: newBase(id, deps, func(on bool, s *device.Snapshot) bool {
		return s.PowerState == on
	})}
}

// IsOn returns the power state, or nil while a command is pending or the
// device is unknown.
func (s *Switch) IsOn() *bool {
	snap := s.settled()
	if snap == nil {
		return nil
	}
	return ptr(snap.PowerState)
}

// TurnOn switches the device on and tracks the change until a device
// update confirms it.
func (s *Switch) TurnOn(ctx context.Context) error { return s.setPower(ctx, true) }

// TurnOff switches the device off.
func (s *Switch) TurnOff(ctx context.Context) error { return s.setPower(ctx, false) }

func (s *Switch) setPower(ctx context.Context, on bool) error {
	return s.issue(ctx, on, func(ctx context.Context) error {
		return s.cmd.SetPowerState(ctx, s.id, on)
	})
}

// Execute supports turn_on and turn_off.
func (s *Switch) Execute(ctx context.Context, command string, _ map[string]any) error {
	switch command {
	case CommandTurnOn:
		return s.TurnOn(ctx)
	case CommandTurnOff:
		return s.TurnOff(ctx)
	}
	return unsupported(command)
}
