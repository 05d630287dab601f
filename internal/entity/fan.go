package entity

import (
	"context"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// FanTarget is the expected power state and speed level.
type FanTarget struct {
	On    bool
	Speed *int
}

// Fan controls a fan whose speed is a range value from 1 to the device's
// maximum speed level.
type Fan struct {
	*base[FanTarget]
}

// NewFan creates a fan controller.
func NewFan(id string, deps Deps) *Fan {
	return &Fan{base: newBase(id, deps, func(t FanTarget, s *device.Snapshot) bool {
		return s.PowerState == t.On && eq(t.Speed, s.RangeValue)
	})}
}

// IsOn returns nil while indeterminate.
func (f *Fan) IsOn() *bool {
	if s := f.settled(); s != nil {
		return ptr(s.PowerState)
	}
	return nil
}

// Percentage maps the speed level onto 0-100. An off fan reports 0.
func (f *Fan) Percentage() *int {
	s := f.settled()
	if s == nil {
		return nil
	}
	if !s.PowerState || s.RangeValue == nil {
		return ptr(0)
	}
	return ptr(LevelToPercentage(*s.RangeValue, s.FanSpeedLevels()))
}

// SpeedCount returns the number of supported speed levels.
func (f *Fan) SpeedCount() int {
	if s := f.snapshot(); s != nil {
		return s.FanSpeedLevels()
	}
	return device.DefaultMaxFanSpeed
}

// LevelToPercentage converts a speed level to a percentage of levels.
func LevelToPercentage(level, levels int) int {
	if levels <= 0 {
		return 0
	}
	level = max(0, min(levels, level))
	return level * 100 / levels
}

// PercentageToLevel converts a percentage to the lowest speed level that
// covers it. Any non-zero percentage yields at least level 1.
func PercentageToLevel(pct, levels int) int {
	if pct <= 0 || levels <= 0 {
		return 0
	}
	pct = min(100, pct)
	return max(1, (pct*levels+99)/100)
}

// TurnOn powers the fan on, optionally at a percentage.
func (f *Fan) TurnOn(ctx context.Context, percentage *int) error {
	if percentage != nil {
		return f.SetPercentage(ctx, *percentage)
	}
	return f.issue(ctx, FanTarget{On: true}, f.setPower(true))
}

// TurnOff powers the fan off.
func (f *Fan) TurnOff(ctx context.Context) error {
	return f.issue(ctx, FanTarget{On: false}, f.setPower(false))
}

// SetPercentage sets the speed. Zero turns the fan off; otherwise the fan
// is switched on first when it is off.
func (f *Fan) SetPercentage(ctx context.Context, pct int) error {
	if pct <= 0 {
		return f.TurnOff(ctx)
	}
	level := PercentageToLevel(pct, f.SpeedCount())

	var actions []func(context.Context) error
	if s := f.snapshot(); s != nil && !s.PowerState {
		actions = append(actions, f.setPower(true))
	}
	actions = append(actions, func(ctx context.Context) error {
		return f.cmd.SetRangeValue(ctx, f.id, level)
	})
	return f.issue(ctx, FanTarget{On: true, Speed: &level}, steps(actions...))
}

func (f *Fan) setPower(on bool) func(context.Context) error {
	return func(ctx context.Context) error {
		return f.cmd.SetPowerState(ctx, f.id, on)
	}
}

// Execute supports turn_on (percentage), turn_off and set_percentage.
func (f *Fan) Execute(ctx context.Context, command string, params map[string]any) error {
	switch command {
	case CommandTurnOn:
		pct, err := percentParam(params, ParamPercentage)
		if err != nil {
			return err
		}
		return f.TurnOn(ctx, pct)
	case CommandTurnOff:
		return f.TurnOff(ctx)
	case CommandSetPercentage:
		pct, err := requirePercent(params, ParamPercentage)
		if err != nil {
			return err
		}
		return f.SetPercentage(ctx, pct)
	}
	return unsupported(command)
}
