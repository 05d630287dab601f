package entity

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// HVACMode is the controller-level operating mode.
type HVACMode string

const (
	HVACOff  HVACMode = "off"
	HVACHeat HVACMode = "heat"
	HVACCool HVACMode = "cool"
	HVACAuto HVACMode = "auto"
)

// FanMode is an AC unit fan level.
type FanMode string

const (
	FanLow    FanMode = "low"
	FanMedium FanMode = "medium"
	FanHigh   FanMode = "high"
)

var fanLevels = map[FanMode]int{FanLow: 1, FanMedium: 2, FanHigh: 3}

// Temperature limits accepted by SetTemperature, in °C.
const (
	MinTemperature = 7.0
	MaxTemperature = 35.0
)

// temperatureTolerance absorbs rounding in reported set points.
const temperatureTolerance = 0.05

// ClimateTarget is the expected thermostat state. Nil fields are not checked.
type ClimateTarget struct {
	Mode        *device.ThermostatMode
	Temperature *float64
	FanLevel    *int
}

// Climate controls thermostats and AC units. Only AC units support fan
// modes.
type Climate struct {
	*base[ClimateTarget]
	isAC bool
}

// NewClimate creates a climate controller.
func NewClimate(id string, isAC bool, deps Deps) *Climate {
	c := &Climate{isAC: isAC}
	c.base = newBase(id, deps, matchClimate)
	return c
}

func matchClimate(t ClimateTarget, s *device.Snapshot) bool {
	if !eq(t.Mode, s.ThermostatMode) || !eq(t.FanLevel, s.RangeValue) {
		return false
	}
	if t.Temperature != nil {
		return s.TargetTemperature != nil &&
			math.Abs(*s.TargetTemperature-*t.Temperature) < temperatureTolerance
	}
	return true
}

// HVACModeFor maps a thermostat mode tag to an HVAC mode. ECO is reported
// as auto; an unknown or missing tag reads as off.
func HVACModeFor(m *device.ThermostatMode) HVACMode {
	if m == nil {
		return HVACOff
	}
	switch *m {
	case device.ThermostatHeat:
		return HVACHeat
	case device.ThermostatCool:
		return HVACCool
	case device.ThermostatAuto, device.ThermostatEco:
		return HVACAuto
	}
	return HVACOff
}

func thermostatModeFor(m HVACMode) (device.ThermostatMode, bool) {
	switch m {
	case HVACOff:
		return device.ThermostatOff, true
	case HVACHeat:
		return device.ThermostatHeat, true
	case HVACCool:
		return device.ThermostatCool, true
	case HVACAuto:
		return device.ThermostatAuto, true
	}
	return "", false
}

// HVACMode returns the operating mode, or nil while indeterminate.
func (c *Climate) HVACMode() *HVACMode {
	if s := c.settled(); s != nil {
		return ptr(HVACModeFor(s.ThermostatMode))
	}
	return nil
}

// TargetTemperature returns the set point, or nil while indeterminate.
func (c *Climate) TargetTemperature() *float64 {
	if s := c.settled(); s != nil {
		return s.TargetTemperature
	}
	return nil
}

// CurrentTemperature is a sensor reading and stays visible while a command
// is pending.
func (c *Climate) CurrentTemperature() *float64 {
	if s := c.snapshot(); s != nil {
		return s.Temperature
	}
	return nil
}

func (c *Climate) Humidity() *float64 {
	if s := c.snapshot(); s != nil {
		return s.Humidity
	}
	return nil
}

// FanMode returns the AC fan level; nil for thermostats.
func (c *Climate) FanMode() *FanMode {
	s := c.settled()
	if !c.isAC || s == nil || s.RangeValue == nil {
		return nil
	}
	for mode, level := range fanLevels {
		if level == *s.RangeValue {
			return ptr(mode)
		}
	}
	return nil
}

// SetHVACMode changes the operating mode.
func (c *Climate) SetHVACMode(ctx context.Context, mode HVACMode) error {
	tag, ok := thermostatModeFor(mode)
	if !ok {
		return invalid(ParamMode, mode)
	}
	return c.issue(ctx, ClimateTarget{Mode: &tag}, func(ctx context.Context) error {
		return c.cmd.SetThermostatMode(ctx, c.id, string(tag))
	})
}

// SetTemperature changes the set point.
func (c *Climate) SetTemperature(ctx context.Context, celsius float64) error {
	if celsius < MinTemperature || celsius > MaxTemperature || math.IsNaN(celsius) {
		return fmt.Errorf("%w: temperature %.1f outside %.0f-%.0f",
			ErrInvalidParameter, celsius, MinTemperature, MaxTemperature)
	}
	return c.issue(ctx, ClimateTarget{Temperature: &celsius}, func(ctx context.Context) error {
		return c.cmd.SetTargetTemperature(ctx, c.id, celsius)
	})
}

// SetFanMode sets an AC unit's fan level.
func (c *Climate) SetFanMode(ctx context.Context, mode FanMode) error {
	if !c.isAC {
		return unsupported(CommandSetFanMode)
	}
	level, ok := fanLevels[mode]
	if !ok {
		return invalid(ParamFanMode, mode)
	}
	return c.issue(ctx, ClimateTarget{FanLevel: &level}, func(ctx context.Context) error {
		return c.cmd.SetRangeValue(ctx, c.id, level)
	})
}

func (c *Climate) TurnOn(ctx context.Context) error  { return c.SetHVACMode(ctx, HVACAuto) }
func (c *Climate) TurnOff(ctx context.Context) error { return c.SetHVACMode(ctx, HVACOff) }

// Execute supports turn_on, turn_off, set_hvac_mode, set_temperature and,
// for AC units, set_fan_mode.
func (c *Climate) Execute(ctx context.Context, command string, params map[string]any) error {
	switch command {
	case CommandTurnOn:
		return c.TurnOn(ctx)
	case CommandTurnOff:
		return c.TurnOff(ctx)
	case CommandSetHVACMode:
		mode, err := stringParam(params, ParamMode)
		if err != nil {
			return err
		}
		return c.SetHVACMode(ctx, HVACMode(strings.ToLower(mode)))
	case CommandSetTemperature:
		t, ok, err := floatParam(params, ParamTemperature)
		if err != nil {
			return err
		}
		if !ok {
			return missing(ParamTemperature)
		}
		return c.SetTemperature(ctx, t)
	case CommandSetFanMode:
		mode, err := stringParam(params, ParamFanMode)
		if err != nil {
			return err
		}
		return c.SetFanMode(ctx, FanMode(strings.ToLower(mode)))
	}
	return unsupported(command)
}
