package entity

import (
	"context"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// LightTarget is the set of light attributes a command expects. Nil
// fields are not checked.
type LightTarget struct {
	On               *bool
	Brightness       *int
	Color            *device.RGB
	ColorTemperature *int
}

// LightOptions are the optional attributes of TurnOn.
type LightOptions struct {
	Brightness       *int
	Color            *device.RGB
	ColorTemperature *int
}

func (o LightOptions) empty() bool {
	return o.Brightness == nil && o.Color == nil && o.ColorTemperature == nil
}

// Light controls lights and dimmable switches. A dimmable switch carries
// its brightness as power level and has no colour.
type Light struct {
	*base[LightTarget]
	dimmable bool
}

// NewLight creates a light controller.
func NewLight(id string, dimmable bool, deps Deps) *Light {
	l := &Light{dimmable: dimmable}
	l.base = newBase(id, deps, l.matches)
	return l
}

func (l *Light) matches(t LightTarget, s *device.Snapshot) bool {
	if t.On != nil && s.PowerState != *t.On {
		return false
	}
	return eq(t.Brightness, l.level(s)) &&
		eq(t.Color, s.Color) &&
		eq(t.ColorTemperature, s.ColorTemperature)
}

func (l *Light) level(s *device.Snapshot) *int {
	if l.dimmable {
		return s.PowerLevel
	}
	return s.Brightness
}

// IsOn returns the power state, or nil while indeterminate.
func (l *Light) IsOn() *bool {
	if s := l.settled(); s != nil {
		return ptr(s.PowerState)
	}
	return nil
}

// Brightness returns 0-100, from power level for dimmable switches.
func (l *Light) Brightness() *int {
	if s := l.settled(); s != nil {
		return l.level(s)
	}
	return nil
}

func (l *Light) Color() *device.RGB {
	if s := l.settled(); s != nil && !l.dimmable {
		return s.Color
	}
	return nil
}

func (l *Light) ColorTemperature() *int {
	if s := l.settled(); s != nil && !l.dimmable {
		return s.ColorTemperature
	}
	return nil
}

// TurnOn applies the given attributes and switches the light on if it is
// off. With no attributes on an already-lit light it restores full
// brightness. All resulting actions are tracked as one pending command.
func (l *Light) TurnOn(ctx context.Context, opts LightOptions) error {
	var target LightTarget
	var actions []func(context.Context) error

	if opts.ColorTemperature != nil && !l.dimmable {
		k := *opts.ColorTemperature
		target.ColorTemperature = &k
		actions = append(actions, func(ctx context.Context) error {
			return l.cmd.SetColorTemperature(ctx, l.id, k)
		})
	}
	if opts.Color != nil && !l.dimmable {
		c := *opts.Color
		target.Color = &c
		actions = append(actions, func(ctx context.Context) error {
			return l.cmd.SetColor(ctx, l.id, c)
		})
	}
	if opts.Brightness != nil {
		b := max(0, min(100, *opts.Brightness))
		target.Brightness = &b
		actions = append(actions, l.setLevel(b))
	}

	snap := l.snapshot()
	switch {
	case snap != nil && !snap.PowerState:
		target.On = ptr(true)
		actions = append(actions, l.setPower(true))
	case opts.empty():
		target.On = ptr(true)
		target.Brightness = ptr(100)
		actions = append(actions, l.setPower(true), l.setLevel(100))
	}

	if len(actions) == 0 {
		return nil
	}
	return l.issue(ctx, target, steps(actions...))
}

// TurnOff switches the light off.
func (l *Light) TurnOff(ctx context.Context) error {
	return l.issue(ctx, LightTarget{On: ptr(false)}, l.setPower(false))
}

func (l *Light) setPower(on bool) func(context.Context) error {
	return func(ctx context.Context) error {
		return l.cmd.SetPowerState(ctx, l.id, on)
	}
}

func (l *Light) setLevel(v int) func(context.Context) error {
	return func(ctx context.Context) error {
		if l.dimmable {
			return l.cmd.SetPowerLevel(ctx, l.id, v)
		}
		return l.cmd.SetBrightness(ctx, l.id, v)
	}
}

// Execute supports turn_on (brightness, color, color_temperature),
// turn_off, set_brightness, set_color and set_color_temperature.
func (l *Light) Execute(ctx context.Context, command string, params map[string]any) error {
	var opts LightOptions
	var err error

	switch command {
	case CommandTurnOff:
		return l.TurnOff(ctx)

	case CommandTurnOn:
		if opts.Brightness, err = percentParam(params, ParamBrightness); err != nil {
			return err
		}
		if opts.Color, err = colorParam(params, ParamColor); err != nil {
			return err
		}
		if k, ok, kerr := intParam(params, ParamColorTemperature); kerr != nil {
			return kerr
		} else if ok {
			opts.ColorTemperature = &k
		}

	case CommandSetBrightness:
		b, perr := requirePercent(params, ParamBrightness)
		if perr != nil {
			return perr
		}
		opts.Brightness = &b

	case CommandSetColor:
		if l.dimmable {
			return unsupported(command)
		}
		if opts.Color, err = colorParam(params, ParamColor); err != nil {
			return err
		}
		if opts.Color == nil {
			return missing(ParamColor)
		}

	case CommandSetColorTemperature:
		if l.dimmable {
			return unsupported(command)
		}
		k, ok, kerr := intParam(params, ParamColorTemperature)
		if kerr != nil {
			return kerr
		}
		if !ok {
			return missing(ParamColorTemperature)
		}
		opts.ColorTemperature = &k

	default:
		return unsupported(command)
	}
	return l.TurnOn(ctx, opts)
}
