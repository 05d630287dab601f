package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

func TestLightTurnOnFromOff(t *testing.T) {
	h := newHarness(t, raw("l1", "light", map[string]any{"brightness": 40}))
	l := NewLight("l1", false, h.deps)
	defer l.Release()

	if err := l.TurnOn(context.Background(), LightOptions{Brightness: ptr(70)}); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	assertCalls(t, h.cmd, "setBrightness l1 70", "setPowerState l1 true")

	// Power alone does not satisfy the composite target.
	h.push("l1", device.ActionSetPowerState, map[string]any{"state": "On"})
	if l.IsOn() != nil || l.Brightness() != nil {
		t.Fatal("partial confirmation settled the light")
	}

	h.push("l1", device.ActionSetBrightness, map[string]any{"brightness": 70})
	if on := l.IsOn(); on == nil || !*on {
		t.Fatalf("IsOn = %v, want true", on)
	}
	if b := l.Brightness(); b == nil || *b != 70 {
		t.Errorf("Brightness = %v, want 70", b)
	}
}

func TestLightTurnOnAlreadyOnRestoresFullBrightness(t *testing.T) {
	h := newHarness(t, raw("l1", "light", map[string]any{"powerState": "On", "brightness": 20}))
	l := NewLight("l1", false, h.deps)
	defer l.Release()

	if err := l.TurnOn(context.Background(), LightOptions{}); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	assertCalls(t, h.cmd, "setPowerState l1 true", "setBrightness l1 100")
}

func TestLightAttributesOnLitLightSkipPower(t *testing.T) {
	h := newHarness(t, raw("l1", "light", map[string]any{"powerState": "On"}))
	l := NewLight("l1", false, h.deps)
	defer l.Release()

	opts := LightOptions{
		ColorTemperature: ptr(2700),
		Color:            &device.RGB{R: 255, G: 0, B: 0},
	}
	if err := l.TurnOn(context.Background(), opts); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	assertCalls(t, h.cmd, "setColorTemperature l1 2700", "setColor l1 255,0,0")
}

func TestLightRetryResumesAtFailedStep(t *testing.T) {
	h := newHarness(t, raw("l1", "light", nil))
	l := NewLight("l1", false, h.deps)
	defer l.Release()

	h.cmd.failNext(nil, errCloudTimeout)
	if err := l.TurnOn(context.Background(), LightOptions{Brightness: ptr(50)}); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	assertCalls(t, h.cmd, "setBrightness l1 50", "setPowerState l1 true", "setPowerState l1 true")
}

func TestDimmableSwitchUsesPowerLevel(t *testing.T) {
	h := newHarness(t, raw("dm", "dimmable_switch", map[string]any{"powerState": "On", "powerLevel": 30}))
	l := NewLight("dm", true, h.deps)
	defer l.Release()

	if b := l.Brightness(); b == nil || *b != 30 {
		t.Fatalf("Brightness = %v, want 30", b)
	}
	if l.Color() != nil {
		t.Error("dimmable switch reported a colour")
	}

	if err := l.Execute(context.Background(), CommandSetBrightness, map[string]any{ParamBrightness: 80.0}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	assertCalls(t, h.cmd, "setPowerLevel dm 80")

	h.push("dm", device.ActionSetPowerLevel, map[string]any{"powerLevel": 80})
	if b := l.Brightness(); b == nil || *b != 80 {
		t.Errorf("Brightness = %v, want 80", b)
	}

	if err := l.Execute(context.Background(), CommandSetColor, map[string]any{
		ParamColor: map[string]any{"r": 1.0, "g": 2.0, "b": 3.0},
	}); !errors.Is(err, ErrUnsupportedCommand) {
		t.Errorf("set_color err = %v, want ErrUnsupportedCommand", err)
	}
}

func TestLightExecuteParams(t *testing.T) {
	tests := []struct {
		name    string
		command string
		params  map[string]any
		wantErr error
		want    []string
	}{
		{
			name:    "turn off",
			command: CommandTurnOff,
			want:    []string{"setPowerState l1 false"},
		},
		{
			name:    "colour",
			command: CommandSetColor,
			params:  map[string]any{ParamColor: map[string]any{"r": 10.0, "g": 20.0, "b": 30.0}},
			want:    []string{"setColor l1 10,20,30"},
		},
		{
			name:    "brightness out of range",
			command: CommandSetBrightness,
			params:  map[string]any{ParamBrightness: 150.0},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "brightness missing",
			command: CommandSetBrightness,
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "colour channel out of range",
			command: CommandSetColor,
			params:  map[string]any{ParamColor: map[string]any{"r": 300.0, "g": 0.0, "b": 0.0}},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "colour temperature not a number",
			command: CommandSetColorTemperature,
			params:  map[string]any{ParamColorTemperature: "warm"},
			wantErr: ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, raw("l1", "light", map[string]any{"powerState": "On"}))
			l := NewLight("l1", false, h.deps)
			defer l.Release()

			err := l.Execute(context.Background(), tt.command, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if len(h.cmd.Calls()) != 0 {
					t.Errorf("invalid command sent %q", h.cmd.Calls())
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			assertCalls(t, h.cmd, tt.want...)
		})
	}
}
