package entity

import (
	"context"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// MediaTarget is the expected media player state. Nil fields are not checked.
type MediaTarget struct {
	On     *bool
	Volume *int
	Muted  *bool
}

// MediaPlayer controls speakers and TVs. Channel and playback controls are
// fire-and-forget and only exist on TVs.
type MediaPlayer struct {
	*base[MediaTarget]
	isTV bool
}

// NewMediaPlayer creates a media player controller.
func NewMediaPlayer(id string, isTV bool, deps Deps) *MediaPlayer {
	m := &MediaPlayer{isTV: isTV}
	m.base = newBase(id, deps, func(t MediaTarget, s *device.Snapshot) bool {
		if t.On != nil && s.PowerState != *t.On {
			return false
		}
		return eq(t.Volume, s.Volume) && eq(t.Muted, s.Muted)
	})
	return m
}

func (m *MediaPlayer) IsOn() *bool {
	if s := m.settled(); s != nil {
		return ptr(s.PowerState)
	}
	return nil
}

// Volume returns 0-100, or nil while indeterminate.
func (m *MediaPlayer) Volume() *int {
	if s := m.settled(); s != nil {
		return s.Volume
	}
	return nil
}

func (m *MediaPlayer) IsMuted() *bool {
	if s := m.settled(); s != nil {
		return s.Muted
	}
	return nil
}

func (m *MediaPlayer) TurnOn(ctx context.Context) error  { return m.setPower(ctx, true) }
func (m *MediaPlayer) TurnOff(ctx context.Context) error { return m.setPower(ctx, false) }

func (m *MediaPlayer) setPower(ctx context.Context, on bool) error {
	return m.issue(ctx, MediaTarget{On: &on}, func(ctx context.Context) error {
		return m.cmd.SetPowerState(ctx, m.id, on)
	})
}

// SetVolume sets the volume (0-100).
func (m *MediaPlayer) SetVolume(ctx context.Context, volume int) error {
	volume = max(0, min(100, volume))
	return m.issue(ctx, MediaTarget{Volume: &volume}, func(ctx context.Context) error {
		return m.cmd.SetVolume(ctx, m.id, volume)
	})
}

func (m *MediaPlayer) Mute(ctx context.Context, mute bool) error {
	return m.issue(ctx, MediaTarget{Muted: &mute}, func(ctx context.Context) error {
		return m.cmd.SetMute(ctx, m.id, mute)
	})
}

// NextTrack skips one channel forward.
func (m *MediaPlayer) NextTrack(ctx context.Context) error {
	return m.skip(ctx, CommandNextTrack, 1)
}

// PreviousTrack skips one channel back.
func (m *MediaPlayer) PreviousTrack(ctx context.Context) error {
	return m.skip(ctx, CommandPreviousTrack, -1)
}

func (m *MediaPlayer) skip(ctx context.Context, command string, count int) error {
	if !m.isTV {
		return unsupported(command)
	}
	return m.fire(ctx, func(ctx context.Context) error {
		return m.cmd.SkipChannels(ctx, m.id, count)
	})
}

func (m *MediaPlayer) Play(ctx context.Context) error {
	return m.control(ctx, CommandPlay, cloud.MediaPlay)
}

func (m *MediaPlayer) Pause(ctx context.Context) error {
	return m.control(ctx, CommandPause, cloud.MediaPause)
}

func (m *MediaPlayer) control(ctx context.Context, command, control string) error {
	if !m.isTV {
		return unsupported(command)
	}
	return m.fire(ctx, func(ctx context.Context) error {
		return m.cmd.MediaControl(ctx, m.id, control)
	})
}

// Execute supports turn_on, turn_off, set_volume and mute, plus next,
// previous, play and pause on TVs.
func (m *MediaPlayer) Execute(ctx context.Context, command string, params map[string]any) error {
	switch command {
	case CommandTurnOn:
		return m.TurnOn(ctx)
	case CommandTurnOff:
		return m.TurnOff(ctx)
	case CommandSetVolume:
		v, err := requirePercent(params, ParamVolume)
		if err != nil {
			return err
		}
		return m.SetVolume(ctx, v)
	case CommandMute:
		muted, err := boolParam(params, ParamMuted)
		if err != nil {
			return err
		}
		return m.Mute(ctx, muted)
	case CommandNextTrack:
		return m.NextTrack(ctx)
	case CommandPreviousTrack:
		return m.PreviousTrack(ctx)
	case CommandPlay:
		return m.Play(ctx)
	case CommandPause:
		return m.Pause(ctx)
	}
	return unsupported(command)
}
