package entity

import (
	"context"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// Cover positions: 0 is closed, 100 fully open.
const (
	PositionClosed = 0
	PositionOpen   = 100
)

// Blind controls a positionable cover through its range value.
type Blind struct {
	*base[int]
}

// NewBlind creates a blind controller.
func NewBlind(id string, deps Deps) *Blind {
	return &Blind{base: newBase(id, deps, func(pos int, s *device.Snapshot) bool {
		return s.RangeValue != nil && *s.RangeValue == pos
	})}
}

// Position returns the current position, or nil while indeterminate.
func (b *Blind) Position() *int {
	if s := b.settled(); s != nil {
		return s.RangeValue
	}
	return nil
}

// IsClosed reports position 0, or nil while indeterminate.
func (b *Blind) IsClosed() *bool {
	if p := b.Position(); p != nil {
		return ptr(*p == PositionClosed)
	}
	return nil
}

// IsOpening reports whether a pending target lies above the stored position.
func (b *Blind) IsOpening() bool {
	target, cur, ok := b.movement()
	return ok && target > cur
}

// IsClosing reports whether a pending target lies below the stored position.
func (b *Blind) IsClosing() bool {
	target, cur, ok := b.movement()
	return ok && target < cur
}

func (b *Blind) movement() (target, current int, ok bool) {
	target, active := b.state.Pending()
	s := b.snapshot()
	if !active || s == nil || s.RangeValue == nil {
		return 0, 0, false
	}
	return target, *s.RangeValue, true
}

func (b *Blind) Open(ctx context.Context) error  { return b.SetPosition(ctx, PositionOpen) }
func (b *Blind) Close(ctx context.Context) error { return b.SetPosition(ctx, PositionClosed) }

// SetPosition moves the blind to pos (0-100).
func (b *Blind) SetPosition(ctx context.Context, pos int) error {
	pos = max(PositionClosed, min(PositionOpen, pos))
	return b.issue(ctx, pos, func(ctx context.Context) error {
		return b.cmd.SetRangeValue(ctx, b.id, pos)
	})
}

// Execute supports open, close and set_position.
func (b *Blind) Execute(ctx context.Context, command string, params map[string]any) error {
	switch command {
	case CommandOpen:
		return b.Open(ctx)
	case CommandClose:
		return b.Close(ctx)
	case CommandSetPosition:
		pos, err := requirePercent(params, ParamPosition)
		if err != nil {
			return err
		}
		return b.SetPosition(ctx, pos)
	}
	return unsupported(command)
}

// GarageDoor controls a garage door through its Open/Close mode.
type GarageDoor struct {
	*base[device.GarageDoorMode]
}

// NewGarageDoor creates a garage door controller.
func NewGarageDoor(id string, deps Deps) *GarageDoor {
	return &GarageDoor{base: newBase(id, deps, func(m device.GarageDoorMode, s *device.Snapshot) bool {
		return s.GarageDoorState != nil && *s.GarageDoorState == m
	})}
}

// IsClosed reports whether the door is closed, or nil while indeterminate
// or unreported.
func (g *GarageDoor) IsClosed() *bool {
	if s := g.settled(); s != nil && s.GarageDoorState != nil {
		return ptr(*s.GarageDoorState == device.GarageClose)
	}
	return nil
}

// IsOpening reports a pending open.
func (g *GarageDoor) IsOpening() bool {
	m, ok := g.state.Pending()
	return ok && m == device.GarageOpen
}

// IsClosing reports a pending close.
func (g *GarageDoor) IsClosing() bool {
	m, ok := g.state.Pending()
	return ok && m == device.GarageClose
}

func (g *GarageDoor) Open(ctx context.Context) error  { return g.setMode(ctx, device.GarageOpen) }
func (g *GarageDoor) Close(ctx context.Context) error { return g.setMode(ctx, device.GarageClose) }

func (g *GarageDoor) setMode(ctx context.Context, m device.GarageDoorMode) error {
	return g.issue(ctx, m, func(ctx context.Context) error {
		return g.cmd.SetMode(ctx, g.id, string(m))
	})
}

// Execute supports open and close.
func (g *GarageDoor) Execute(ctx context.Context, command string, _ map[string]any) error {
	switch command {
	case CommandOpen:
		return g.Open(ctx)
	case CommandClose:
		return g.Close(ctx)
	}
	return unsupported(command)
}
