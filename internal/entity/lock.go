package entity

import (
	"context"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// Lock controls a smart lock.
type Lock struct {
	*base[device.LockState]
}

// NewLock creates a smart lock controller.
func NewLock(id string, deps Deps) *Lock {
	return &Lock{base: newBase(id, deps, func(want device.LockState, s *device.Snapshot) bool {
		return s.LockState != nil && *s.LockState == want
	})}
}

// IsLocked returns nil while indeterminate or before the lock has reported.
func (l *Lock) IsLocked() *bool {
	if s := l.settled(); s != nil && s.LockState != nil {
		return ptr(*s.LockState == device.LockStateLocked)
	}
	return nil
}

// IsLocking reports a pending lock command.
func (l *Lock) IsLocking() bool {
	st, ok := l.state.Pending()
	return ok && st == device.LockStateLocked
}

// IsUnlocking reports a pending unlock command.
func (l *Lock) IsUnlocking() bool {
	st, ok := l.state.Pending()
	return ok && st == device.LockStateUnlocked
}

func (l *Lock) Lock(ctx context.Context) error   { return l.set(ctx, true) }
func (l *Lock) Unlock(ctx context.Context) error { return l.set(ctx, false) }

func (l *Lock) set(ctx context.Context, lock bool) error {
	want := device.LockStateUnlocked
	if lock {
		want = device.LockStateLocked
	}
	return l.issue(ctx, want, func(ctx context.Context) error {
		return l.cmd.SetLockState(ctx, l.id, lock)
	})
}

// Execute supports lock and unlock.
func (l *Lock) Execute(ctx context.Context, command string, _ map[string]any) error {
	switch command {
	case CommandLock:
		return l.Lock(ctx)
	case CommandUnlock:
		return l.Unlock(ctx)
	}
	return unsupported(command)
}
