package entity

import (
	"context"
	"testing"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

func TestLockUnlock(t *testing.T) {
	h := newHarness(t, raw("k1", "smartlock", map[string]any{"lockState": "locked"}))
	l := NewLock("k1", h.deps)
	defer l.Release()

	if locked := l.IsLocked(); locked == nil || !*locked {
		t.Fatalf("IsLocked = %v, want true", locked)
	}
	if err := l.Execute(context.Background(), CommandUnlock, nil); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	assertCalls(t, h.cmd, "setLockState k1 false")
	if !l.IsUnlocking() || l.IsLocking() {
		t.Error("not reported unlocking")
	}

	h.push("k1", device.ActionSetLockState, map[string]any{"state": "unlocked"})
	if locked := l.IsLocked(); locked == nil || *locked {
		t.Errorf("IsLocked = %v, want false", locked)
	}
}

func TestLockWithoutReportedState(t *testing.T) {
	h := newHarness(t, raw("k1", "smartlock", nil))
	l := NewLock("k1", h.deps)
	defer l.Release()

	if l.IsLocked() != nil {
		t.Error("lock with no reported state should be unknown")
	}
}
