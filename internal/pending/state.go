package pending

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// DefaultTimeout is how long a command may stay unconfirmed.
const DefaultTimeout = 10 * time.Second

// Outcome describes a pending-state transition.
type Outcome int

const (
	// Began means a command entered Pending.
	Began Outcome = iota
	// Confirmed means the store matched every target.
	Confirmed
	// TimedOut means no confirming update arrived in time.
	TimedOut
	// Failed means the command was aborted after a send failure.
	Failed
	// Superseded means a newer command replaced the target.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Began:
		return "began"
	case Confirmed:
		return "confirmed"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// MatchFunc reports whether snap satisfies every attribute in target.
type MatchFunc[T any] func(target T, snap *device.Snapshot) bool

// Config holds the optional collaborators of a State.
type Config struct {
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// Clock defaults to RealClock.
	Clock Clock

	// OnChange is called after every transition, outside any lock.
	OnChange func(Outcome)

	Metrics *Metrics
}

// State is the pending-command state of one entity.
//
// Thread Safety:
//   - All methods are safe for concurrent use. OnChange is never called
//     with the internal lock held.
type State[T any] struct {
	match    MatchFunc[T]
	timeout  time.Duration
	clock    Clock
	onChange func(Outcome)
	metrics  *Metrics

	mu     sync.Mutex
	target T
	active bool
	gen    uint64
	timer  Timer
}

// New creates an idle State.
func New[T any](match MatchFunc[T], cfg Config) *State[T] {
	s := &State[T]{
		match:    match,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		onChange: cfg.OnChange,
		metrics:  cfg.Metrics,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.clock == nil {
		s.clock = RealClock
	}
	return s
}

// Begin enters Pending with target, replacing any earlier target and its
// timeout. It returns a generation that identifies this command for Abort.
func (s *State[T]) Begin(target T) uint64 {
	s.mu.Lock()
	superseded := s.active
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.target = target
	s.active = true
	s.timer = s.clock.AfterFunc(s.timeout, func() { s.expire(gen) })
	s.mu.Unlock()

	if superseded {
		s.metrics.ended(Superseded)
		s.notify(Superseded)
	}
	s.metrics.began()
	s.notify(Began)
	return gen
}

// Observe compares snap against the pending target. When every targeted
// attribute matches the state returns to Idle and Observe reports true.
// A nil snap never matches.
func (s *State[T]) Observe(snap *device.Snapshot) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	if !s.active || !s.match(s.target, snap) {
		s.mu.Unlock()
		return false
	}
	s.reset()
	s.mu.Unlock()

	s.metrics.ended(Confirmed)
	s.notify(Confirmed)
	return true
}

// Abort clears the pending state if gen is still the current command.
// A newer command is left untouched.
func (s *State[T]) Abort(gen uint64) bool {
	s.mu.Lock()
	if !s.active || s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.reset()
	s.mu.Unlock()

	s.metrics.ended(Failed)
	s.notify(Failed)
	return true
}

// Clear drops any pending command without confirmation.
func (s *State[T]) Clear() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.reset()
	s.mu.Unlock()

	s.metrics.ended(Failed)
	s.notify(Failed)
}

// Pending returns the current target and whether a command is outstanding.
func (s *State[T]) Pending() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.active
}

// Active reports whether a command is outstanding.
func (s *State[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *State[T]) expire(gen uint64) {
	s.mu.Lock()
	if !s.active || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.reset()
	s.mu.Unlock()

	s.metrics.ended(TimedOut)
	s.notify(TimedOut)
}

// reset must be called with mu held.
func (s *State[T]) reset() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var zero T
	s.target = zero
	s.active = false
}

func (s *State[T]) notify(o Outcome) {
	if s.onChange != nil {
		s.onChange(o)
	}
}
