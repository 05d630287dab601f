package pending

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
)

// Reason classifies a failed command for presentation.
type Reason string

const (
	ReasonOffline  Reason = "offline"
	ReasonTimeout  Reason = "timeout"
	ReasonNotFound Reason = "not_found"
	ReasonFailed   Reason = "failed"
)

// Error is returned by Issue when a command could not be sent.
type Error struct {
	Reason   Reason
	DeviceID string
	Err      error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonOffline:
		return "device " + e.DeviceID + " is offline"
	case ReasonTimeout:
		return "request timed out"
	case ReasonNotFound:
		return "device " + e.DeviceID + " not found"
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Issue begins a pending command for target and calls send. A cloud
// timeout is retried once. On any failure the command is aborted and an
// *Error is returned; on success the state stays Pending until confirmed
// or timed out.
func Issue[T any](ctx context.Context, s *State[T], deviceID string, target T, send func(ctx context.Context) error) error {
	gen := s.Begin(target)

	err := send(ctx)
	if errors.Is(err, cloud.ErrTimeout) && ctx.Err() == nil {
		err = send(ctx)
	}
	if err == nil {
		return nil
	}

	s.Abort(gen)
	return classify(deviceID, err)
}

// Send applies the retry and error mapping of Issue to commands with no
// confirmable target, such as skipping channels.
func Send(ctx context.Context, deviceID string, send func(ctx context.Context) error) error {
	err := send(ctx)
	if errors.Is(err, cloud.ErrTimeout) && ctx.Err() == nil {
		err = send(ctx)
	}
	if err == nil {
		return nil
	}
	return classify(deviceID, err)
}

func classify(deviceID string, err error) error {
	e := &Error{Reason: ReasonFailed, DeviceID: deviceID, Err: err}
	switch {
	case errors.Is(err, cloud.ErrDeviceOffline):
		e.Reason = ReasonOffline
	case errors.Is(err, cloud.ErrTimeout):
		e.Reason = ReasonTimeout
	case errors.Is(err, cloud.ErrDeviceNotFound):
		e.Reason = ReasonNotFound
	}
	return e
}
