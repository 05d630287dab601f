package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrDeviceNotFound is returned when a command names a device that is
	// not in the device table.
	ErrDeviceNotFound = errors.New("bridge: device not found")

	// ErrNotControllable is returned when a command targets a device type
	// that accepts no commands, such as a sensor.
	ErrNotControllable = errors.New("bridge: device type accepts no commands")

	// ErrInvalidMessage is returned when a command payload cannot be decoded.
	ErrInvalidMessage = errors.New("bridge: invalid command message")

	// ErrQueueFull is returned when the outbound queue cannot take a message.
	ErrQueueFull = errors.New("bridge: outbound queue full")

	errStopped = errors.New("bridge: stopped")
)
