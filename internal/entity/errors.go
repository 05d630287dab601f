package entity

import "errors"

var (
	// ErrUnavailable is returned when a command targets a device that is
	// offline, unknown, or whose table is stale.
	ErrUnavailable = errors.New("entity: device unavailable")

	// ErrUnsupportedCommand is returned by Execute for commands the
	// controller does not implement.
	ErrUnsupportedCommand = errors.New("entity: unsupported command")

	// ErrInvalidParameter is returned by Execute for missing or malformed
	// parameters.
	ErrInvalidParameter = errors.New("entity: invalid parameter")
)
