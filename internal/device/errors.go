package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the table.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when a poll entry cannot be turned into a snapshot.
	ErrInvalidDevice = errors.New("device: invalid")
)
