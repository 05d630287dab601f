package cloud

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the cloud package. Every typed error below matches
// exactly one of these through errors.Is.
var (
	ErrAuthentication = errors.New("cloud: authentication failed")
	ErrConnection     = errors.New("cloud: connection failed")
	ErrTimeout        = errors.New("cloud: request timed out")
	ErrRateLimited    = errors.New("cloud: rate limit exceeded")
	ErrDeviceNotFound = errors.New("cloud: device not found")
	ErrAPI            = errors.New("cloud: api error")
	ErrDeviceOffline  = errors.New("cloud: device offline")
)

// AuthenticationError is returned for HTTP 401 and 403. It is terminal: the
// API key must be replaced before any further request can succeed.
type AuthenticationError struct {
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("cloud: authentication failed (status %d)", e.StatusCode)
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// ConnectionError is returned when the server could not be reached after
// all retries.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cloud: connection failed: %v", e.Err)
}

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
func (e *ConnectionError) Unwrap() error        { return e.Err }

// TimeoutError is returned when requests kept timing out, either on the
// client side or through HTTP 408/504, after all retries.
type TimeoutError struct {
	StatusCode int
	Err        error
}

func (e *TimeoutError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cloud: request timed out (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("cloud: request timed out: %v", e.Err)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
func (e *TimeoutError) Unwrap() error        { return e.Err }

// RateLimitError is returned for HTTP 429. RetryAfter is nil when the
// server did not say how long to wait.
type RateLimitError struct {
	RetryAfter *time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("cloud: rate limit exceeded, retry after %s", *e.RetryAfter)
	}
	return "cloud: rate limit exceeded"
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// DeviceNotFoundError is returned for HTTP 404.
type DeviceNotFoundError struct {
	DeviceID string
}

func (e *DeviceNotFoundError) Error() string {
	if e.DeviceID == "" {
		return "cloud: device not found"
	}
	return fmt.Sprintf("cloud: device %s not found", e.DeviceID)
}

func (e *DeviceNotFoundError) Is(target error) bool { return target == ErrDeviceNotFound }

// APIError is any other failure status, or an action the server refused.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cloud: api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cloud: api error %d", e.StatusCode)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// DeviceOfflineError is returned when the server refused an action because
// the device is not connected to the cloud.
type DeviceOfflineError struct {
	DeviceID string
	Message  string
}

func (e *DeviceOfflineError) Error() string {
	return fmt.Sprintf("cloud: device %s is offline", e.DeviceID)
}

func (e *DeviceOfflineError) Is(target error) bool { return target == ErrDeviceOffline }

// Outcome classifies err into a short label for metrics and
// acknowledgements. A nil error is "ok".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthentication):
		return "auth"
	case errors.Is(err, ErrDeviceOffline):
		return "offline"
	case errors.Is(err, ErrDeviceNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrAPI):
		return "api_error"
	default:
		return "error"
	}
}
