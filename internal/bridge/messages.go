package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/coordinator"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/entity"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
)

// CommandMessage is received on {prefix}/command/{device_id}.
type CommandMessage struct {
	// ID correlates the command with its acks. One is generated when empty.
	ID string `json:"id"`

	// Command is the controller command, e.g. "turn_on" or "set_position".
	Command string `json:"command"`

	// Parameters carries command arguments such as {"brightness": 50}.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ParseCommand decodes a command payload. The command name is required.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Command == "" {
		return msg, fmt.Errorf("%w: command is required", ErrInvalidMessage)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg, nil
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the cloud accepted the command.
	AckAccepted AckStatus = "accepted"

	// AckConfirmed indicates the device table now reflects the command.
	AckConfirmed AckStatus = "confirmed"

	// AckTimeout indicates no confirming update arrived in time.
	AckTimeout AckStatus = "timeout"

	// AckSuperseded indicates a newer command replaced this one.
	AckSuperseded AckStatus = "superseded"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on {prefix}/ack/{device_id}.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceOffline  = "DEVICE_OFFLINE"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAuth           = "AUTH"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeAPIError       = "API_ERROR"
	ErrCodeInvalidCommand = "INVALID_COMMAND"
)

// NewAck creates an ack without error details.
func NewAck(commandID, deviceID string, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: commandID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    status,
	}
}

// NewFailedAck creates a failed ack classified from err.
func NewFailedAck(commandID, deviceID string, err error) AckMessage {
	ack := NewAck(commandID, deviceID, AckFailed)
	ack.Error = &AckError{Code: ErrorCode(err), Message: err.Error()}
	return ack
}

// ErrorCode maps a command error to its ack error code.
func ErrorCode(err error) string {
	var pe *pending.Error
	if errors.As(err, &pe) {
		switch pe.Reason {
		case pending.ReasonOffline:
			return ErrCodeDeviceOffline
		case pending.ReasonTimeout:
			return ErrCodeTimeout
		case pending.ReasonNotFound:
			return ErrCodeNotFound
		}
	}

	switch {
	case errors.Is(err, entity.ErrUnavailable), errors.Is(err, cloud.ErrDeviceOffline):
		return ErrCodeDeviceOffline
	case errors.Is(err, entity.ErrUnsupportedCommand),
		errors.Is(err, entity.ErrInvalidParameter),
		errors.Is(err, ErrNotControllable),
		errors.Is(err, ErrInvalidMessage):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, cloud.ErrDeviceNotFound):
		return ErrCodeNotFound
	case errors.Is(err, cloud.ErrAuthentication):
		return ErrCodeAuth
	case errors.Is(err, cloud.ErrRateLimited):
		return ErrCodeRateLimited
	case errors.Is(err, cloud.ErrTimeout):
		return ErrCodeTimeout
	default:
		return ErrCodeAPIError
	}
}

// StateMessage is published retained on {prefix}/state/{device_id}.
type StateMessage struct {
	DeviceID  string           `json:"device_id"`
	Timestamp time.Time        `json:"timestamp"`
	State     *device.Snapshot `json:"state"`
}

// DoorbellMessage is published on {prefix}/event/doorbell/{device_id}.
type DoorbellMessage struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// AlertMessage is published on {prefix}/alert.
type AlertMessage struct {
	coordinator.Alert
	Body string `json:"body"`
}

// NewAlertMessage wraps an alert with its rendered body.
func NewAlertMessage(a coordinator.Alert) AlertMessage {
	return AlertMessage{Alert: a, Body: a.Body()}
}

// HealthStatus represents the bridge health state.
type HealthStatus string

const (
	HealthStarting  HealthStatus = "starting"
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage is published retained on {prefix}/health.
type HealthMessage struct {
	ClientID      string        `json:"client_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Status        HealthStatus  `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	Version       string        `json:"version,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Devices       int           `json:"devices"`
	TableFresh    bool          `json:"table_fresh"`
	LastPoll      *time.Time    `json:"last_poll,omitempty"`
	Stream        *StreamHealth `json:"stream,omitempty"`
	Statistics    StatsSnapshot `json:"statistics"`
}

// StreamHealth describes the push stream connection.
type StreamHealth struct {
	Status         string  `json:"status"`
	Attempts       int     `json:"attempts"`
	BackoffSeconds float64 `json:"backoff_seconds"`
	LastError      string  `json:"last_error,omitempty"`
}

// StatsSnapshot is a copy of the bridge counters.
type StatsSnapshot struct {
	CommandsReceived int64 `json:"commands_received"`
	CommandsFailed   int64 `json:"commands_failed"`
	StatesPublished  int64 `json:"states_published"`
	Doorbells        int64 `json:"doorbells"`
	Alerts           int64 `json:"alerts"`
	Dropped          int64 `json:"dropped"`
}
