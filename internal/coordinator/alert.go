package coordinator

import (
	"time"
)

// Alert severities as sent by the cloud.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Alert is a user-level notification pushed by the cloud. It is not tied to
// the device table although it may name a device.
type Alert struct {
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	Title      string    `json:"title"`
	UserID     string    `json:"user_id,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Body returns the alert text, prefixed with the device name when known.
func (a Alert) Body() string {
	if a.DeviceName == "" {
		return a.Message
	}
	return "Device: " + a.DeviceName + "\n\n" + a.Message
}

// alertFromPayload reads message.{message,type,userId,deviceId} from an
// eventUserAlert payload. deviceName resolves a device id to its name.
func alertFromPayload(payload map[string]any, deviceName func(string) string, now time.Time) Alert {
	msg, _ := payload["message"].(map[string]any)

	a := Alert{
		Message:   "Unknown alert",
		Severity:  SeverityInfo,
		Timestamp: now,
	}
	if v, _ := msg["message"].(string); v != "" {
		a.Message = v
	}
	if v, _ := msg["type"].(string); v != "" {
		a.Severity = v
	}
	a.UserID, _ = msg["userId"].(string)
	a.DeviceID, _ = msg["deviceId"].(string)
	if a.DeviceID != "" {
		a.DeviceName = deviceName(a.DeviceID)
	}

	switch a.Severity {
	case SeverityError:
		a.Title = "SinricPro Error"
	case SeverityWarning:
		a.Title = "SinricPro Warning"
	default:
		a.Title = "SinricPro Alert"
	}
	return a
}
