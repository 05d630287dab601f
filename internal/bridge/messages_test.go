package bridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/entity"
	"github.com/nerrad567/gray-logic-cloudbridge/internal/pending"
)

func TestParseCommand(t *testing.T) {
	msg, err := ParseCommand([]byte(`{"id":"c1","command":"set_brightness","parameters":{"brightness":40}}`))
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if msg.ID != "c1" || msg.Command != "set_brightness" || msg.Parameters["brightness"] != float64(40) {
		t.Errorf("ParseCommand() = %+v", msg)
	}

	for _, payload := range []string{``, `[]`, `{"id":"c1"}`, `{"command":""}`} {
		if _, err := ParseCommand([]byte(payload)); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("ParseCommand(%q) error = %v, want ErrInvalidMessage", payload, err)
		}
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"pending offline", &pending.Error{Reason: pending.ReasonOffline, Err: &cloud.DeviceOfflineError{}}, ErrCodeDeviceOffline},
		{"pending timeout", &pending.Error{Reason: pending.ReasonTimeout, Err: &cloud.TimeoutError{}}, ErrCodeTimeout},
		{"pending not found", &pending.Error{Reason: pending.ReasonNotFound, Err: &cloud.DeviceNotFoundError{}}, ErrCodeNotFound},
		{"pending auth", &pending.Error{Reason: pending.ReasonFailed, Err: &cloud.AuthenticationError{StatusCode: 403}}, ErrCodeAuth},
		{"pending rate limit", &pending.Error{Reason: pending.ReasonFailed, Err: &cloud.RateLimitError{}}, ErrCodeRateLimited},
		{"unavailable", fmt.Errorf("%w: d1", entity.ErrUnavailable), ErrCodeDeviceOffline},
		{"unsupported", fmt.Errorf("%w: x", entity.ErrUnsupportedCommand), ErrCodeInvalidCommand},
		{"invalid parameter", fmt.Errorf("%w: x", entity.ErrInvalidParameter), ErrCodeInvalidCommand},
		{"not controllable", ErrNotControllable, ErrCodeInvalidCommand},
		{"not found", ErrDeviceNotFound, ErrCodeNotFound},
		{"api", &cloud.APIError{StatusCode: 500}, ErrCodeAPIError},
		{"other", errors.New("boom"), ErrCodeAPIError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewFailedAck(t *testing.T) {
	ack := NewFailedAck("c1", "d1", ErrDeviceNotFound)
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeNotFound || ack.Error.Message == "" {
		t.Errorf("NewFailedAck() = %+v", ack)
	}
	if ack.Timestamp.IsZero() || ack.Timestamp.Location().String() != "UTC" {
		t.Errorf("timestamp = %v", ack.Timestamp)
	}
}
