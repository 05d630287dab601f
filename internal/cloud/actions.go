package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/device"
)

// Message types for device actions.
const (
	TypeRequest = "request"
	TypeEvent   = "event"
)

// Lock and media control values sent with actions.
const (
	LockActionLock   = "lock"
	LockActionUnlock = "unlock"

	MediaPlay  = "play"
	MediaPause = "pause"
)

// actionBody is the wire body for POST /devices/{id}/action.
type actionBody struct {
	ClientID  string `json:"clientId"`
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
	Action    string `json:"action"`
	CreatedAt string `json:"createdAt"`
	Value     string `json:"value"`
}

// SendAction posts an action for a device. value is JSON-encoded into the
// body's value string. A nil error means the cloud accepted the request, not
// that the device applied it.
func (c *Client) SendAction(ctx context.Context, deviceID, action, msgType string, value map[string]any) error {
	err := c.sendAction(ctx, deviceID, action, msgType, value)
	c.metrics.observeAction(action, err)
	if err != nil {
		c.logger.Debug("device action failed",
			"device_id", deviceID,
			"action", action,
			"error", err,
		)
	}
	return err
}

func (c *Client) sendAction(ctx context.Context, deviceID, action, msgType string, value map[string]any) error {
	if deviceID == "" {
		return &DeviceNotFoundError{}
	}
	if value == nil {
		value = map[string]any{}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cloud: encoding %s value: %w", action, err)
	}

	body := actionBody{
		ClientID:  c.clientID,
		MessageID: uuid.NewString(),
		Type:      msgType,
		Action:    action,
		CreatedAt: strconv.FormatInt(c.now().Unix(), 10),
		Value:     string(encoded),
	}

	path := devicesPath + "/" + url.PathEscape(deviceID) + "/action"
	result, err := c.Request(ctx, http.MethodPost, path, body)
	if err != nil {
		var notFound *DeviceNotFoundError
		if errors.As(err, &notFound) {
			return &DeviceNotFoundError{DeviceID: deviceID}
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && mentionsOffline(apiErr.Message) {
			return &DeviceOfflineError{DeviceID: deviceID, Message: apiErr.Message}
		}
		return err
	}

	if ok, present := result["success"].(bool); present && !ok {
		msg, _ := result["message"].(string)
		if mentionsOffline(msg) {
			return &DeviceOfflineError{DeviceID: deviceID, Message: msg}
		}
		return &APIError{StatusCode: http.StatusOK, Message: msg}
	}
	return nil
}

func mentionsOffline(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "offline") || strings.Contains(m, "not connected")
}

// SetPowerState turns a device on or off.
func (c *Client) SetPowerState(ctx context.Context, deviceID string, on bool) error {
	state := "Off"
	if on {
		state = "On"
	}
	return c.SendAction(ctx, deviceID, device.ActionSetPowerState, TypeRequest, map[string]any{"state": state})
}

// SetBrightness sets a light's brightness (0-100).
func (c *Client) SetBrightness(ctx context.Context, deviceID string, brightness int) error {
	return c.SendAction(ctx, deviceID, device.ActionSetBrightness, TypeRequest, map[string]any{"brightness": brightness})
}

// SetColor sets a light's colour.
func (c *Client) SetColor(ctx context.Context, deviceID string, color device.RGB) error {
	return c.SendAction(ctx, deviceID, device.ActionSetColor, TypeRequest, map[string]any{
		"color": map[string]any{"r": color.R, "g": color.G, "b": color.B},
	})
}

// SetColorTemperature sets a light's colour temperature in Kelvin.
func (c *Client) SetColorTemperature(ctx context.Context, deviceID string, kelvin int) error {
	return c.SendAction(ctx, deviceID, device.ActionSetColorTemperature, TypeRequest, map[string]any{"colorTemperature": kelvin})
}

// SetRangeValue sets a blind position or fan speed level.
func (c *Client) SetRangeValue(ctx context.Context, deviceID string, value int) error {
	return c.SendAction(ctx, deviceID, device.ActionSetRangeValue, TypeRequest, map[string]any{"rangeValue": value})
}

// SetMode sets a device mode such as a garage door's Open or Close.
func (c *Client) SetMode(ctx context.Context, deviceID, mode string) error {
	return c.SendAction(ctx, deviceID, device.ActionSetMode, TypeRequest, map[string]any{"mode": mode})
}

// SetLockState locks or unlocks a smart lock.
func (c *Client) SetLockState(ctx context.Context, deviceID string, lock bool) error {
	state := LockActionUnlock
	if lock {
		state = LockActionLock
	}
	return c.SendAction(ctx, deviceID, device.ActionSetLockState, TypeRequest, map[string]any{"state": state})
}

// SetVolume sets a speaker or TV volume (0-100).
func (c *Client) SetVolume(ctx context.Context, deviceID string, volume int) error {
	return c.SendAction(ctx, deviceID, device.ActionSetVolume, TypeRequest, map[string]any{"volume": volume})
}

// SetMute mutes or unmutes a speaker or TV.
func (c *Client) SetMute(ctx context.Context, deviceID string, mute bool) error {
	return c.SendAction(ctx, deviceID, device.ActionSetMute, TypeRequest, map[string]any{"mute": mute})
}

// SetPowerLevel sets a dimmable switch level (0-100).
func (c *Client) SetPowerLevel(ctx context.Context, deviceID string, level int) error {
	return c.SendAction(ctx, deviceID, device.ActionSetPowerLevel, TypeRequest, map[string]any{"powerLevel": level})
}

// SkipChannels moves a TV count channels forward, or backward when negative.
func (c *Client) SkipChannels(ctx context.Context, deviceID string, count int) error {
	return c.SendAction(ctx, deviceID, device.ActionSkipChannels, TypeRequest, map[string]any{"channelCount": count})
}

// MediaControl sends a playback control such as MediaPlay or MediaPause.
func (c *Client) MediaControl(ctx context.Context, deviceID, control string) error {
	return c.SendAction(ctx, deviceID, device.ActionMediaControl, TypeRequest, map[string]any{"control": control})
}

// SetTargetTemperature sets a thermostat set point in °C.
func (c *Client) SetTargetTemperature(ctx context.Context, deviceID string, celsius float64) error {
	return c.SendAction(ctx, deviceID, device.ActionTargetTemperature, TypeRequest, map[string]any{"temperature": celsius})
}

// SetThermostatMode sets a thermostat mode tag such as COOL or HEAT.
func (c *Client) SetThermostatMode(ctx context.Context, deviceID, mode string) error {
	return c.SendAction(ctx, deviceID, device.ActionSetThermostatMode, TypeRequest, map[string]any{"thermostatMode": mode})
}

// PressDoorbell raises a doorbell press event for a device.
func (c *Client) PressDoorbell(ctx context.Context, deviceID string) error {
	return c.SendAction(ctx, deviceID, device.ActionDoorbellPress, TypeEvent, map[string]any{"state": device.DoorbellPressed})
}
