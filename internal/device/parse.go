package device

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FromAPI builds a Snapshot from one entry of the cloud device list.
//
// Creation-time defaults apply here and nowhere else: a light that omits
// brightness starts at 100 and one that omits colour starts at full white.
// powerState is matched case-insensitively against "on"; a missing value is
// off. A missing isOnline is treated as online.
func FromAPI(raw map[string]any) (*Snapshot, error) {
	id, _ := raw["id"].(string)
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDevice)
	}

	s := &Snapshot{
		ID:     id,
		Name:   stringField(raw, "name"),
		Type:   parseDeviceType(raw["deviceType"]),
		Online: true,
		Raw:    raw,
	}

	if v, ok := raw["isOnline"].(bool); ok {
		s.Online = v
	}
	s.PowerState = parsePowerState(raw["powerState"])

	if v, ok := toInt(raw["brightness"]); ok {
		s.Brightness = ptr(clampPercent(v))
	}
	if c, ok := raw["color"].(map[string]any); ok {
		s.Color = ptr(parseColor(c))
	}
	if v, ok := toInt(raw["colorTemperature"]); ok {
		s.ColorTemperature = ptr(v)
	}
	if v, ok := toInt(raw["rangeValue"]); ok {
		s.RangeValue = ptr(v)
	}
	if v := stringField(raw, "mode"); v != "" {
		s.GarageDoorState = ptr(GarageDoorMode(v))
	}
	if v := stringField(raw, "lockState"); v != "" {
		s.LockState = ptr(LockState(strings.ToUpper(v)))
	}
	if v, ok := toInt(raw["volume"]); ok {
		s.Volume = ptr(clampPercent(v))
	}
	if v, ok := boolField(raw, "isMuted", "mute"); ok {
		s.Muted = ptr(v)
	}
	if v, ok := toInt(raw["powerLevel"]); ok {
		s.PowerLevel = ptr(clampPercent(v))
	}
	if v, ok := toInt(raw["maxFanSpeed"]); ok && v > 0 {
		s.MaxFanSpeed = ptr(v)
	}
	if v, ok := toFloat(raw["targetTemperature"]); ok {
		s.TargetTemperature = ptr(v)
	}
	if v, ok := toFloat(raw["temperature"]); ok {
		s.Temperature = ptr(v)
	}
	if v := stringField(raw, "thermostatMode"); v != "" {
		s.ThermostatMode = ptr(ThermostatMode(strings.ToUpper(v)))
	}
	if v, ok := toFloat(raw["humidity"]); ok {
		s.Humidity = ptr(v)
	}
	if v, ok := toFloat(raw["pm1"]); ok {
		s.PM1 = ptr(v)
	}
	if v, ok := toFloat(raw["pm2_5"]); ok {
		s.PM25 = ptr(v)
	}
	if v, ok := toFloat(raw["pm10"]); ok {
		s.PM10 = ptr(v)
	}
	if v := stringField(raw, "contactState"); v != "" {
		s.ContactState = ptr(ContactState(strings.ToLower(v)))
	}
	if v := stringField(raw, "motionState"); v != "" {
		s.MotionState = ptr(v)
	}

	if s.Type == TypeLight {
		if s.Brightness == nil {
			s.Brightness = ptr(100)
		}
		if s.Color == nil {
			s.Color = ptr(White)
		}
	}

	return s, nil
}

// parseDeviceType accepts either a bare tag or an object carrying the tag
// under "code" or "name".
func parseDeviceType(v any) Type {
	switch t := v.(type) {
	case string:
		return ParseType(t)
	case map[string]any:
		if code, ok := t["code"].(string); ok && code != "" {
			return ParseType(code)
		}
		if name, ok := t["name"].(string); ok {
			return ParseType(name)
		}
	}
	return TypeUnknown
}

func parsePowerState(v any) bool {
	switch p := v.(type) {
	case string:
		return strings.EqualFold(p, "on")
	case bool:
		return p
	}
	return false
}

// parseColor reads an {r,g,b} object; absent components are 255.
func parseColor(c map[string]any) RGB {
	channel := func(key string) uint8 {
		v, ok := toInt(c[key])
		if !ok {
			return 255
		}
		return uint8(max(0, min(255, v)))
	}
	return RGB{R: channel("r"), G: channel("g"), B: channel("b")}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}

// toInt converts a decoded JSON number to int. Fractional values are rounded.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
