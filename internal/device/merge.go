package device

import (
	"strings"
	"time"
)

// Action tags carried in push messages and sent with commands.
const (
	ActionSetPowerState       = "setPowerState"
	ActionSetBrightness       = "setBrightness"
	ActionSetColor            = "setColor"
	ActionSetColorTemperature = "setColorTemperature"
	ActionSetRangeValue       = "setRangeValue"
	ActionSetMode             = "setMode"
	ActionSetLockState        = "setLockState"
	ActionSetVolume           = "setVolume"
	ActionSetMute             = "setMute"
	ActionSetPowerLevel       = "setPowerLevel"
	ActionSkipChannels        = "skipChannels"
	ActionMediaControl        = "mediaControl"
	ActionTargetTemperature   = "targetTemperature"
	ActionSetThermostatMode   = "setThermostatMode"
	ActionDoorbellPress       = "DoorbellPress"

	// Inbound only.
	ActionCurrentTemperature = "currentTemperature"
	ActionAirQuality         = "airQuality"
	ActionSetContactState    = "setContactState"
	ActionMotion             = "motion"
)

// DoorbellPressed is the value.state carried by a doorbell press.
const DoorbellPressed = "pressed"

// Message is the action/value pair of a device message push event.
type Message struct {
	Action string
	Value  map[string]any
}

// MessageFromPayload extracts message.payload.{action,value} from a push
// event body. Missing levels yield an empty Message.
func MessageFromPayload(payload map[string]any) Message {
	msg, _ := payload["message"].(map[string]any)
	inner, _ := msg["payload"].(map[string]any)
	action, _ := inner["action"].(string)
	value, _ := inner["value"].(map[string]any)
	if value == nil {
		value = map[string]any{}
	}
	return Message{Action: action, Value: value}
}

// MergeResult describes the outcome of applying a message to a snapshot.
type MergeResult struct {
	// Snapshot is the resulting snapshot. It is the input pointer when
	// nothing changed.
	Snapshot *Snapshot

	// Changed lists the JSON names of fields whose value differs.
	Changed []string

	// Doorbell is set when the message was a doorbell press; RingTime is
	// the timestamp recorded for it.
	Doorbell bool
	RingTime string
}

// HasChanges reports whether the merge produced a new snapshot.
func (r MergeResult) HasChanges() bool {
	return len(r.Changed) > 0
}

// FormatTimestamp renders t the way detection and ring times are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ApplyMessage merges a device message into s. Only fields named by the
// message are touched; every other field is carried over unchanged. A
// message whose values all equal the current ones returns s itself with no
// changes. Doorbell presses always produce a new snapshot.
func ApplyMessage(s *Snapshot, msg Message, now time.Time) MergeResult {
	if msg.Action == ActionDoorbellPress {
		if state, _ := msg.Value["state"].(string); state != DoorbellPressed {
			return MergeResult{Snapshot: s}
		}
		ts := FormatTimestamp(now)
		return MergeResult{
			Snapshot: s.WithDoorbellRing(ts),
			Changed:  []string{"last_doorbell_ring"},
			Doorbell: true,
			RingTime: ts,
		}
	}

	next := *s
	var changed []string
	v := msg.Value

	if state, ok := v["state"].(string); ok {
		switch msg.Action {
		case ActionSetLockState:
			assign(&next.LockState, LockState(strings.ToUpper(state)), "lock_state", &changed)
		case ActionSetPowerState:
			on := strings.EqualFold(state, "on")
			if next.PowerState != on {
				next.PowerState = on
				changed = append(changed, "power_state")
			}
		}
	}

	if n, ok := toInt(v["brightness"]); ok {
		assign(&next.Brightness, n, "brightness", &changed)
	}
	if c, ok := v["color"].(map[string]any); ok {
		assign(&next.Color, parseColor(c), "color", &changed)
	}
	if n, ok := toInt(v["colorTemperature"]); ok {
		assign(&next.ColorTemperature, n, "color_temperature", &changed)
	}
	if n, ok := toInt(v["rangeValue"]); ok {
		assign(&next.RangeValue, n, "range_value", &changed)
	}
	if mode, ok := v["mode"].(string); ok {
		assign(&next.GarageDoorState, GarageDoorMode(mode), "garage_door_state", &changed)
	}
	if n, ok := toInt(v["volume"]); ok {
		assign(&next.Volume, n, "volume", &changed)
	}
	if b, ok := v["mute"].(bool); ok {
		assign(&next.Muted, b, "is_muted", &changed)
	}
	if n, ok := toInt(v["powerLevel"]); ok {
		assign(&next.PowerLevel, n, "power_level", &changed)
	}

	if t, ok := toFloat(v["temperature"]); ok {
		switch msg.Action {
		case ActionTargetTemperature:
			assign(&next.TargetTemperature, t, "target_temperature", &changed)
		case ActionCurrentTemperature:
			assign(&next.Temperature, t, "temperature", &changed)
		}
	}
	if mode, ok := v["thermostatMode"].(string); ok {
		assign(&next.ThermostatMode, ThermostatMode(strings.ToUpper(mode)), "thermostat_mode", &changed)
	}
	if h, ok := toFloat(v["humidity"]); ok {
		assign(&next.Humidity, h, "humidity", &changed)
	}

	if msg.Action == ActionAirQuality {
		if f, ok := toFloat(v["pm1"]); ok {
			assign(&next.PM1, f, "pm1", &changed)
		}
		if f, ok := toFloat(v["pm2_5"]); ok {
			assign(&next.PM25, f, "pm2_5", &changed)
		}
		if f, ok := toFloat(v["pm10"]); ok {
			assign(&next.PM10, f, "pm10", &changed)
		}
	}

	if msg.Action == ActionSetContactState {
		if state, ok := v["state"].(string); ok {
			cs := ContactState(strings.ToLower(state))
			if assign(&next.ContactState, cs, "contact_state", &changed) && cs == ContactOpen {
				next.LastContactDetection = ptr(FormatTimestamp(now))
				changed = append(changed, "last_contact_detection")
			}
		}
	}

	if msg.Action == ActionMotion {
		if state, ok := v["state"].(string); ok {
			if assign(&next.MotionState, state, "last_motion_state", &changed) {
				next.LastMotionDetection = ptr(FormatTimestamp(now))
				changed = append(changed, "last_motion_detection")
			}
		}
	}

	if len(changed) == 0 {
		return MergeResult{Snapshot: s}
	}
	return MergeResult{Snapshot: &next, Changed: changed}
}

// assign stores v in *field when it differs from the current value and
// records name. It allocates a new pointer so the previous snapshot keeps
// its own value.
func assign[T comparable](field **T, v T, name string, changed *[]string) bool {
	if *field != nil && **field == v {
		return false
	}
	*field = &v
	*changed = append(*changed, name)
	return true
}
