package device

// Snapshot is the last-known state of one remote device.
//
// A Snapshot is immutable once it has been placed in a Store: every change
// produces a new value through With or one of the named builders. Optional
// fields are nil when the device type does not report them. Raw is the poll
// entry the snapshot was built from and must be treated as read-only.
type Snapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   Type   `json:"device_type"`
	Online bool   `json:"is_online"`

	PowerState       bool            `json:"power_state"`
	Brightness       *int            `json:"brightness,omitempty"`
	Color            *RGB            `json:"color,omitempty"`
	ColorTemperature *int            `json:"color_temperature,omitempty"`
	RangeValue       *int            `json:"range_value,omitempty"`
	GarageDoorState  *GarageDoorMode `json:"garage_door_state,omitempty"`
	LockState        *LockState      `json:"lock_state,omitempty"`
	Volume           *int            `json:"volume,omitempty"`
	Muted            *bool           `json:"is_muted,omitempty"`
	PowerLevel       *int            `json:"power_level,omitempty"`
	MaxFanSpeed      *int            `json:"max_fan_speed,omitempty"`

	TargetTemperature *float64        `json:"target_temperature,omitempty"`
	Temperature       *float64        `json:"temperature,omitempty"`
	ThermostatMode    *ThermostatMode `json:"thermostat_mode,omitempty"`
	Humidity          *float64        `json:"humidity,omitempty"`

	PM1  *float64 `json:"pm1,omitempty"`
	PM25 *float64 `json:"pm2_5,omitempty"`
	PM10 *float64 `json:"pm10,omitempty"`

	ContactState         *ContactState `json:"contact_state,omitempty"`
	LastContactDetection *string       `json:"last_contact_detection,omitempty"`
	MotionState          *string       `json:"last_motion_state,omitempty"`
	LastMotionDetection  *string       `json:"last_motion_detection,omitempty"`
	LastDoorbellRing     *string       `json:"last_doorbell_ring,omitempty"`

	Raw map[string]any `json:"-"`
}

// With returns a copy of s with change applied to the copy. The receiver is
// never modified. change must assign fresh values rather than write through
// the existing pointer fields, which are shared with s.
func (s *Snapshot) With(change func(*Snapshot)) *Snapshot {
	next := *s
	change(&next)
	// Identity is fixed for the lifetime of a device.
	next.ID = s.ID
	next.Type = s.Type
	return &next
}

// WithOnline returns a copy of s with the online flag set.
func (s *Snapshot) WithOnline(online bool) *Snapshot {
	return s.With(func(n *Snapshot) { n.Online = online })
}

// WithPowerState returns a copy of s with the power state set.
func (s *Snapshot) WithPowerState(on bool) *Snapshot {
	return s.With(func(n *Snapshot) { n.PowerState = on })
}

// WithDoorbellRing returns a copy of s recording a doorbell press at ts.
func (s *Snapshot) WithDoorbellRing(ts string) *Snapshot {
	return s.With(func(n *Snapshot) { n.LastDoorbellRing = &ts })
}

// FanSpeedLevels returns the number of speed steps the device supports.
func (s *Snapshot) FanSpeedLevels() int {
	if s.MaxFanSpeed != nil && *s.MaxFanSpeed > 0 {
		return *s.MaxFanSpeed
	}
	return DefaultMaxFanSpeed
}

func ptr[T any](v T) *T {
	return &v
}
