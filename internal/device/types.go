package device

import "strings"

// Type identifies the class of a remote device. It is fixed when the device
// first appears in a poll and never changes afterwards.
type Type string

// Device types reported by the cloud API.
const (
	TypeSwitch            Type = "switch"
	TypeLight             Type = "light"
	TypeDimmableSwitch    Type = "dimmable_switch"
	TypeBlind             Type = "blind"
	TypeGarageDoor        Type = "garage_door"
	TypeFan               Type = "fan"
	TypeSmartLock         Type = "smartlock"
	TypeSpeaker           Type = "speaker"
	TypeTV                Type = "tv"
	TypeThermostat        Type = "thermostat"
	TypeACUnit            Type = "ac_unit"
	TypeTemperatureSensor Type = "temperature_sensor"
	TypeAirQualitySensor  Type = "air_quality_sensor"
	TypeContactSensor     Type = "contact_sensor"
	TypeMotionSensor      Type = "motion_sensor"
	TypeDoorbell          Type = "doorbell"
	TypeUnknown           Type = "unknown"
)

var knownTypes = map[Type]struct{}{
	TypeSwitch: {}, TypeLight: {}, TypeDimmableSwitch: {}, TypeBlind: {},
	TypeGarageDoor: {}, TypeFan: {}, TypeSmartLock: {}, TypeSpeaker: {},
	TypeTV: {}, TypeThermostat: {}, TypeACUnit: {}, TypeTemperatureSensor: {},
	TypeAirQualitySensor: {}, TypeContactSensor: {}, TypeMotionSensor: {},
	TypeDoorbell: {},
}

// aliases maps vendor spellings onto canonical types.
var aliases = map[string]Type{
	"smart_lock":   TypeSmartLock,
	"lock":         TypeSmartLock,
	"television":   TypeTV,
	"air_quality":  TypeAirQualitySensor,
	"garagedoor":   TypeGarageDoor,
	"dimmer":       TypeDimmableSwitch,
	"dimmerswitch": TypeDimmableSwitch,
	"ac":           TypeACUnit,
	"window_ac":    TypeACUnit,
}

// ParseType normalises a vendor device type tag. Case, spaces and hyphens
// are ignored. Unrecognised tags are kept verbatim (normalised) so the
// snapshot still records what the cloud reported; empty input is unknown.
func ParseType(raw string) Type {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return TypeUnknown
	}
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if _, ok := knownTypes[Type(s)]; ok {
		return Type(s)
	}
	if t, ok := aliases[s]; ok {
		return t
	}
	return Type(s)
}

// Known reports whether t is one of the device types this service models.
func (t Type) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// LockState is the reported state of a smart lock.
type LockState string

const (
	LockStateLocked   LockState = "LOCKED"
	LockStateUnlocked LockState = "UNLOCKED"
)

// ContactState is the reported state of a contact sensor.
type ContactState string

const (
	ContactOpen   ContactState = "open"
	ContactClosed ContactState = "closed"
)

// ThermostatMode is the vendor thermostat mode tag.
type ThermostatMode string

const (
	ThermostatCool ThermostatMode = "COOL"
	ThermostatHeat ThermostatMode = "HEAT"
	ThermostatAuto ThermostatMode = "AUTO"
	ThermostatEco  ThermostatMode = "ECO"
	ThermostatOff  ThermostatMode = "OFF"
)

// GarageDoorMode is the mode value used by garage doors.
type GarageDoorMode string

const (
	GarageOpen  GarageDoorMode = "Open"
	GarageClose GarageDoorMode = "Close"
)

// DefaultMaxFanSpeed is used when a fan does not report its speed levels.
const DefaultMaxFanSpeed = 3

// RGB is a colour triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// White is full-intensity white.
var White = RGB{R: 255, G: 255, B: 255}
