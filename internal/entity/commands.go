package entity

// Command names accepted by Execute.
const (
	CommandTurnOn              = "turn_on"
	CommandTurnOff             = "turn_off"
	CommandSetBrightness       = "set_brightness"
	CommandSetColor            = "set_color"
	CommandSetColorTemperature = "set_color_temperature"
	CommandSetPosition         = "set_position"
	CommandOpen                = "open"
	CommandClose               = "close"
	CommandLock                = "lock"
	CommandUnlock              = "unlock"
	CommandSetPercentage       = "set_percentage"
	CommandSetHVACMode         = "set_hvac_mode"
	CommandSetTemperature      = "set_temperature"
	CommandSetFanMode          = "set_fan_mode"
	CommandSetVolume           = "set_volume"
	CommandMute                = "mute"
	CommandNextTrack           = "next"
	CommandPreviousTrack       = "previous"
	CommandPlay                = "play"
	CommandPause               = "pause"
)

// Parameter keys read by Execute.
const (
	ParamBrightness       = "brightness"
	ParamColor            = "color"
	ParamColorTemperature = "color_temperature"
	ParamPosition         = "position"
	ParamPercentage       = "percentage"
	ParamMode             = "mode"
	ParamTemperature      = "temperature"
	ParamFanMode          = "fan_mode"
	ParamVolume           = "volume"
	ParamMuted            = "muted"
)
