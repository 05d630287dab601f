package mqtt

import "strings"

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "cloudbridge"

// Topics builds the cloudbridge topic hierarchy under a configurable root:
//
//	{prefix}/state/{device_id}            retained device snapshot
//	{prefix}/event/doorbell/{device_id}   doorbell press
//	{prefix}/alert                        account alert
//	{prefix}/health                       retained bridge health
//	{prefix}/status                       retained online/offline (LWT)
//	{prefix}/command/{device_id}          inbound command
//	{prefix}/ack/{device_id}              command acknowledgement
type Topics struct {
	Prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are
// trimmed; an empty prefix becomes DefaultPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// State returns the retained state topic for a device.
func (t Topics) State(deviceID string) string {
	return t.root() + "/state/" + deviceID
}

// Doorbell returns the doorbell press topic for a device.
func (t Topics) Doorbell(deviceID string) string {
	return t.root() + "/event/doorbell/" + deviceID
}

func (t Topics) Alert() string  { return t.root() + "/alert" }
func (t Topics) Health() string { return t.root() + "/health" }

// Status carries the retained online/offline marker and the last will.
func (t Topics) Status() string { return t.root() + "/status" }

func (t Topics) Command(deviceID string) string {
	return t.root() + "/command/" + deviceID
}

func (t Topics) Ack(deviceID string) string {
	return t.root() + "/ack/" + deviceID
}

// AllCommands matches every device command topic.
func (t Topics) AllCommands() string {
	return t.root() + "/command/+"
}

// DeviceFromCommand extracts the device id from a command topic. It
// reports false for topics outside this hierarchy or with extra levels.
func (t Topics) DeviceFromCommand(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.root()+"/command/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
