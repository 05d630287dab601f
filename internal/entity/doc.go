// Package entity provides per-device-class controllers on top of the
// generic pending-state protocol.
//
// Each controller watches one device through a Source (the coordinator),
// sends commands through a Commander (the cloud client) and reports its
// controlled attributes as nil while a command is awaiting confirmation.
// ForDevice picks the controller for a device type; Execute offers a
// string-keyed command surface for transports such as MQTT.
package entity
