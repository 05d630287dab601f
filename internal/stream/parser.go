package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Event kinds that receive special handling.
const (
	KindDeviceConnected      = "deviceConnected"
	KindDeviceDisconnected   = "deviceDisconnected"
	KindDeviceMessageArrived = "deviceMessageArrived"
	KindUserAlert            = "eventUserAlert"
	KindHeartbeat            = "heartbeat"
)

// Drop reasons reported to metrics.
const (
	dropMalformed = "malformed"
	dropHeartbeat = "heartbeat"
	dropNoDevice  = "no_device"
)

// maxLineSize bounds a single stream line.
const maxLineSize = 1 << 20

// Event is one decoded push event.
type Event struct {
	Kind     string
	DeviceID string
	Payload  map[string]any
}

// frame is one raw event as delimited by a blank line.
type frame struct {
	event string
	data  []string
}

// readFrames scans r and calls emit for every complete frame. It returns
// the read error, or ErrStreamEnded on a clean EOF. A trailing frame with
// no terminating blank line is discarded.
func readFrames(r io.Reader, emit func(frame)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var cur frame
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if line == "" {
			if len(cur.data) > 0 {
				emit(cur)
			}
			cur = frame{}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			cur.event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			cur.data = append(cur.data, strings.TrimSpace(line[len("data:"):]))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return ErrStreamEnded
}

// decodeFrame parses the frame payload and resolves its kind and device id.
// The kind comes from the payload's "event" field, falling back to the
// frame's event line. On failure it returns a non-empty drop reason.
func decodeFrame(f frame) (Event, string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.Join(f.data, "\n")), &payload); err != nil || payload == nil {
		return Event{}, dropMalformed
	}

	kind, _ := payload["event"].(string)
	if kind == "" {
		kind = f.event
	}

	switch kind {
	case KindHeartbeat:
		return Event{}, dropHeartbeat
	case KindUserAlert:
		return Event{Kind: kind, Payload: payload}, ""
	}

	id := DeviceID(kind, payload)
	if id == "" {
		return Event{}, dropNoDevice
	}
	return Event{Kind: kind, DeviceID: id, Payload: payload}, ""
}

// DeviceID extracts the device id for an event of the given kind.
// Connection events carry it under device.id, device messages under
// message.deviceId; anything else falls back to a top-level deviceId or
// device_id.
func DeviceID(kind string, payload map[string]any) string {
	switch kind {
	case KindDeviceConnected, KindDeviceDisconnected:
		dev, _ := payload["device"].(map[string]any)
		id, _ := dev["id"].(string)
		return id
	case KindDeviceMessageArrived:
		msg, _ := payload["message"].(map[string]any)
		id, _ := msg["deviceId"].(string)
		return id
	}
	if id, _ := payload["deviceId"].(string); id != "" {
		return id
	}
	id, _ := payload["device_id"].(string)
	return id
}
