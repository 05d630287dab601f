package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPoll    = "cloudbridge_poll"
	MeasurementStream  = "cloudbridge_stream"
	MeasurementCommand = "cloudbridge_command"
)

// RecordPoll writes one poll result. It satisfies coordinator.Telemetry.
func (c *Client) RecordPoll(devices int, duration time.Duration, err error) {
	result := "success"
	fields := map[string]any{
		"devices":     devices,
		"duration_ms": float64(duration) / float64(time.Millisecond),
	}
	if err != nil {
		result = "failure"
		fields["error"] = err.Error()
	}
	c.writePoint(MeasurementPoll, map[string]string{"result": result}, fields)
}

// RecordStreamStatus writes a push stream state transition.
func (c *Client) RecordStreamStatus(status string, attempts int, backoff time.Duration) {
	c.writePoint(MeasurementStream,
		map[string]string{"status": status},
		map[string]any{
			"attempts":  attempts,
			"backoff_s": backoff.Seconds(),
		},
	)
}

// RecordCommand writes the outcome of a device command. Device ids are
// fields, not tags, to keep series cardinality bounded.
func (c *Client) RecordCommand(deviceID, deviceType, outcome string) {
	c.writePoint(MeasurementCommand,
		map[string]string{
			"device_type": deviceType,
			"outcome":     outcome,
		},
		map[string]any{
			"device_id": deviceID,
			"count":     1,
		},
	)
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(measurement, tags, fields)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() || c.points == nil {
		return
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	c.points.WritePoint(write.NewPoint(measurement, tags, fields, now()))
}
