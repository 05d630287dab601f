// Package influxdb records cloudbridge operational telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 and writes three measurements:
//
//	cloudbridge_poll     one point per full device poll (result, devices, duration)
//	cloudbridge_stream   push stream state transitions
//	cloudbridge_command  device command outcomes
//
// Device state history is not recorded; the cloud is the source of truth.
//
// Writes are non-blocking and batched according to influxdb.batch_size and
// influxdb.flush_interval. Asynchronous write failures are reported through
// SetOnError. All methods are safe for concurrent use, and a disconnected
// client silently drops points.
package influxdb
