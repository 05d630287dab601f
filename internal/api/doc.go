// Package api provides the read-only HTTP API for cloudbridge.
//
// It exposes the reconciled device table, service health and Prometheus
// metrics to local tooling:
//
//	GET /api/v1/health        service health
//	GET /api/v1/devices       every device snapshot
//	GET /api/v1/devices/{id}  one device snapshot
//	GET /metrics              Prometheus exposition
//	GET /api/v1/ws            live device events (WebSocket)
//
// WebSocket clients subscribe to channels by name: device.state_changed,
// device.removed, doorbell.pressed and alert. Only snapshots whose JSON
// form changed are broadcast. Slow clients miss events rather than stall
// the coordinator.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
