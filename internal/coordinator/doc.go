// Package coordinator reconciles polled and pushed device state into one
// authoritative table.
//
// The coordinator owns a device.Store and is its only writer:
//
//	poll timer ──ListDevices──▶ Replace ─┐
//	                                      ├──▶ notify(table) ──▶ subscribers
//	push stream ──ApplyPushEvent──▶ Update┘
//
// Poll is authoritative for membership: devices missing from a poll are
// removed, and push events for unknown devices are dropped. Push events
// merge only the fields they carry and never create devices.
//
// Three subscription kinds are offered, each returning a *Subscription
// handle that owns its own removal: devices updated (full table), per
// device doorbell presses (timestamp) and user alerts.
package coordinator
