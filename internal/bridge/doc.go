// Package bridge exposes the reconciled device table over MQTT.
//
// # Architecture
//
//	┌──────────────┐  table / doorbell / alert   ┌──────────┐   MQTT
//	│ coordinator  │────────────────────────────►│  Bridge  │◄────────► broker
//	└──────────────┘                             └──────────┘
//	        ▲                                         │
//	        │ push + poll              entity.Controller.Execute
//	        │                                         ▼
//	   cloud API ◄──────────────────────────────── commands
//
// # Topics
//
// All topics hang off the configured prefix (default "cloudbridge"):
//
//	{prefix}/state/{device_id}           retained device snapshot
//	{prefix}/event/doorbell/{device_id}  doorbell presses
//	{prefix}/alert                       user alerts
//	{prefix}/health                      retained bridge health
//	{prefix}/command/{device_id}         inbound commands
//	{prefix}/ack/{device_id}             command acknowledgements
//
// # Commands
//
// A command is acknowledged "accepted" once the cloud has taken it, then
// "confirmed" when the device table reflects the target or "timeout" when
// the pending window expires first. Errors produce a single "failed" ack.
// A newer command for the same device supersedes an older one that is still
// pending.
//
// # Thread Safety
//
// Subscription callbacks from the coordinator run with its lock held, so
// the bridge never publishes from them directly. They hand work to a single
// publisher goroutine through a buffered queue.
package bridge
