// Package device models the cloud account's devices as immutable snapshots
// and holds them in a copy-on-write table.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                           device                                  │
//	│                                                                   │
//	│  ┌──────────────┐   ┌──────────────┐   ┌──────────────────────┐  │
//	│  │   FromAPI    │   │ ApplyMessage │   │        Store         │  │
//	│  │  (parse.go)  │   │  (merge.go)  │   │     (store.go)       │  │
//	│  │              │   │              │   │                      │  │
//	│  │ • poll entry │   │ • push event │   │ • Replace (poll)     │  │
//	│  │ • defaults   │   │ • field diff │   │ • Update (push)      │  │
//	│  └──────┬───────┘   └──────┬───────┘   │ • lock-free reads    │  │
//	│         └──────────────────┴──────────▶└──────────────────────┘  │
//	└──────────────────────────────────────────────────────────────────┘
//
// A Snapshot is never modified in place. FromAPI builds a complete snapshot
// from a poll entry, applying creation-time defaults. ApplyMessage builds a
// new snapshot from an existing one and a push message, touching only the
// fields the message names, and reports which fields changed.
//
// # Thread Safety
//
// Store writes are serialised; each publishes a new Table. Reads load the
// current Table without locking. Tables and snapshots obtained from a Store
// are shared and must be treated as read-only.
package device
