// Package stream consumes the server-push event stream.
//
// A Client keeps one long-lived text/event-stream connection open and turns
// each framed event into a (kind, device id, payload) triple for a Handler.
// It owns its reconnect state machine:
//
//	Disconnected ──Connect()──▶ Connecting ──200──▶ Connected
//	     ▲                          │                   │
//	     │    transient failure     │   EOF / error     │
//	     └────── sleep(backoff) ◀───┴───────────────────┘
//	                                │
//	             401/403 or attempts exhausted
//	                                ▼
//	                             Closed
//
// Backoff starts at the configured initial value, is multiplied after every
// failed attempt and capped at the configured maximum. A successful
// connection resets both the attempt counter and the backoff.
//
// The client never returns errors to its owner. Authentication failures
// and exhausted retries are observable only through State.
package stream
