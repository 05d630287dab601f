// Package pending implements the command confirmation protocol shared by
// every controllable device class.
//
// A State[T] tracks at most one outstanding command target of type T:
//
//	Idle ──Begin(target)──▶ Pending ──Observe(snapshot) matches──▶ Idle (confirmed)
//	                           │
//	                           ├──timeout fires──▶ Idle (timed out)
//	                           ├──Abort / Clear──▶ Idle (failed)
//	                           └──Begin(newer)──▶ Pending (superseded)
//
// While Pending the owning entity reports its controlled attributes as
// indeterminate. A command's HTTP success does not confirm it; only a
// store update whose values satisfy the match function does.
//
// Issue wraps a send function with the protocol: it begins the pending
// state, retries once on a cloud timeout and aborts with a typed *Error on
// any failure.
package pending
