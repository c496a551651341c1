package dispatch

import "fleettrack/store"

// Emitter bridges dispatch transitions to the event bus.
type Emitter interface {
	EmitStatusChanged(a *store.Assignment, orderRef, oldStatus, newStatus, detail string)
}
