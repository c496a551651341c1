package engine

import "fleettrack/store"

// dispatchEmitter bridges the dispatch package's emitter interface to the EventBus.
type dispatchEmitter struct {
	bus *EventBus
}

func (e *dispatchEmitter) EmitStatusChanged(a *store.Assignment, orderRef, oldStatus, newStatus, detail string) {
	if oldStatus == "" {
		e.bus.Emit(Event{Type: EventAssignmentCreated, Payload: AssignmentCreatedEvent{
			AssignmentID:  a.ID,
			AssignmentRef: a.Ref,
			OrderRef:      orderRef,
			TruckID:       a.TruckID,
		}})
	}
	e.bus.Emit(Event{Type: EventStatusChanged, Payload: StatusChangedEvent{
		AssignmentID:  a.ID,
		AssignmentRef: a.Ref,
		OrderRef:      orderRef,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		Detail:        detail,
	}})
}

// ingestEmitter bridges accepted location merges to the EventBus.
type ingestEmitter struct {
	bus *EventBus
}

func (e *ingestEmitter) EmitLocationUpdated(a *store.Assignment, orderRef string, loc store.CurrentLocation) {
	e.bus.Emit(Event{Type: EventLocationUpdated, Payload: LocationUpdatedEvent{
		AssignmentID:  a.ID,
		AssignmentRef: a.Ref,
		OrderRef:      orderRef,
		TruckID:       a.TruckID,
		Location:      loc,
	}})
}
