package engine

import (
	"encoding/json"
	"log"

	"fleettrack/messaging"
)

func (e *Engine) wireEventHandlers() {
	// Status changes fan out to live subscribers and go to the events
	// topic through the durable outbox: a broker outage delays them but
	// never loses them.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(StatusChangedEvent)
		e.logFn("engine: assignment %s status %s -> %s", ev.AssignmentRef, ev.OldStatus, ev.NewStatus)

		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("engine: marshal status event: %v", err)
			return
		}
		e.hub.Publish(ev.OrderRef, "status", string(data))

		env := messaging.NewEnvelope(messaging.TypeStatusChanged, e.cfg.Messaging.FleetID, messaging.StatusChanged{
			OrderRef:      ev.OrderRef,
			AssignmentRef: ev.AssignmentRef,
			OldStatus:     ev.OldStatus,
			NewStatus:     ev.NewStatus,
			Detail:        ev.Detail,
		})
		payload, err := env.Encode()
		if err != nil {
			log.Printf("engine: encode status envelope: %v", err)
			return
		}
		if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, payload, messaging.TypeStatusChanged); err != nil {
			log.Printf("engine: enqueue status event: %v", err)
		}
	}, EventStatusChanged)

	// Location updates are high-volume and individually expendable, so
	// they publish best-effort instead of through the outbox.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LocationUpdatedEvent)

		data, err := json.Marshal(ev.Location)
		if err != nil {
			log.Printf("engine: marshal location event: %v", err)
			return
		}
		e.hub.Publish(ev.OrderRef, "location", string(data))

		env := messaging.NewEnvelope(messaging.TypeLocationUpdated, e.cfg.Messaging.FleetID, messaging.LocationUpdated{
			OrderRef:      ev.OrderRef,
			AssignmentRef: ev.AssignmentRef,
			TruckID:       ev.TruckID,
			Lat:           ev.Location.Lat,
			Lng:           ev.Location.Lng,
			Speed:         ev.Location.Speed,
			Heading:       ev.Location.Heading,
			CapturedAt:    ev.Location.CapturedAt,
		})
		if err := e.msgClient.PublishEnvelope(e.cfg.Messaging.EventsTopic, env); err != nil {
			log.Printf("engine: publish location event: %v", err)
		}
	}, EventLocationUpdated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssignmentCreatedEvent)
		e.logFn("engine: assignment %s created for order %s (truck %d)", ev.AssignmentRef, ev.OrderRef, ev.TruckID)
	}, EventAssignmentCreated)

	e.Events.SubscribeTypes(func(evt Event) {
		e.logFn("engine: %s", evt.Payload.(ConnectionEvent).Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}
