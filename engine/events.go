package engine

import "fleettrack/store"

const (
	EventAssignmentCreated EventType = iota + 1
	EventStatusChanged
	EventLocationUpdated
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type AssignmentCreatedEvent struct {
	AssignmentID  int64
	AssignmentRef string
	OrderRef      string
	TruckID       int64
}

type StatusChangedEvent struct {
	AssignmentID  int64
	AssignmentRef string
	OrderRef      string
	OldStatus     string
	NewStatus     string
	Detail        string
}

type LocationUpdatedEvent struct {
	AssignmentID  int64
	AssignmentRef string
	OrderRef      string
	TruckID       int64
	Location      store.CurrentLocation
}

type ConnectionEvent struct {
	Detail string
}
