package messaging

import "time"

// Envelope is the typed wrapper for all telemetry and event messages.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	FleetID   string    `json:"fleet_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Message types.
const (
	TypeLocationReport  = "location.report"
	TypeLocationUpdated = "location.updated"
	TypeStatusChanged   = "assignment.status_changed"
)

// --- Inbound payloads (driver devices -> service) ---

// LocationReport is one GPS sample published by a driver device over the
// telemetry topic.
type LocationReport struct {
	TruckID       int64     `json:"truck_id"`
	AssignmentRef string    `json:"assignment_ref,omitempty"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Speed         *float64  `json:"speed,omitempty"`
	Heading       *float64  `json:"heading,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
	DeviceID      string    `json:"device_id"`
}

// --- Outbound payloads (service -> consumers) ---

type LocationUpdated struct {
	OrderRef      string    `json:"order_ref"`
	AssignmentRef string    `json:"assignment_ref"`
	TruckID       int64     `json:"truck_id"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Speed         *float64  `json:"speed,omitempty"`
	Heading       *float64  `json:"heading,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

type StatusChanged struct {
	OrderRef      string `json:"order_ref"`
	AssignmentRef string `json:"assignment_ref"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	Detail        string `json:"detail,omitempty"`
}
