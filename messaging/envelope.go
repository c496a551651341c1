package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawEnvelope is used for two-stage unmarshalling: first decode the envelope,
// then decode payload based on msg_type.
type RawEnvelope struct {
	MsgType   string          `json:"msg_type"`
	MsgID     string          `json:"msg_id"`
	FleetID   string          `json:"fleet_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// DecodeEnvelope unmarshals a raw message into a typed Envelope with the correct payload type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw RawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{
		MsgType:   raw.MsgType,
		MsgID:     raw.MsgID,
		FleetID:   raw.FleetID,
		Timestamp: raw.Timestamp,
	}

	var payload any
	switch raw.MsgType {
	case TypeLocationReport:
		var p LocationReport
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", raw.MsgType, err)
		}
		payload = p
	case TypeLocationUpdated:
		var p LocationUpdated
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", raw.MsgType, err)
		}
		payload = p
	case TypeStatusChanged:
		var p StatusChanged
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", raw.MsgType, err)
		}
		payload = p
	default:
		return nil, fmt.Errorf("unknown msg_type: %s", raw.MsgType)
	}
	env.Payload = payload
	return env, nil
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(msgType, fleetID string, payload any) *Envelope {
	return &Envelope{
		MsgType:   msgType,
		MsgID:     uuid.New().String(),
		FleetID:   fleetID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Encode marshals an envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
