package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Control events (IPC payloads)
// ============================================================================
// These are the events external clients may send over the control socket.
// They carry no timestamps; the daemon stamps them on receipt.
// ============================================================================

// SetDirection overrides the direction register, as if the matching key
// had been pressed.
type SetDirection struct {
	Direction Direction `json:"direction"`
}

func (SetDirection) eventMarker() {}

// ReleaseKeys releases any held key immediately.
type ReleaseKeys struct{}

func (ReleaseKeys) eventMarker() {}

// StatusQuery asks for a state snapshot. Only meaningful over IPC, where the
// server turns it into a RequestStateSnapshot.
type StatusQuery struct{}

func (StatusQuery) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "set_direction":
		var e SetDirection
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("unmarshal SetDirection: missing data")
		}
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetDirection: %w", err)
		}
		if e.Direction == DirNone {
			return nil, fmt.Errorf("unmarshal SetDirection: direction is required")
		}
		return e, nil

	case "release":
		return ReleaseKeys{}, nil

	case "status":
		return StatusQuery{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SetDirection:
		env.Type = "set_direction"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetDirection: %w", err)
		}
		env.Data = data

	case ReleaseKeys:
		env.Type = "release"

	case StatusQuery:
		env.Type = "status"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
