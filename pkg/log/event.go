package log

import (
	"time"
)

// Event represents a protocol event captured by the engine.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the engine session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates datagram flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// RemoteAddr is the simulator host address (IP:port).
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Packet      *PacketEvent      `cbor:"6,keyasint,omitempty"` // Sent or received datagram
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"` // Receive-loop state
	Error       *ErrorEventData   `cbor:"8,keyasint,omitempty"` // Protocol or transport error
}

// Direction indicates the direction of datagram flow.
type Direction uint8

const (
	// DirectionIn indicates a received datagram.
	DirectionIn Direction = 0
	// DirectionOut indicates a sent datagram.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPacket indicates a datagram was sent or received.
	CategoryPacket Category = 0
	// CategoryState indicates a receive-loop state change.
	CategoryState Category = 1
	// CategoryError indicates a protocol or transport error.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPacket:
		return "PACKET"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// PacketEvent captures one datagram.
type PacketEvent struct {
	// Tag is the 4-byte message tag ("RREF", "DREF", ...).
	Tag string `cbor:"1,keyasint"`

	// Size is the datagram size in bytes.
	Size int `cbor:"2,keyasint"`

	// Records is the number of update records (RREF replies only).
	Records int `cbor:"3,keyasint,omitempty"`

	// SlotID is the subscription slot (requests only).
	SlotID *uint32 `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures receive-loop lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors surfaced by the engine.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
