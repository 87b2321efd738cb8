package log

import (
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the transport session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Secure is true for sessions accepted on the TLS listener.
	Secure bool `cbor:"7,keyasint,omitempty"`

	// ConnectionID is the device-assigned connection id, once known.
	ConnectionID int64 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow relative to the device.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Layer indicates which part of the stack captured the event.
type Layer uint8

const (
	// LayerTransport sees raw frames.
	LayerTransport Layer = iota
	// LayerWire sees decoded commands.
	LayerWire
	// LayerService sees connection lifecycle and execution.
	LayerService
)

// Category classifies the event payload. Value 1 is reserved.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryState   Category = 2
	CategoryError   Category = 3
)

var (
	directionNames = map[Direction]string{DirectionIn: "IN", DirectionOut: "OUT"}
	layerNames     = map[Layer]string{LayerTransport: "TRANSPORT", LayerWire: "WIRE", LayerService: "SERVICE"}
	categoryNames  = map[Category]string{CategoryMessage: "MESSAGE", CategoryState: "STATE", CategoryError: "ERROR"}
)

func nameOr(name string, ok bool) string {
	if !ok {
		return "UNKNOWN"
	}
	return name
}

func (d Direction) String() string {
	n, ok := directionNames[d]
	return nameOr(n, ok)
}

func (l Layer) String() string {
	n, ok := layerNames[l]
	return nameOr(n, ok)
}

func (c Category) String() string {
	n, ok := categoryNames[c]
	return nameOr(n, ok)
}

// FrameEvent captures frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (header, message and value).
	Size int `cbor:"1,keyasint"`

	// Data is the CBOR message (may be truncated). The value is never
	// included.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// ValueSize is the length of the value carried by the frame.
	ValueSize int `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// MessageKind distinguishes requests, responses and unsolicited status.
type MessageKind uint8

const (
	MessageKindRequest MessageKind = iota
	MessageKindResponse
	MessageKindUnsolicited
)

var messageKindNames = map[MessageKind]string{
	MessageKindRequest:     "REQUEST",
	MessageKindResponse:    "RESPONSE",
	MessageKindUnsolicited: "UNSOLICITED",
}

func (m MessageKind) String() string {
	n, ok := messageKindNames[m]
	return nameOr(n, ok)
}

// MessageEvent captures a decoded command at the wire layer.
type MessageEvent struct {
	Kind MessageKind `cbor:"1,keyasint"`

	// MessageType is the command type from the header.
	MessageType wire.MessageType `cbor:"2,keyasint"`

	// Sequence is the request sequence (requests).
	Sequence int64 `cbor:"3,keyasint,omitempty"`

	// AckSequence is the acknowledged sequence (responses).
	AckSequence int64 `cbor:"4,keyasint,omitempty"`

	// BatchID is set for batch commands.
	BatchID uint32 `cbor:"5,keyasint,omitempty"`

	// Status is the response status (responses only).
	Status *wire.StatusCode `cbor:"6,keyasint,omitempty"`

	// StatusMessage is the response status message.
	StatusMessage string `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the duration from admission to response (responses only).
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntityDevice
)

func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityDevice:
		return "DEVICE"
	}
	return "UNKNOWN"
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer Layer `cbor:"1,keyasint"`

	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
