package log

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the client instance that produced the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the service endpoint name, e.g. "system".
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// URL is the full request URL.
	URL string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"8,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"`
}

// NewSessionID returns a fresh identifier for Event.SessionID.
func NewSessionID() string {
	return uuid.New().String()
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
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

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the HTTP round trip.
	LayerTransport Layer = 0
	// LayerService is the per-endpoint catalog and dispatch.
	LayerService Layer = 1
	// LayerDevice is the multi-endpoint orchestrator.
	LayerDevice Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerService:
		return "SERVICE"
	case LayerDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a call or its response.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageType distinguishes requests from responses.
type MessageType uint8

const (
	// MessageTypeRequest indicates an outgoing call.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates the answer to a call.
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one side of a call.
type MessageEvent struct {
	// Type distinguishes request/response.
	Type MessageType `cbor:"1,keyasint"`

	// CallID correlates request/response pairs.
	CallID int `cbor:"2,keyasint"`

	// Method and Version identify the remote method. Empty for the legacy channel.
	Method  string `cbor:"3,keyasint,omitempty"`
	Version string `cbor:"4,keyasint,omitempty"`

	// ParamCount is the number of positional parameters sent.
	ParamCount int `cbor:"5,keyasint,omitempty"`

	// StatusCode is the HTTP status of a response.
	StatusCode *int `cbor:"6,keyasint,omitempty"`

	// PowerOff is set when the response reported a sleeping display.
	PowerOff bool `cbor:"7,keyasint,omitempty"`

	// Synthesized is set when the result was substituted for a benign device error.
	Synthesized bool `cbor:"8,keyasint,omitempty"`

	// Duration of the round trip (response only). Stored as nanoseconds.
	Duration *time.Duration `cbor:"9,keyasint,omitempty"`

	// Payload is the decoded params or result.
	Payload any `cbor:"10,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityCatalog indicates a method catalog state change.
	StateEntityCatalog StateEntity = 0
	// StateEntityBreaker indicates a circuit breaker state change.
	StateEntityBreaker StateEntity = 1
	// StateEntityPower indicates a wake attempt.
	StateEntityPower StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityCatalog:
		return "CATALOG"
	case StateEntityBreaker:
		return "BREAKER"
	case StateEntityPower:
		return "POWER"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Kind is the error classification, e.g. "network" or "protocol".
	Kind string `cbor:"2,keyasint,omitempty"`

	// Message is the error message.
	Message string `cbor:"3,keyasint"`

	// Code is the HTTP status or device error code (if applicable).
	Code *int `cbor:"4,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"5,keyasint,omitempty"`
}
