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

	// SessionID identifies the client session (UUID). It stays the same
	// across reconnects of one client.
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceAddress is the peer BLE address.
	DeviceAddress string `cbor:"6,keyasint,omitempty"`

	// DeviceName is the advertised local name of the peer.
	DeviceName string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport and frame layer
	Exchange    *ExchangeEvent    `cbor:"11,keyasint,omitempty"` // Command layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/exchange/poller state
	Snapshot    *SnapshotEvent    `cbor:"13,keyasint,omitempty"` // Sensor readings
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the appliance.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the appliance.
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

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the GATT layer (raw notification chunks and writes).
	LayerTransport Layer = 0
	// LayerFrame is the framing layer (reassembled, stuffed frames).
	LayerFrame Layer = 1
	// LayerCommand is the command/response layer.
	LayerCommand Layer = 2
	// LayerSession is the connection lifecycle layer.
	LayerSession Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerFrame:
		return "FRAME"
	case LayerCommand:
		return "COMMAND"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates protocol data (chunks, frames, exchanges).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
	// CategorySnapshot indicates a decoded sensor snapshot.
	CategorySnapshot Category = 3
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
	case CategorySnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// MaxCapturedBytes limits the bytes stored in a FrameEvent.
const MaxCapturedBytes = 512

// FrameEvent captures raw bytes at the transport or frame layer.
type FrameEvent struct {
	// Size is the length of the original data in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Characteristic is the GATT characteristic UUID the data travelled on.
	Characteristic string `cbor:"4,keyasint,omitempty"`

	// Missing is the number of placeholder bytes of an incomplete frame.
	Missing int `cbor:"5,keyasint,omitempty"`
}

// NewFrameEvent copies data into a FrameEvent, truncating it to
// MaxCapturedBytes.
func NewFrameEvent(charUUID string, data []byte) *FrameEvent {
	n := len(data)
	ev := &FrameEvent{Size: n, Characteristic: charUUID}
	if n > MaxCapturedBytes {
		n = MaxCapturedBytes
		ev.Truncated = true
	}
	ev.Data = append([]byte(nil), data[:n]...)
	return ev
}

// ExchangeEvent captures one command/response exchange.
type ExchangeEvent struct {
	// Command is the command name (e.g. "GET_SENSOR_VALUES").
	Command string `cbor:"1,keyasint"`

	// Instruction is the wire message type code.
	Instruction uint8 `cbor:"2,keyasint"`

	// State is the exchange state after this event.
	State ExchangeState `cbor:"3,keyasint"`

	// Payload is the request frame or the decoded response payload.
	Payload []byte `cbor:"4,keyasint,omitempty"`

	// Duration from send to completion (terminal states only).
	// Stored as nanoseconds.
	Duration *time.Duration `cbor:"5,keyasint,omitempty"`

	// Chunks is the number of notification chunks received.
	Chunks int `cbor:"6,keyasint,omitempty"`
}

// ExchangeState is the lifecycle state of a command exchange.
type ExchangeState uint8

const (
	// ExchangeIdle means no exchange is in progress.
	ExchangeIdle ExchangeState = 0
	// ExchangeSending means the request frame is being written.
	ExchangeSending ExchangeState = 1
	// ExchangeAwaitingResponse means the request was written and the
	// response frame is being accumulated.
	ExchangeAwaitingResponse ExchangeState = 2
	// ExchangeComplete means the response was decoded.
	ExchangeComplete ExchangeState = 3
	// ExchangeTimedOut means the response deadline passed.
	ExchangeTimedOut ExchangeState = 4
	// ExchangeFailed means the exchange ended with an error.
	ExchangeFailed ExchangeState = 5
)

// String returns the exchange state name.
func (s ExchangeState) String() string {
	switch s {
	case ExchangeIdle:
		return "IDLE"
	case ExchangeSending:
		return "SENDING"
	case ExchangeAwaitingResponse:
		return "AWAITING_RESPONSE"
	case ExchangeComplete:
		return "COMPLETE"
	case ExchangeTimedOut:
		return "TIMED_OUT"
	case ExchangeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state ends an exchange.
func (s ExchangeState) Terminal() bool {
	return s == ExchangeComplete || s == ExchangeTimedOut || s == ExchangeFailed
}

// StateChangeEvent captures connection and poller lifecycle events.
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

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityPoller indicates the poller started or stopped.
	StateEntityPoller StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityPoller:
		return "POLLER"
	default:
		return "UNKNOWN"
	}
}

// SnapshotEvent captures a decoded sensor reading.
type SnapshotEvent struct {
	WaterTemp    float64 `cbor:"1,keyasint"`
	HeaterTemp   float64 `cbor:"2,keyasint"`
	TriacTemp    float64 `cbor:"3,keyasint"`
	InternalTemp float64 `cbor:"4,keyasint"`
	Unit         string  `cbor:"5,keyasint"`
	WaterLow     bool    `cbor:"6,keyasint,omitempty"`
	WaterLeak    bool    `cbor:"7,keyasint,omitempty"`
	MotorSpeed   int32   `cbor:"8,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
