package wire

import (
	"errors"
	"fmt"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

// ProtocolVersion is the gateway protocol version sent in Hello.
const ProtocolVersion uint8 = 1

// Wire errors.
var (
	ErrUnknownKind  = errors.New("unknown message kind")
	ErrKindMismatch = errors.New("message kind mismatch")
	ErrInvalid      = errors.New("invalid message")
)

// Kind identifies a message type. It is stored under CBOR key 1.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindHello
	KindHelloAck
	KindSet
	KindSetAck
	KindData
	KindRefresh
	KindControl
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindHelloAck:
		return "hello-ack"
	case KindSet:
		return "set"
	case KindSetAck:
		return "set-ack"
	case KindData:
		return "data"
	case KindRefresh:
		return "refresh"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Message is implemented by every wire message.
type Message interface {
	MessageKind() Kind
	stamp()
}

// Hello opens a session for one device.
//
// CBOR encoding:
//
//	{
//	  1: kind,       // KindHello
//	  2: deviceId,   // string
//	  3: nonce,      // bytes: client nonce
//	  4: tag,        // bytes: HKDF(device key, nonce, deviceId)
//	  5: version     // uint8
//	}
type Hello struct {
	Kind     Kind   `cbor:"1,keyasint"`
	DeviceID string `cbor:"2,keyasint"`
	Nonce    []byte `cbor:"3,keyasint"`
	Tag      []byte `cbor:"4,keyasint"`
	Version  uint8  `cbor:"5,keyasint"`
}

// Validate checks required fields.
func (m *Hello) Validate() error {
	if m.DeviceID == "" {
		return fmt.Errorf("%w: hello without device id", ErrInvalid)
	}
	if len(m.Nonce) == 0 {
		return fmt.Errorf("%w: hello without nonce", ErrInvalid)
	}
	return nil
}

// HelloAck answers Hello.
type HelloAck struct {
	Kind     Kind   `cbor:"1,keyasint"`
	Accepted bool   `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`
}

// SetRequest writes DPs.
//
// CBOR encoding:
//
//	{
//	  1: kind,        // KindSet
//	  2: requestId,   // string (UUID)
//	  3: multiple,    // bool
//	  4: dps          // map[string]value
//	}
type SetRequest struct {
	Kind      Kind       `cbor:"1,keyasint"`
	RequestID string     `cbor:"2,keyasint"`
	Multiple  bool       `cbor:"3,keyasint,omitempty"`
	DPS       dps.Update `cbor:"4,keyasint"`
}

// Validate checks required fields.
func (m *SetRequest) Validate() error {
	if m.RequestID == "" {
		return fmt.Errorf("%w: set without request id", ErrInvalid)
	}
	if len(m.DPS) == 0 {
		return fmt.Errorf("%w: set without data points", ErrInvalid)
	}
	return nil
}

// SetAck acknowledges a SetRequest. DPS holds the values the gateway applied.
type SetAck struct {
	Kind      Kind       `cbor:"1,keyasint"`
	RequestID string     `cbor:"2,keyasint"`
	OK        bool       `cbor:"3,keyasint"`
	Error     string     `cbor:"4,keyasint,omitempty"`
	DPS       dps.Update `cbor:"5,keyasint,omitempty"`
}

// Data pushes DP values. Refresh marks a full refresh answer.
type Data struct {
	Kind    Kind       `cbor:"1,keyasint"`
	Refresh bool       `cbor:"2,keyasint,omitempty"`
	DPS     dps.Update `cbor:"3,keyasint"`
}

// RefreshRequest asks for a full refresh. The answer is a Data message with
// Refresh set.
type RefreshRequest struct {
	Kind Kind `cbor:"1,keyasint"`
	// DPs limits the refresh to the listed keys. Empty means all.
	DPs []dps.Key `cbor:"2,keyasint,omitempty"`
}

// Control is a transport-level control message.
type Control struct {
	Kind     Kind        `cbor:"1,keyasint"`
	Type     ControlType `cbor:"2,keyasint"`
	Sequence uint32      `cbor:"3,keyasint,omitempty"`
}

// ControlType represents the type of control message.
type ControlType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlType = 3
)

// String returns the control message type name.
func (t ControlType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

func (m *Hello) MessageKind() Kind          { return KindHello }
func (m *HelloAck) MessageKind() Kind       { return KindHelloAck }
func (m *SetRequest) MessageKind() Kind     { return KindSet }
func (m *SetAck) MessageKind() Kind         { return KindSetAck }
func (m *Data) MessageKind() Kind           { return KindData }
func (m *RefreshRequest) MessageKind() Kind { return KindRefresh }
func (m *Control) MessageKind() Kind        { return KindControl }

func (m *Hello) stamp()          { m.Kind = KindHello }
func (m *HelloAck) stamp()       { m.Kind = KindHelloAck }
func (m *SetRequest) stamp()     { m.Kind = KindSet }
func (m *SetAck) stamp()         { m.Kind = KindSetAck }
func (m *Data) stamp()           { m.Kind = KindData }
func (m *RefreshRequest) stamp() { m.Kind = KindRefresh }
func (m *Control) stamp()        { m.Kind = KindControl }

// newMessage returns an empty message for the kind.
func newMessage(k Kind) (Message, error) {
	switch k {
	case KindHello:
		return &Hello{}, nil
	case KindHelloAck:
		return &HelloAck{}, nil
	case KindSet:
		return &SetRequest{}, nil
	case KindSetAck:
		return &SetAck{}, nil
	case KindData:
		return &Data{}, nil
	case KindRefresh:
		return &RefreshRequest{}, nil
	case KindControl:
		return &Control{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
}
