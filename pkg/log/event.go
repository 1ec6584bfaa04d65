package log

import (
	"fmt"
	"strings"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

// Event is one entry of a session log. Exactly one payload pointer is set,
// matching Category. Integer CBOR keys keep the files small.
type Event struct {
	Timestamp  time.Time `cbor:"1,keyasint"`
	SessionID  string    `cbor:"2,keyasint"`
	Direction  Direction `cbor:"3,keyasint"`
	Layer      Layer     `cbor:"4,keyasint"`
	Category   Category  `cbor:"5,keyasint"`
	RemoteAddr string    `cbor:"6,keyasint,omitempty"`
	DeviceID   string    `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
	DPUpdate    *DPUpdateEvent    `cbor:"15,keyasint,omitempty"`
}

func enumName(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "UNKNOWN"
}

// Direction is relative to the process writing the log.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }

// Layer is where an event was captured: raw frames, decoded gateway
// messages or the device controller.
type Layer uint8

const (
	LayerTransport Layer = iota
	LayerWire
	LayerDevice
)

var layerNames = []string{"TRANSPORT", "WIRE", "DEVICE"}

func (l Layer) String() string { return enumName(layerNames, uint8(l)) }

// Category selects the payload of an Event.
type Category uint8

const (
	CategoryMessage Category = iota // Frame or Message
	CategoryControl                 // ControlMsg
	CategoryState                   // StateChange
	CategoryError                   // Error
	CategoryDP                      // DPUpdate
)

var categoryNames = []string{"MESSAGE", "CONTROL", "STATE", "ERROR", "DP"}

func (c Category) String() string { return enumName(categoryNames, uint8(c)) }

// FrameEvent records a raw frame. Size includes the length prefix; Data
// may be cut short, see Truncated.
type FrameEvent struct {
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// MessageEvent records a decoded gateway message.
type MessageEvent struct {
	// Kind is the wire kind name, e.g. "set" or "data".
	Kind      string     `cbor:"1,keyasint"`
	RequestID string     `cbor:"2,keyasint,omitempty"`
	DPS       dps.Update `cbor:"3,keyasint,omitempty"`

	// OK is only set for acks.
	OK    *bool  `cbor:"4,keyasint,omitempty"`
	Error string `cbor:"5,keyasint,omitempty"`

	// RoundTrip is measured from the set request to its ack.
	RoundTrip *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent records a lifecycle transition of Entity.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity names what changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota // TCP session
	StateEntityDevice                        // connection.Manager
	StateEntityDiscovery                     // one failed find
)

var stateEntityNames = []string{"CONNECTION", "DEVICE", "DISCOVERY"}

func (s StateEntity) String() string { return enumName(stateEntityNames, uint8(s)) }

// ControlMsgEvent records keep-alive and close traffic.
type ControlMsgEvent struct {
	Type     ControlMsgType `cbor:"1,keyasint"`
	Sequence uint32         `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType is the kind of control message.
type ControlMsgType uint8

const (
	ControlMsgPing ControlMsgType = iota
	ControlMsgPong
	ControlMsgClose
)

var controlMsgNames = []string{"PING", "PONG", "CLOSE"}

func (c ControlMsgType) String() string { return enumName(controlMsgNames, uint8(c)) }

// ErrorEventData records a failure. Context names the operation, e.g.
// "discover" or "decode".
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Context string `cbor:"3,keyasint,omitempty"`
}

// DPUpdateEvent records an update merged into a controller's snapshot.
// First is set on the update that completed Connect.
type DPUpdateEvent struct {
	Refresh bool       `cbor:"1,keyasint,omitempty"`
	DPS     dps.Update `cbor:"2,keyasint"`
	First   bool       `cbor:"3,keyasint,omitempty"`
}

func parseEnum(kind, s string, names []string) (uint8, error) {
	for i, name := range names {
		if strings.EqualFold(s, name) {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q (want one of %s)", kind, s, strings.ToLower(strings.Join(names, ", ")))
}

// ParseLayer parses a layer name, ignoring case.
func ParseLayer(s string) (Layer, error) {
	v, err := parseEnum("layer", s, layerNames)
	return Layer(v), err
}

// ParseDirection parses "in" or "out", ignoring case.
func ParseDirection(s string) (Direction, error) {
	v, err := parseEnum("direction", s, directionNames)
	return Direction(v), err
}

// ParseCategory parses a category name, ignoring case.
func ParseCategory(s string) (Category, error) {
	v, err := parseEnum("category", s, categoryNames)
	return Category(v), err
}
