package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Map keys are sorted so equal messages encode to equal bytes. Decoding
// tolerates duplicate keys and indefinite lengths from older gateways.
var (
	encMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	})
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: cbor encoder: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: cbor decoder: %v", err))
	}
	return m
}

type validator interface {
	Validate() error
}

func validate(m Message) error {
	if v, ok := m.(validator); ok {
		return v.Validate()
	}
	return nil
}

// Encode sets the message kind, validates and encodes m.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalid)
	}
	m.stamp()
	if err := validate(m); err != nil {
		return nil, err
	}
	return encMode.Marshal(m)
}

// Decode decodes a frame into the message type its kind names.
func Decode(data []byte) (Message, error) {
	kind, err := PeekKind(data)
	if err != nil {
		return nil, err
	}
	m, err := newMessage(kind)
	if err != nil {
		return nil, err
	}
	if err := decMode.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	if err := validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeAs decodes a frame that must hold a T, e.g. DecodeAs[HelloAck].
func DecodeAs[T any, PT interface {
	*T
	Message
}](data []byte) (PT, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if typed, ok := m.(PT); ok {
		return typed, nil
	}
	return nil, fmt.Errorf("%w: got %s, want %s", ErrKindMismatch, m.MessageKind(), PT(new(T)).MessageKind())
}

// PeekKind reads only the kind field of a frame.
func PeekKind(data []byte) (Kind, error) {
	var head struct {
		Kind Kind `cbor:"1,keyasint"`
	}
	if err := decMode.Unmarshal(data, &head); err != nil {
		return KindUnknown, fmt.Errorf("peek kind: %w", err)
	}
	if head.Kind == KindUnknown || head.Kind > KindControl {
		return head.Kind, fmt.Errorf("%w: %d", ErrUnknownKind, head.Kind)
	}
	return head.Kind, nil
}
