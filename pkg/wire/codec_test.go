package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

func TestEncodeDecodeMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"hello", &Hello{DeviceID: "bf1234", Nonce: []byte{1, 2, 3}, Tag: []byte{9}, Version: ProtocolVersion}},
		{"hello ack", &HelloAck{Accepted: true}},
		{"set", &SetRequest{RequestID: "r-1", Multiple: true, DPS: dps.Update{"20": true, "22": 500}}},
		{"set ack", &SetAck{RequestID: "r-1", OK: true}},
		{"data", &Data{DPS: dps.Update{"1": "open"}}},
		{"refresh data", &Data{Refresh: true, DPS: dps.Update{"1": false}}},
		{"refresh", &RefreshRequest{}},
		{"ping", &Control{Type: ControlPing, Sequence: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			kind, err := PeekKind(data)
			if err != nil {
				t.Fatalf("PeekKind failed: %v", err)
			}
			if kind != tt.msg.MessageKind() {
				t.Errorf("PeekKind = %v, want %v", kind, tt.msg.MessageKind())
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if decoded.MessageKind() != tt.msg.MessageKind() {
				t.Errorf("decoded kind = %v, want %v", decoded.MessageKind(), tt.msg.MessageKind())
			}
		})
	}
}

func TestSetRequestValues(t *testing.T) {
	req := &SetRequest{
		RequestID: "abc",
		Multiple:  true,
		DPS:       dps.Update{"20": true, "21": "colour", "22": 1000, "99": 1.5},
	}

	data, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeAs[SetRequest](data)
	if err != nil {
		t.Fatalf("DecodeAs failed: %v", err)
	}

	if decoded.RequestID != "abc" || !decoded.Multiple {
		t.Errorf("header mismatch: %+v", decoded)
	}
	if v, _ := decoded.DPS["20"].(bool); !v {
		t.Errorf("dp 20 = %v, want true", decoded.DPS["20"])
	}
	if v, _ := decoded.DPS["21"].(string); v != "colour" {
		t.Errorf("dp 21 = %v, want colour", decoded.DPS["21"])
	}
	if n, ok := dps.AsInt(decoded.DPS["22"]); !ok || n != 1000 {
		t.Errorf("dp 22 = %v (%T), want 1000", decoded.DPS["22"], decoded.DPS["22"])
	}
	if f, ok := dps.AsFloat(decoded.DPS["99"]); !ok || f != 1.5 {
		t.Errorf("dp 99 = %v (%T), want 1.5", decoded.DPS["99"], decoded.DPS["99"])
	}
}

func TestEncodeStampsKind(t *testing.T) {
	msg := &Data{Kind: KindHello, DPS: dps.Update{"1": true}}

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if msg.Kind != KindData {
		t.Errorf("Kind = %v, want data", msg.Kind)
	}
	if kind, _ := PeekKind(data); kind != KindData {
		t.Errorf("PeekKind = %v, want data", kind)
	}
}

func TestValidation(t *testing.T) {
	if _, err := Encode(&SetRequest{DPS: dps.Update{"1": true}}); !errors.Is(err, ErrInvalid) {
		t.Errorf("set without request id: err = %v, want ErrInvalid", err)
	}
	if _, err := Encode(&SetRequest{RequestID: "x"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty set: err = %v, want ErrInvalid", err)
	}
	if _, err := Encode(&Hello{Nonce: []byte{1}}); !errors.Is(err, ErrInvalid) {
		t.Errorf("hello without id: err = %v, want ErrInvalid", err)
	}
	if _, err := Encode(nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("nil message: err = %v, want ErrInvalid", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Run("UnknownKind", func(t *testing.T) {
		data, _ := encMode.Marshal(map[int]any{1: 200})
		if _, err := Decode(data); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("err = %v, want ErrUnknownKind", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := Decode([]byte{0xff, 0x00}); err == nil {
			t.Error("expected error for garbage input")
		}
	})

	t.Run("KindMismatch", func(t *testing.T) {
		data, _ := Encode(&Control{Type: ControlPong})
		if _, err := DecodeAs[SetAck](data); !errors.Is(err, ErrKindMismatch) {
			t.Errorf("err = %v, want ErrKindMismatch", err)
		}
	})
}

func TestDeterministicEncoding(t *testing.T) {
	a, _ := Encode(&Data{DPS: dps.Update{"1": true, "2": 50, "7": "open"}})
	b, _ := Encode(&Data{DPS: dps.Update{"7": "open", "2": 50, "1": true}})

	if !bytes.Equal(a, b) {
		t.Error("encoding depends on map iteration order")
	}
}

func TestKindString(t *testing.T) {
	if KindSetAck.String() != "set-ack" {
		t.Errorf("KindSetAck.String() = %q", KindSetAck.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
	if ControlClose.String() != "close" {
		t.Errorf("ControlClose.String() = %q", ControlClose.String())
	}
}
