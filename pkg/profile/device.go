package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// Device kinds.
const (
	KindLight   = "light"
	KindPlug    = "plug"
	KindCurtain = "curtain"
	KindSwitch  = "switch"
)

// ErrUnknownKind is returned by Open for an unsupported kind.
var ErrUnknownKind = errors.New("unknown device kind")

// Device is the kind-independent view of a device.
type Device interface {
	ID() string
	Label() string
	Kind() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	State() connection.State
	Refresh(ctx context.Context) error
	Errors() <-chan error

	// StateJSON returns the friendly state as a JSON object.
	StateJSON() ([]byte, error)

	// ApplyJSON applies a partial friendly state given as a JSON object.
	ApplyJSON(ctx context.Context, data []byte) error

	// RawState returns the raw DP snapshot.
	RawState() dps.Snapshot

	// SetRaw writes raw DPs, bypassing the friendly mapping.
	SetRaw(ctx context.Context, u dps.Update) (transport.Ack, error)

	// OnChange registers a callback invoked after every state update.
	OnChange(fn func())

	// OnConnectionChange registers a callback for connection state changes.
	OnConnectionChange(fn func(oldState, newState connection.State))
}

// Open builds the façade for kind.
func Open(kind string, identity device.Identity, tr transport.Transport, opts ...device.Option) (Device, error) {
	switch kind {
	case KindLight:
		return NewLight(identity, tr, opts...)
	case KindPlug:
		return NewPlug(identity, tr, opts...)
	case KindCurtain:
		return NewCurtain(identity, tr, opts...)
	case KindSwitch:
		return NewSwitch(identity, tr, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Kinds returns the supported kinds, sorted.
func Kinds() []string {
	kinds := []string{KindLight, KindPlug, KindCurtain, KindSwitch}
	sort.Strings(kinds)
	return kinds
}

// base implements the kind-independent part of Device.
type base[S any] struct {
	*device.Controller[S]
}

// ID returns the device ID.
func (b base[S]) ID() string {
	return b.Identity().ID
}

// StateJSON returns the friendly state as JSON.
func (b base[S]) StateJSON() ([]byte, error) {
	return json.Marshal(b.GetState())
}

// ApplyJSON decodes a partial state and writes it through SetState.
func (b base[S]) ApplyJSON(ctx context.Context, data []byte) error {
	partial, err := decodeState[S](data)
	if err != nil {
		return err
	}
	_, err = b.SetState(ctx, partial)
	return err
}

// OnChange registers a callback for state updates.
func (b base[S]) OnChange(fn func()) {
	b.OnStateUpdate(func(S, dps.Update) { fn() })
}

func decodeState[S any](data []byte) (S, error) {
	var partial S
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&partial); err != nil {
		return partial, fmt.Errorf("invalid state: %w", err)
	}
	return partial, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func ptr[T any](v T) *T {
	return &v
}
