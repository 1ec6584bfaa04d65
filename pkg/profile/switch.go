package profile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// Switch channels occupy DPs 1..MaxChannel.
const (
	MaxChannel                     = 6
	SwitchDPPowerIndicator dps.Key = "16"
)

// ErrUnknownChannel is returned for channels outside 1..MaxChannel.
var ErrUnknownChannel = errors.New("unknown switch channel")

// SwitchState is the friendly state of a multi-channel switch. Switches
// holds only channels the device has reported or that are being written.
type SwitchState struct {
	PowerIndicator *bool        `json:"power_indicator,omitempty"`
	Switches       map[int]bool `json:"switches,omitempty"`
}

// SwitchProfile maps SwitchState to DPs 1..6 and 16.
type SwitchProfile struct{}

func (SwitchProfile) Kind() string { return KindSwitch }

func (SwitchProfile) Encode(s SwitchState) (dps.Update, error) {
	u := dps.Update{}
	for ch, on := range s.Switches {
		if ch < 1 || ch > MaxChannel {
			return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
		}
		u[dps.KeyOf(ch)] = on
	}
	if s.PowerIndicator != nil {
		u[SwitchDPPowerIndicator] = *s.PowerIndicator
	}
	return u, nil
}

func (SwitchProfile) Project(s SwitchState, u dps.Update) SwitchState {
	// s.Switches is shared with earlier copies of the state.
	switches := maps.Clone(s.Switches)
	for k, v := range u {
		ch := k.Number()
		on, ok := v.(bool)
		if !ok || ch < 1 || ch > MaxChannel {
			continue
		}
		if switches == nil {
			switches = make(map[int]bool)
		}
		switches[ch] = on
	}
	s.Switches = switches
	if v, ok := u[SwitchDPPowerIndicator].(bool); ok {
		s.PowerIndicator = &v
	}
	return s
}

// Switch is a wall switch with up to six channels.
type Switch struct {
	base[SwitchState]
}

// NewSwitch creates a switch controller.
func NewSwitch(identity device.Identity, tr transport.Transport, opts ...device.Option) (*Switch, error) {
	c, err := device.New[SwitchState](identity, tr, SwitchProfile{}, opts...)
	if err != nil {
		return nil, err
	}
	return &Switch{base[SwitchState]{c}}, nil
}

// Channels returns the channels the device has reported, ascending.
func (s *Switch) Channels() []int {
	return slices.Sorted(maps.Keys(s.GetState().Switches))
}

// Toggle sets channel ch to on, or inverts its known state when on is nil.
// An unknown channel is turned on.
func (s *Switch) Toggle(ctx context.Context, ch int, on *bool) error {
	next := !s.GetState().Switches[ch]
	if on != nil {
		next = *on
	}
	return s.SetChannel(ctx, ch, next)
}

// SetChannel switches one channel.
func (s *Switch) SetChannel(ctx context.Context, ch int, on bool) error {
	_, err := s.SetState(ctx, SwitchState{Switches: map[int]bool{ch: on}})
	return err
}

// TurnOn switches all known channels on in one request.
func (s *Switch) TurnOn(ctx context.Context) error {
	return s.setAll(ctx, true)
}

// TurnOff switches all known channels off in one request.
func (s *Switch) TurnOff(ctx context.Context) error {
	return s.setAll(ctx, false)
}

// EnablePowerIndicator turns the status LED on.
func (s *Switch) EnablePowerIndicator(ctx context.Context) error {
	_, err := s.SetState(ctx, SwitchState{PowerIndicator: ptr(true)})
	return err
}

// DisablePowerIndicator turns the status LED off.
func (s *Switch) DisablePowerIndicator(ctx context.Context) error {
	_, err := s.SetState(ctx, SwitchState{PowerIndicator: ptr(false)})
	return err
}

func (s *Switch) setAll(ctx context.Context, on bool) error {
	switches := make(map[int]bool)
	for _, ch := range s.Channels() {
		switches[ch] = on
	}
	_, err := s.SetState(ctx, SwitchState{Switches: switches})
	return err
}
