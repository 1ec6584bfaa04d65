package profile

import (
	"context"

	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// PlugDPPower is the plug's relay DP.
const PlugDPPower dps.Key = "1"

// PlugState is the friendly plug state.
type PlugState struct {
	Power *bool `json:"power,omitempty"`
}

// PlugProfile maps PlugState to DP 1.
type PlugProfile struct{}

func (PlugProfile) Kind() string { return KindPlug }

func (PlugProfile) Encode(s PlugState) (dps.Update, error) {
	u := dps.Update{}
	if s.Power != nil {
		u[PlugDPPower] = *s.Power
	}
	return u, nil
}

func (PlugProfile) Project(s PlugState, u dps.Update) PlugState {
	if v, ok := u[PlugDPPower].(bool); ok {
		s.Power = &v
	}
	return s
}

// Plug is a switchable socket.
type Plug struct {
	base[PlugState]
}

// NewPlug creates a plug controller.
func NewPlug(identity device.Identity, tr transport.Transport, opts ...device.Option) (*Plug, error) {
	c, err := device.New[PlugState](identity, tr, PlugProfile{}, opts...)
	if err != nil {
		return nil, err
	}
	return &Plug{base[PlugState]{c}}, nil
}

// TurnOn switches the plug on.
func (p *Plug) TurnOn(ctx context.Context) error {
	return p.setPower(ctx, true)
}

// TurnOff switches the plug off.
func (p *Plug) TurnOff(ctx context.Context) error {
	return p.setPower(ctx, false)
}

// Toggle inverts the known power state. An unknown state turns the plug on.
func (p *Plug) Toggle(ctx context.Context) error {
	on := p.GetState().Power
	return p.setPower(ctx, on == nil || !*on)
}

func (p *Plug) setPower(ctx context.Context, on bool) error {
	_, err := p.SetState(ctx, PlugState{Power: &on})
	return err
}
