package profile

import (
	"context"
	"fmt"

	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// Curtain DPs.
const (
	CurtainDPState            dps.Key = "1"
	CurtainDPClosedPercentage dps.Key = "2"
	CurtainDPLastAction       dps.Key = "7"
)

// Curtain motor commands.
const (
	CurtainOpen  = "open"
	CurtainClose = "close"
	CurtainStop  = "stop"
)

// CurtainState is the friendly curtain state. LastAction is reported by the
// device and ignored on writes.
type CurtainState struct {
	State            *string `json:"state,omitempty"`
	ClosedPercentage *int    `json:"closed_percentage,omitempty"`
	LastAction       *string `json:"last_action,omitempty"`
}

// CurtainProfile maps CurtainState to DPs 1, 2 and 7.
type CurtainProfile struct{}

func (CurtainProfile) Kind() string { return KindCurtain }

func (CurtainProfile) Encode(s CurtainState) (dps.Update, error) {
	u := dps.Update{}
	if s.State != nil {
		switch *s.State {
		case CurtainOpen, CurtainClose, CurtainStop:
			u[CurtainDPState] = *s.State
		default:
			return nil, fmt.Errorf("invalid curtain command %q", *s.State)
		}
	}
	if s.ClosedPercentage != nil {
		u[CurtainDPClosedPercentage] = clamp(*s.ClosedPercentage, 0, 100)
	}
	return u, nil
}

func (CurtainProfile) Project(s CurtainState, u dps.Update) CurtainState {
	if v, ok := u[CurtainDPState].(string); ok {
		s.State = &v
	}
	if n, ok := dps.AsInt(u[CurtainDPClosedPercentage]); ok {
		s.ClosedPercentage = &n
	}
	if v, ok := u[CurtainDPLastAction].(string); ok {
		s.LastAction = &v
	}
	return s
}

// Curtain is a motorised curtain or blind.
type Curtain struct {
	base[CurtainState]
}

// NewCurtain creates a curtain controller.
func NewCurtain(identity device.Identity, tr transport.Transport, opts ...device.Option) (*Curtain, error) {
	c, err := device.New[CurtainState](identity, tr, CurtainProfile{}, opts...)
	if err != nil {
		return nil, err
	}
	return &Curtain{base[CurtainState]{c}}, nil
}

// Open starts opening the curtain.
func (c *Curtain) Open(ctx context.Context) error {
	return c.command(ctx, CurtainOpen)
}

// Close starts closing the curtain.
func (c *Curtain) Close(ctx context.Context) error {
	return c.command(ctx, CurtainClose)
}

// Stop halts the motor.
func (c *Curtain) Stop(ctx context.Context) error {
	return c.command(ctx, CurtainStop)
}

// SetClosedPercentage moves the curtain to pct closed, clamped to 0..100.
func (c *Curtain) SetClosedPercentage(ctx context.Context, pct int) error {
	_, err := c.SetState(ctx, CurtainState{ClosedPercentage: &pct})
	return err
}

func (c *Curtain) command(ctx context.Context, cmd string) error {
	_, err := c.SetState(ctx, CurtainState{State: &cmd})
	return err
}
