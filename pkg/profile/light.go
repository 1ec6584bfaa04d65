package profile

import (
	"context"
	"fmt"
	"math"

	"github.com/dpcontrol/dpcontrol-go/pkg/color"
	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// Light DPs.
const (
	LightDPPower       dps.Key = "20"
	LightDPMode        dps.Key = "21"
	LightDPBrightness  dps.Key = "22"
	LightDPTemperature dps.Key = "23"
	LightDPColor       dps.Key = "24"
	LightDPScene       dps.Key = "25"
)

// Light modes.
const (
	ModeWhite  = "white"
	ModeColour = "colour"
	ModeScene  = "scene"
)

// Brightness is a percentage on the friendly side and 10..1000 on the device.
const (
	MinBrightness    = 1
	MaxBrightness    = 100
	minRawBrightness = 10
	maxRawBrightness = 1000
	brightnessScale  = 10
)

// LightState is the friendly light state. Nil fields are unknown, or not
// written when used as a partial update.
type LightState struct {
	Power       *bool   `json:"power,omitempty"`
	Mode        *string `json:"mode,omitempty"`
	Brightness  *int    `json:"brightness,omitempty"`
	Temperature *int    `json:"temperature,omitempty"`
	Color       *string `json:"color,omitempty"`
	Scene       *string `json:"scene,omitempty"`
}

// LightProfile maps LightState to DPs 20..25.
type LightProfile struct{}

// Kind implements device.Profile.
func (LightProfile) Kind() string { return KindLight }

// Encode implements device.Profile. Brightness is clamped, colours are
// converted to the device's 12-digit HSV form.
func (LightProfile) Encode(s LightState) (dps.Update, error) {
	u := dps.Update{}
	if s.Power != nil {
		u[LightDPPower] = *s.Power
	}
	if s.Mode != nil {
		switch *s.Mode {
		case ModeWhite, ModeColour, ModeScene:
			u[LightDPMode] = *s.Mode
		default:
			return nil, fmt.Errorf("invalid light mode %q", *s.Mode)
		}
	}
	if s.Brightness != nil {
		u[LightDPBrightness] = brightnessToDevice(*s.Brightness)
	}
	if s.Temperature != nil {
		u[LightDPTemperature] = *s.Temperature
	}
	if s.Color != nil {
		hsv, err := color.HexToDevice(*s.Color)
		if err != nil {
			return nil, err
		}
		u[LightDPColor] = hsv
	}
	if s.Scene != nil {
		u[LightDPScene] = *s.Scene
	}
	return u, nil
}

// Project implements device.Profile.
func (LightProfile) Project(s LightState, u dps.Update) LightState {
	if v, ok := u[LightDPPower].(bool); ok {
		s.Power = &v
	}
	if v, ok := u[LightDPMode].(string); ok {
		s.Mode = &v
	}
	if n, ok := dps.AsInt(u[LightDPBrightness]); ok {
		b := brightnessFromDevice(n)
		s.Brightness = &b
	}
	if n, ok := dps.AsInt(u[LightDPTemperature]); ok {
		s.Temperature = &n
	}
	if v, ok := u[LightDPColor].(string); ok {
		if hex, err := color.DeviceToHex(v); err == nil {
			s.Color = &hex
		}
	}
	if v, ok := u[LightDPScene].(string); ok {
		s.Scene = &v
	}
	return s
}

func brightnessToDevice(pct int) int {
	return clamp(pct*brightnessScale, minRawBrightness, maxRawBrightness)
}

func brightnessFromDevice(raw int) int {
	return int(math.Round(float64(raw) / brightnessScale))
}

// Light is a dimmable colour light.
//
// SetTemperature, SetColor and Apply switch the mode before writing a
// temperature or colour. The promoted SetState writes the encoded DPs as
// they are and never changes the mode.
type Light struct {
	base[LightState]
}

// NewLight creates a light controller.
func NewLight(identity device.Identity, tr transport.Transport, opts ...device.Option) (*Light, error) {
	c, err := device.New[LightState](identity, tr, LightProfile{}, opts...)
	if err != nil {
		return nil, err
	}
	return &Light{base[LightState]{c}}, nil
}

// TurnOn switches the light on.
func (l *Light) TurnOn(ctx context.Context) error {
	return l.set(ctx, LightState{Power: ptr(true)})
}

// TurnOff switches the light off.
func (l *Light) TurnOff(ctx context.Context) error {
	return l.set(ctx, LightState{Power: ptr(false)})
}

// SetWhiteMode switches to white mode.
func (l *Light) SetWhiteMode(ctx context.Context) error {
	return l.set(ctx, LightState{Mode: ptr(ModeWhite)})
}

// SetColorMode switches to colour mode.
func (l *Light) SetColorMode(ctx context.Context) error {
	return l.set(ctx, LightState{Mode: ptr(ModeColour)})
}

// SetBrightness sets the brightness in percent, clamped to 1..100.
func (l *Light) SetBrightness(ctx context.Context, pct int) error {
	return l.set(ctx, LightState{Brightness: &pct})
}

// SetTemperature sets the white temperature. Unless the light is known to
// be in white mode, white mode is written first in a separate request.
func (l *Light) SetTemperature(ctx context.Context, temperature int) error {
	return l.Apply(ctx, LightState{Temperature: &temperature})
}

// SetColor sets the colour from a hex or rgb() string. Unless the light is
// known to be in colour mode, colour mode is written first.
func (l *Light) SetColor(ctx context.Context, c string) error {
	return l.Apply(ctx, LightState{Color: &c})
}

// SetScene activates a scene; mode and scene go out in one request.
func (l *Light) SetScene(ctx context.Context, scene string) error {
	return l.set(ctx, LightState{Mode: ptr(ModeScene), Scene: &scene})
}

// Apply writes a partial state, switching mode first when the partial
// carries a temperature or colour for a mode the light is not in.
func (l *Light) Apply(ctx context.Context, partial LightState) error {
	if partial.Mode == nil {
		current := l.GetState().Mode
		var want string
		switch {
		case partial.Temperature != nil:
			want = ModeWhite
		case partial.Color != nil:
			want = ModeColour
		}
		if want != "" && (current == nil || *current != want) {
			if err := l.set(ctx, LightState{Mode: &want}); err != nil {
				return err
			}
		}
	}
	return l.set(ctx, partial)
}

// ApplyJSON decodes a partial LightState and applies it with Apply.
func (l *Light) ApplyJSON(ctx context.Context, data []byte) error {
	partial, err := decodeState[LightState](data)
	if err != nil {
		return err
	}
	return l.Apply(ctx, partial)
}

func (l *Light) set(ctx context.Context, partial LightState) error {
	_, err := l.SetState(ctx, partial)
	return err
}
