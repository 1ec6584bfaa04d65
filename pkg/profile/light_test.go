package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

func TestBrightnessClamping(t *testing.T) {
	tests := []struct {
		pct  int
		want int
	}{
		{pct: -5, want: 10},
		{pct: 0, want: 10},
		{pct: 1, want: 10},
		{pct: 55, want: 550},
		{pct: 100, want: 1000},
		{pct: 150, want: 1000},
	}
	for _, tt := range tests {
		u, err := LightProfile{}.Encode(LightState{Brightness: &tt.pct})
		require.NoError(t, err)
		assert.Equal(t, tt.want, u[LightDPBrightness], "pct %d", tt.pct)
	}
}

func TestBrightnessRoundTrip(t *testing.T) {
	for pct := MinBrightness; pct <= MaxBrightness; pct++ {
		assert.Equal(t, pct, brightnessFromDevice(brightnessToDevice(pct)))
	}
	assert.Equal(t, 2, brightnessFromDevice(15))
}

func TestLightProjectAndEncode(t *testing.T) {
	s := LightProfile{}.Project(LightState{}, dps.Update{
		LightDPPower:       true,
		LightDPMode:        ModeColour,
		LightDPBrightness:  uint64(420),
		LightDPTemperature: int64(300),
		LightDPColor:       "000003e803e8",
		LightDPScene:       "reading",
		"99":               "ignored",
	})
	require.NotNil(t, s.Power)
	assert.True(t, *s.Power)
	assert.Equal(t, ModeColour, *s.Mode)
	assert.Equal(t, 42, *s.Brightness)
	assert.Equal(t, 300, *s.Temperature)
	assert.Equal(t, "ff0000", *s.Color)
	assert.Equal(t, "reading", *s.Scene)

	u, err := LightProfile{}.Encode(LightState{Color: ptr("#FF0000")})
	require.NoError(t, err)
	assert.Equal(t, dps.Update{LightDPColor: "000003e803e8"}, u)

	_, err = LightProfile{}.Encode(LightState{Color: ptr("red-ish")})
	assert.Error(t, err)

	_, err = LightProfile{}.Encode(LightState{Mode: ptr("disco")})
	assert.Error(t, err)
}

func TestLightSetTemperatureSwitchesModeFirst(t *testing.T) {
	f := newFakeDevice(t)
	l, err := NewLight(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, l, dps.Update{LightDPMode: ModeColour})

	require.NoError(t, l.SetTemperature(context.Background(), 500))

	assert.Equal(t, []dps.Update{
		{LightDPMode: ModeWhite},
		{LightDPTemperature: 500},
	}, f.recorded())
}

func TestLightSetTemperatureInWhiteMode(t *testing.T) {
	f := newFakeDevice(t)
	l, err := NewLight(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, l, dps.Update{LightDPMode: ModeWhite})

	require.NoError(t, l.SetTemperature(context.Background(), 500))

	assert.Equal(t, []dps.Update{{LightDPTemperature: 500}}, f.recorded())
}

func TestLightSetStateKeepsMode(t *testing.T) {
	f := newFakeDevice(t)
	l, err := NewLight(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, l, dps.Update{LightDPMode: ModeColour})

	_, err = l.SetState(context.Background(), LightState{Temperature: ptr(500)})
	require.NoError(t, err)

	assert.Equal(t, []dps.Update{{LightDPTemperature: 500}}, f.recorded())
}

func TestLightSetColorAndScene(t *testing.T) {
	f := newFakeDevice(t)
	l, err := NewLight(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, l, nil)

	ctx := context.Background()
	require.NoError(t, l.SetColor(ctx, "rgb(0, 0, 255)"))
	require.NoError(t, l.SetScene(ctx, "night"))
	require.NoError(t, l.TurnOff(ctx))

	assert.Equal(t, []dps.Update{
		{LightDPMode: ModeColour},
		{LightDPColor: "00f003e803e8"},
		{LightDPMode: ModeScene, LightDPScene: "night"},
		{LightDPPower: false},
	}, f.recorded())
}

func TestLightApplyJSON(t *testing.T) {
	f := newFakeDevice(t)
	l, err := NewLight(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, l, dps.Update{LightDPPower: true, LightDPBrightness: 1000})

	ctx := context.Background()
	require.NoError(t, l.ApplyJSON(ctx, []byte(`{"mode":"white","temperature":250}`)))
	assert.Equal(t, []dps.Update{{LightDPMode: ModeWhite, LightDPTemperature: 250}}, f.recorded())

	assert.Error(t, l.ApplyJSON(ctx, []byte(`{"hue":1}`)))

	js, err := l.StateJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"power":true,"brightness":100}`, string(js))
}
