package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

func TestSwitchProjectDoesNotAlias(t *testing.T) {
	before := SwitchProfile{}.Project(SwitchState{}, dps.Update{"1": true})
	after := SwitchProfile{}.Project(before, dps.Update{"1": false, "3": true, "16": true, "9": true})

	assert.Equal(t, map[int]bool{1: true}, before.Switches)
	assert.Equal(t, map[int]bool{1: false, 3: true}, after.Switches)
	require.NotNil(t, after.PowerIndicator)
	assert.True(t, *after.PowerIndicator)
}

func TestSwitchToggle(t *testing.T) {
	f := newFakeDevice(t)
	s, err := NewSwitch(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, s, dps.Update{"2": true, "1": false})

	assert.Equal(t, []int{1, 2}, s.Channels())

	ctx := context.Background()
	require.NoError(t, s.Toggle(ctx, 4, nil), "unknown channel")
	require.NoError(t, s.Toggle(ctx, 2, nil))
	require.NoError(t, s.Toggle(ctx, 1, ptr(false)))

	assert.Equal(t, []dps.Update{
		{"4": true},
		{"2": false},
		{"1": false},
	}, f.recorded())
}

func TestSwitchAllChannelsAndIndicator(t *testing.T) {
	f := newFakeDevice(t)
	s, err := NewSwitch(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)
	f.connect(t, s, dps.Update{"1": false, "3": false})

	ctx := context.Background()
	require.NoError(t, s.TurnOn(ctx))
	require.NoError(t, s.EnablePowerIndicator(ctx))
	require.NoError(t, s.DisablePowerIndicator(ctx))

	assert.Equal(t, []dps.Update{
		{"1": true, "3": true},
		{SwitchDPPowerIndicator: true},
		{SwitchDPPowerIndicator: false},
	}, f.recorded())

	err = s.SetChannel(ctx, 7, true)
	var setErr *device.SetStateError
	assert.ErrorAs(t, err, &setErr)
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestSwitchTurnOffWithoutChannels(t *testing.T) {
	f := newFakeDevice(t)
	s, err := NewSwitch(testIdentity, f.tr, f.options()...)
	require.NoError(t, err)

	err = s.TurnOff(context.Background())
	assert.ErrorIs(t, err, device.ErrEmptyUpdate)
	assert.Empty(t, f.recorded())
}
