package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

const (
	testID  = "bf0123456789abcdef"
	testKey = "0123456789abcdef"
)

func startSim(t *testing.T, kind string, initial dps.Update) *Device {
	t.Helper()
	d, err := New(Config{
		Address:   "127.0.0.1:0",
		DeviceID:  testID,
		DeviceKey: testKey,
		Kind:      kind,
		Initial:   initial,
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func dial(t *testing.T, d *Device) (*transport.GatewayTransport, chan transport.Event) {
	t.Helper()
	config := transport.DefaultGatewayConfig(testID, testKey)
	config.Address = d.Addr().String()
	config.Conn.DisableKeepAlive = true
	tr, err := transport.NewGatewayTransport(config)
	require.NoError(t, err)

	events := make(chan transport.Event, 16)
	tr.Subscribe(func(ev transport.Event) { events <- ev })
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() { _ = tr.Disconnect(context.Background()) })
	return tr, events
}

func next(t *testing.T, events chan transport.Event) transport.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return transport.Event{}
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Kind: profile.KindPlug})
	assert.Error(t, err)

	_, err = New(Config{DeviceID: testID, Kind: "toaster"})
	assert.ErrorIs(t, err, profile.ErrUnknownKind)

	_, err = New(Config{DeviceID: testID})
	assert.Error(t, err, "no data points")

	d, err := New(Config{DeviceID: testID, Initial: dps.Update{"101": 1}})
	require.NoError(t, err)
	assert.Equal(t, dps.Update{"101": 1}, d.State())
}

func TestDefaultStates(t *testing.T) {
	for _, kind := range profile.Kinds() {
		u, err := DefaultState(kind)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, u, kind)
	}
}

func TestSimRefreshAndSet(t *testing.T) {
	d := startSim(t, profile.KindPlug, nil)
	tr, events := dial(t, d)

	ev := next(t, events)
	require.Equal(t, transport.EventDPRefresh, ev.Type)
	assert.Equal(t, false, ev.DPS[profile.PlugDPPower])
	assert.Equal(t, 1, d.Sessions())

	_, err := tr.Set(context.Background(), transport.SetRequest{Data: dps.Update{profile.PlugDPPower: true}})
	require.NoError(t, err)
	ev = next(t, events)
	require.Equal(t, transport.EventData, ev.Type)
	assert.Equal(t, true, ev.DPS[profile.PlugDPPower])
	assert.Equal(t, true, d.State()[profile.PlugDPPower])
	assert.Equal(t, 1, d.SetCount())

	_, err = tr.Set(context.Background(), transport.SetRequest{Data: dps.Update{"42": 1}})
	assert.ErrorIs(t, err, transport.ErrSetFailed)
	assert.Equal(t, 1, d.SetCount())
}

func TestSimPush(t *testing.T) {
	d := startSim(t, profile.KindSwitch, nil)
	_, events := dial(t, d)
	next(t, events) // initial refresh

	require.NoError(t, d.Push(dps.Update{"5": true}))
	ev := next(t, events)
	require.Equal(t, transport.EventData, ev.Type)
	assert.Equal(t, true, ev.DPS["5"])
	assert.Equal(t, true, d.State()["5"])
}

func TestCurtainEffects(t *testing.T) {
	u := dps.Update{profile.CurtainDPState: profile.CurtainClose}
	curtainEffects(u)
	assert.Equal(t, dps.Update{
		profile.CurtainDPState:            profile.CurtainClose,
		profile.CurtainDPClosedPercentage: 100,
		profile.CurtainDPLastAction:       profile.CurtainClose,
	}, u)

	u = dps.Update{profile.CurtainDPState: profile.CurtainStop}
	curtainEffects(u)
	assert.Equal(t, profile.CurtainStop, u[profile.CurtainDPLastAction])
	assert.NotContains(t, u, profile.CurtainDPClosedPercentage)

	u = dps.Update{profile.CurtainDPClosedPercentage: 40}
	curtainEffects(u)
	assert.Equal(t, "position", u[profile.CurtainDPLastAction])
}
