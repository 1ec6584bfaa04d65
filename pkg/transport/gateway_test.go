package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

const (
	testDeviceID  = "bf0123456789abcdef"
	testDeviceKey = "0123456789abcdef"
)

// testGateway answers refresh and set requests from a fixed DP state.
type testGateway struct {
	*Server

	mu    sync.Mutex
	state dps.Update
	sets  []dps.Update
}

func startTestGateway(t *testing.T) *testGateway {
	t.Helper()

	gw := &testGateway{state: dps.Update{"1": true, "2": 50}}
	gw.Server = NewServer(ServerConfig{
		Address:      "127.0.0.1:0",
		Authenticate: KeyAuthenticator(map[string]string{testDeviceID: testDeviceKey}),
		OnMessage:    gw.handle,
	})
	require.NoError(t, gw.Start(context.Background()))
	t.Cleanup(func() { _ = gw.Stop() })
	return gw
}

func (g *testGateway) handle(conn *ServerConn, m wire.Message) {
	switch msg := m.(type) {
	case *wire.RefreshRequest:
		g.mu.Lock()
		snapshot := g.state.Clone()
		g.mu.Unlock()
		_ = conn.Send(&wire.Data{Refresh: true, DPS: snapshot})

	case *wire.SetRequest:
		if _, bad := msg.DPS["99"]; bad {
			_ = conn.Send(&wire.SetAck{RequestID: msg.RequestID, OK: false, Error: "unsupported dp"})
			return
		}
		g.mu.Lock()
		g.sets = append(g.sets, msg.DPS)
		for k, v := range msg.DPS {
			g.state[k] = v
		}
		g.mu.Unlock()
		_ = conn.Send(&wire.SetAck{RequestID: msg.RequestID, OK: true, DPS: msg.DPS})
		_ = conn.Send(&wire.Data{DPS: msg.DPS})
	}
}

func (g *testGateway) addr() string {
	return g.Addr().String()
}

func newTestTransport(t *testing.T, addr, key string) *GatewayTransport {
	t.Helper()
	config := DefaultGatewayConfig(testDeviceID, key)
	config.Address = addr
	config.Conn.DisableKeepAlive = true
	tr, err := NewGatewayTransport(config)
	require.NoError(t, err)
	return tr
}

// eventRecorder collects events from a transport.
type eventRecorder struct {
	ch chan Event
}

func recordEvents(tr Transport) *eventRecorder {
	r := &eventRecorder{ch: make(chan Event, 32)}
	tr.Subscribe(func(ev Event) { r.ch <- ev })
	return r
}

func (r *eventRecorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestGatewayTransportSession(t *testing.T) {
	gw := startTestGateway(t)
	tr := newTestTransport(t, gw.addr(), testDeviceKey)
	events := recordEvents(tr)
	ctx := context.Background()

	require.NoError(t, tr.Find(ctx))
	assert.Equal(t, gw.addr(), tr.Address())
	require.NoError(t, tr.Connect(ctx))
	assert.ErrorIs(t, tr.Connect(ctx), ErrAlreadyConnected)

	ev := events.next(t)
	require.Equal(t, EventDPRefresh, ev.Type)
	n, ok := dps.AsInt(ev.DPS["2"])
	require.True(t, ok)
	assert.Equal(t, 50, n)

	ack, err := tr.Set(ctx, SetRequest{Multiple: true, Data: dps.Update{"1": false}})
	require.NoError(t, err)
	assert.NotEmpty(t, ack.RequestID)
	assert.Equal(t, false, ack.Applied["1"])

	ev = events.next(t)
	require.Equal(t, EventData, ev.Type)
	assert.Equal(t, false, ev.DPS["1"])

	require.NoError(t, tr.Refresh(ctx))
	ev = events.next(t)
	require.Equal(t, EventDPRefresh, ev.Type)
	assert.Equal(t, false, ev.DPS["1"])

	require.NoError(t, tr.Disconnect(ctx))
	assert.Equal(t, EventDisconnected, events.next(t).Type)

	_, err = tr.Set(ctx, SetRequest{Data: dps.Update{"1": true}})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, tr.Disconnect(ctx), "second Disconnect is a no-op")
}

func TestGatewayTransportSetRejected(t *testing.T) {
	gw := startTestGateway(t)
	tr := newTestTransport(t, gw.addr(), testDeviceKey)
	ctx := context.Background()

	require.NoError(t, tr.Find(ctx))
	require.NoError(t, tr.Connect(ctx))
	defer tr.Disconnect(ctx)

	_, err := tr.Set(ctx, SetRequest{Data: dps.Update{"99": 1}})
	assert.ErrorIs(t, err, ErrSetFailed)
	assert.Contains(t, err.Error(), "unsupported dp")
}

func TestGatewayTransportWrongKey(t *testing.T) {
	gw := startTestGateway(t)
	tr := newTestTransport(t, gw.addr(), "not-the-key")
	ctx := context.Background()

	require.NoError(t, tr.Find(ctx))
	err := tr.Connect(ctx)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, gw.ConnectionCount())
}

func TestGatewayTransportFindFails(t *testing.T) {
	// Reserve a port, then free it so nothing listens there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	tr := newTestTransport(t, addr, testDeviceKey)
	assert.ErrorIs(t, tr.Find(context.Background()), ErrDeviceNotFound)
	assert.ErrorIs(t, tr.Connect(context.Background()), ErrDeviceNotFound)
}

func TestGatewayTransportServerGone(t *testing.T) {
	gw := startTestGateway(t)
	tr := newTestTransport(t, gw.addr(), testDeviceKey)
	events := recordEvents(tr)
	ctx := context.Background()

	require.NoError(t, tr.Find(ctx))
	require.NoError(t, tr.Connect(ctx))
	require.Equal(t, EventDPRefresh, events.next(t).Type)

	require.NoError(t, gw.Stop())

	assert.Equal(t, EventDisconnected, events.next(t).Type)
}

func TestGatewayTransportDroppedAfterHello(t *testing.T) {
	// A listener that accepts the hello and hangs up right away.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			f := NewFramer(nc, 0)
			if _, err := f.ReadFrame(); err == nil {
				data, _ := wire.Encode(&wire.HelloAck{Accepted: true})
				_ = f.WriteFrame(data)
			}
			_ = nc.Close()
		}
	}()

	config := DefaultGatewayConfig(testDeviceID, testDeviceKey)
	config.Address = l.Addr().String()
	config.Conn.DisableKeepAlive = true
	tr, err := NewGatewayTransport(config)
	require.NoError(t, err)
	events := recordEvents(tr)
	ctx := context.Background()

	// Whether the refresh write or the read loop notices the hang-up first,
	// the transport must end up ready for a new session.
	for range 3 {
		require.NoError(t, tr.Find(ctx))
		err := tr.Connect(ctx)
		require.NotErrorIs(t, err, ErrAlreadyConnected)
		if err == nil {
			// A reset may surface as an EventError first.
			ev := events.next(t)
			if ev.Type == EventError {
				ev = events.next(t)
			}
			assert.Equal(t, EventDisconnected, ev.Type)
		}
	}
	assert.ErrorIs(t, tr.Refresh(ctx), ErrNotConnected)
}

func TestGatewayTransportKeepAliveTimeout(t *testing.T) {
	// A listener that completes the hello but never answers pings.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		f := NewFramer(nc, 0)
		if _, err := f.ReadFrame(); err != nil {
			return
		}
		data, _ := wire.Encode(&wire.HelloAck{Accepted: true})
		_ = f.WriteFrame(data)
		for {
			if _, err := f.ReadFrame(); err != nil {
				return
			}
		}
	}()

	config := DefaultGatewayConfig(testDeviceID, testDeviceKey)
	config.Address = l.Addr().String()
	config.RefreshOnConnect = false
	config.Conn.KeepAlive = KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 2,
	}
	tr, err := NewGatewayTransport(config)
	require.NoError(t, err)
	events := recordEvents(tr)

	require.NoError(t, tr.Find(context.Background()))
	require.NoError(t, tr.Connect(context.Background()))

	ev := events.next(t)
	require.Equal(t, EventError, ev.Type)
	assert.True(t, errors.Is(ev.Err, ErrKeepAliveTimeout), "err = %v", ev.Err)
	assert.Equal(t, EventDisconnected, events.next(t).Type)
}

type staticResolver struct {
	addr string
	err  error
	ids  []string
}

func (r *staticResolver) Resolve(_ context.Context, id string) (string, error) {
	r.ids = append(r.ids, id)
	return r.addr, r.err
}

func TestGatewayTransportResolver(t *testing.T) {
	gw := startTestGateway(t)

	config := DefaultGatewayConfig(testDeviceID, testDeviceKey)
	resolver := &staticResolver{addr: gw.addr()}
	config.Resolver = resolver
	tr, err := NewGatewayTransport(config)
	require.NoError(t, err)

	require.NoError(t, tr.Find(context.Background()))
	assert.Equal(t, []string{testDeviceID}, resolver.ids)
	assert.Equal(t, gw.addr(), tr.Address())

	resolver.err = errors.New("no answer")
	assert.ErrorIs(t, tr.Find(context.Background()), ErrDeviceNotFound)
}

func TestGatewayTransportSessionLog(t *testing.T) {
	gw := startTestGateway(t)
	tr := newTestTransport(t, gw.addr(), testDeviceKey)
	events := recordEvents(tr)

	rec := &captureLogger{}
	var mu sync.Mutex
	session := log.NewSession(loggerFunc(func(e log.Event) {
		mu.Lock()
		defer mu.Unlock()
		rec.Log(e)
	}), testDeviceID)
	tr.SetSession(session)

	ctx := context.Background()
	require.NoError(t, tr.Find(ctx))
	require.NoError(t, tr.Connect(ctx))
	events.next(t)
	require.NoError(t, tr.Disconnect(ctx))

	mu.Lock()
	defer mu.Unlock()
	var kinds []string
	for _, e := range rec.events {
		assert.Equal(t, session.ID(), e.SessionID)
		if e.Message != nil {
			kinds = append(kinds, e.Message.Kind)
		}
	}
	assert.Contains(t, kinds, "hello")
	assert.Contains(t, kinds, "hello-ack")
	assert.Contains(t, kinds, "data")
}

type loggerFunc func(log.Event)

func (f loggerFunc) Log(e log.Event) { f(e) }

func TestNewGatewayTransportValidation(t *testing.T) {
	_, err := NewGatewayTransport(GatewayConfig{Address: "127.0.0.1:1"})
	assert.Error(t, err)

	_, err = NewGatewayTransport(GatewayConfig{DeviceID: "x"})
	assert.Error(t, err)
}
