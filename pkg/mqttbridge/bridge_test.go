package mqttbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/profile"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport/mocks"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type published struct {
	topic    string
	payload  string
	retained bool
}

// fakeClient records publishes and routes injected messages to handlers.
type fakeClient struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]pahomqtt.MessageHandler
	unsubscribed []string
	subscribeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: string(payload.([]byte)), retained: retained})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return doneToken{err: c.subscribeErr}
	}
	c.handlers[topic] = cb
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	for _, topic := range topics {
		delete(c.handlers, topic)
	}
	return doneToken{}
}

func (c *fakeClient) deliver(topic string, payload string) {
	c.mu.Lock()
	cb := c.handlers[topic]
	c.mu.Unlock()
	if cb != nil {
		cb(nil, message{topic: topic, payload: []byte(payload)})
	}
}

// last returns the most recent payload published on topic.
func (c *fakeClient) last(topic string) (published, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i], true
		}
	}
	return published{}, false
}

// plugHarness is a plug behind a mock transport.
type plugHarness struct {
	tr      *mocks.MockTransport
	plug    *profile.Plug
	mu      sync.Mutex
	handler transport.EventHandler
	sets    []dps.Update
}

func newPlugHarness(t *testing.T) *plugHarness {
	t.Helper()
	h := &plugHarness{tr: mocks.NewMockTransport(t)}
	h.tr.EXPECT().Find(mock.Anything).Return(nil).Maybe()
	h.tr.EXPECT().Connect(mock.Anything).Return(nil).Maybe()
	h.tr.EXPECT().Subscribe(mock.Anything).RunAndReturn(func(fn transport.EventHandler) func() {
		h.mu.Lock()
		h.handler = fn
		h.mu.Unlock()
		return func() {}
	}).Maybe()
	h.tr.EXPECT().Set(mock.Anything, mock.Anything).RunAndReturn(func(_ context.Context, req transport.SetRequest) (transport.Ack, error) {
		h.mu.Lock()
		h.sets = append(h.sets, req.Data)
		h.mu.Unlock()
		return transport.Ack{}, nil
	}).Maybe()

	plug, err := profile.NewPlug(device.Identity{ID: "bf01", Key: "k"}, h.tr)
	require.NoError(t, err)
	h.plug = plug
	return h
}

func (h *plugHarness) emit(ev transport.Event) {
	h.mu.Lock()
	fn := h.handler
	h.mu.Unlock()
	fn(ev)
}

func TestBridgeMirrorsDevice(t *testing.T) {
	client := newFakeClient()
	b := New(client, Config{TopicPrefix: "home"})
	h := newPlugHarness(t)

	require.NoError(t, b.Add("kettle", h.plug))
	assert.Equal(t, []string{"kettle"}, b.Names())

	avail, ok := client.last("home/kettle/availability")
	require.True(t, ok)
	assert.Equal(t, Offline, avail.payload)
	assert.True(t, avail.retained)
	_, ok = client.last("home/kettle/state")
	assert.False(t, ok, "no state before the device reported")

	require.NoError(t, h.plug.Connect(context.Background()))
	h.emit(transport.Event{Type: transport.EventDPRefresh, DPS: dps.Update{"1": true}})

	avail, _ = client.last("home/kettle/availability")
	assert.Equal(t, Online, avail.payload)
	state, ok := client.last("home/kettle/state")
	require.True(t, ok)
	assert.JSONEq(t, `{"power":true}`, state.payload)
	assert.True(t, state.retained)

	client.deliver("home/kettle/set", `{"power":false}`)
	client.deliver("home/kettle/set", `not json`)

	h.mu.Lock()
	assert.Equal(t, []dps.Update{{"1": false}}, h.sets)
	h.mu.Unlock()

	h.emit(transport.Event{Type: transport.EventDisconnected})
	avail, _ = client.last("home/kettle/availability")
	assert.Equal(t, Offline, avail.payload)
}

func TestBridgeAddValidation(t *testing.T) {
	client := newFakeClient()
	b := New(client, Config{})
	h := newPlugHarness(t)

	assert.ErrorIs(t, b.Add("", h.plug), ErrInvalidName)
	assert.ErrorIs(t, b.Add("a/b", h.plug), ErrInvalidName)
	assert.ErrorIs(t, b.Add("a+", h.plug), ErrInvalidName)

	require.NoError(t, b.Add("kettle", h.plug))
	assert.ErrorIs(t, b.Add("kettle", h.plug), ErrDuplicateName)
	assert.Equal(t, "dpcontrol/kettle/set", b.Topic("kettle", "set"))

	client.subscribeErr = errors.New("not authorized")
	assert.Error(t, b.Add("lamp", h.plug))
	assert.Equal(t, []string{"kettle"}, b.Names())
}

func TestBridgeStartStop(t *testing.T) {
	client := newFakeClient()
	b := New(client, Config{TopicPrefix: "home"})
	h := newPlugHarness(t)

	b.Start()
	p, ok := client.last("home/bridge/availability")
	require.True(t, ok)
	assert.Equal(t, Online, p.payload)

	require.NoError(t, b.Add("kettle", h.plug))
	b.Stop()

	p, _ = client.last("home/bridge/availability")
	assert.Equal(t, Offline, p.payload)
	p, _ = client.last("home/kettle/availability")
	assert.Equal(t, Offline, p.payload)
	assert.Equal(t, []string{"home/kettle/set"}, client.unsubscribed)
}
