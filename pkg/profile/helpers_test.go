package profile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/device"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport/mocks"
)

var testIdentity = device.Identity{ID: "bf0123456789abcdef", Key: "0123456789abcdef"}

// fakeDevice drives a façade through a mock transport, recording writes.
type fakeDevice struct {
	tr *mocks.MockTransport

	mu      sync.Mutex
	handler transport.EventHandler
	writes  []dps.Update
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	f := &fakeDevice{tr: mocks.NewMockTransport(t)}
	f.tr.EXPECT().Find(mock.Anything).Return(nil).Maybe()
	f.tr.EXPECT().Connect(mock.Anything).Return(nil).Maybe()
	f.tr.EXPECT().Subscribe(mock.Anything).RunAndReturn(func(fn transport.EventHandler) func() {
		f.mu.Lock()
		f.handler = fn
		f.mu.Unlock()
		return func() {}
	}).Maybe()
	f.tr.EXPECT().Set(mock.Anything, mock.Anything).RunAndReturn(func(_ context.Context, req transport.SetRequest) (transport.Ack, error) {
		f.mu.Lock()
		f.writes = append(f.writes, req.Data.Clone())
		f.mu.Unlock()
		return transport.Ack{Applied: req.Data}, nil
	}).Maybe()
	return f
}

func (f *fakeDevice) options() []device.Option {
	fast := connection.DefaultRetryPolicy()
	fast.BackoffDelay = time.Millisecond
	return []device.Option{device.WithRetryPolicy(fast)}
}

// connect connects d and feeds it an initial state.
func (f *fakeDevice) connect(t *testing.T, d Device, initial dps.Update) {
	t.Helper()
	require.NoError(t, d.Connect(context.Background()))
	if initial != nil {
		f.emit(initial)
	}
}

func (f *fakeDevice) emit(u dps.Update) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(transport.Event{Type: transport.EventData, DPS: u})
	}
}

func (f *fakeDevice) recorded() []dps.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dps.Update(nil), f.writes...)
}
