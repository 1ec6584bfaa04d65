package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistration records what the advertiser does with a registration.
type fakeRegistration struct {
	mu       sync.Mutex
	text     []string
	shutdown bool
}

func (r *fakeRegistration) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
}

func (r *fakeRegistration) SetText(text []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
}

type registerCall struct {
	instance string
	service  string
	port     int
	text     []string
	reg      *fakeRegistration
}

func testAdvertiser(t *testing.T) (*MDNSAdvertiser, *[]registerCall) {
	t.Helper()
	adv, err := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	require.NoError(t, err)

	var calls []registerCall
	adv.register = func(instance, service, domain string, port int, text []string, _ []net.Interface, _ ...zeroconf.ServerOption) (registration, error) {
		reg := &fakeRegistration{text: text}
		calls = append(calls, registerCall{instance: instance, service: service, port: port, text: text, reg: reg})
		return reg, nil
	}
	return adv, &calls
}

func newEntry(instance, deviceID string, port int, addrs ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.HostName = instance + ".local."
	e.Port = port
	e.Text = TXTRecordsToStrings(EncodeGatewayTXT(&GatewayInfo{DeviceID: deviceID, ProductKey: "keyabc"}))
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip.To4() != nil {
			e.AddrIPv4 = append(e.AddrIPv4, ip)
		} else {
			e.AddrIPv6 = append(e.AddrIPv6, ip)
		}
	}
	return e
}

// testBrowser returns a browser whose browse feeds the given entries and then
// waits for cancellation.
func testBrowser(t *testing.T, found ...*zeroconf.ServiceEntry) *MDNSBrowser {
	t.Helper()
	b, err := NewMDNSBrowser(DefaultBrowserConfig())
	require.NoError(t, err)
	t.Cleanup(b.Stop)

	b.browse = func(ctx context.Context, service, domain string, entries, _ chan *zeroconf.ServiceEntry, _ ...zeroconf.ClientOption) error {
		if service != ServiceType || domain != Domain {
			return errors.New("unexpected service")
		}
		for _, e := range found {
			select {
			case entries <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return b
}

func TestMDNSAdvertiserAdvertise(t *testing.T) {
	adv, calls := testAdvertiser(t)
	defer adv.StopAll()

	info := &GatewayInfo{DeviceID: "bf0123", ProductKey: "keyabc", Port: 7000}
	require.NoError(t, adv.Advertise(context.Background(), info))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "dpgw-bf0123", call.instance)
	assert.Equal(t, ServiceType, call.service)
	assert.Equal(t, 7000, call.port)
	assert.Equal(t, []string{"id=bf0123", "pk=keyabc", "ver=1"}, call.text)
}

func TestMDNSAdvertiserDefaultPort(t *testing.T) {
	adv, calls := testAdvertiser(t)
	defer adv.StopAll()

	require.NoError(t, adv.Advertise(context.Background(), &GatewayInfo{DeviceID: "bf0123"}))
	assert.Equal(t, DefaultPort, (*calls)[0].port)
}

func TestMDNSAdvertiserReplace(t *testing.T) {
	adv, calls := testAdvertiser(t)
	defer adv.StopAll()

	ctx := context.Background()
	require.NoError(t, adv.Advertise(ctx, &GatewayInfo{DeviceID: "bf0123"}))
	require.NoError(t, adv.Advertise(ctx, &GatewayInfo{DeviceID: "bf0123", ProductKey: "new"}))

	require.Len(t, *calls, 2)
	assert.True(t, (*calls)[0].reg.shutdown, "first registration should be shut down")
	assert.False(t, (*calls)[1].reg.shutdown)
}

func TestMDNSAdvertiserUpdateAndStop(t *testing.T) {
	adv, calls := testAdvertiser(t)

	ctx := context.Background()
	require.NoError(t, adv.Advertise(ctx, &GatewayInfo{DeviceID: "bf0123"}))

	require.NoError(t, adv.Update(&GatewayInfo{DeviceID: "bf0123", Version: "2"}))
	assert.Equal(t, []string{"id=bf0123", "ver=2"}, (*calls)[0].reg.text)

	assert.ErrorIs(t, adv.Update(&GatewayInfo{DeviceID: "other"}), ErrNotFound)

	require.NoError(t, adv.Stop("bf0123"))
	assert.True(t, (*calls)[0].reg.shutdown)
	assert.ErrorIs(t, adv.Stop("bf0123"), ErrNotFound)
}

func TestMDNSAdvertiserInvalid(t *testing.T) {
	adv, calls := testAdvertiser(t)

	assert.ErrorIs(t, adv.Advertise(context.Background(), &GatewayInfo{}), ErrMissingRequired)

	long := &GatewayInfo{DeviceID: "bf0123", ProductKey: string(make([]byte, MaxTXTRecordSize))}
	assert.ErrorIs(t, adv.Advertise(context.Background(), long), ErrInvalidTXTRecord)
	assert.Empty(t, *calls)
}

func TestMDNSAdvertiserRegisterError(t *testing.T) {
	adv, err := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	require.NoError(t, err)
	adv.register = func(string, string, string, int, []string, []net.Interface, ...zeroconf.ServerOption) (registration, error) {
		return nil, errors.New("no multicast")
	}

	err = adv.Advertise(context.Background(), &GatewayInfo{DeviceID: "bf0123"})
	assert.ErrorContains(t, err, "no multicast")
}

func TestMDNSBrowserFindDevice(t *testing.T) {
	b := testBrowser(t,
		newEntry("dpgw-other", "other", 6668, "192.168.1.20"),
		newEntry("dpgw-bf0123", "bf0123", 6668, "192.168.1.10", "fe80::1"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	svc, err := b.FindDevice(ctx, "bf0123")
	require.NoError(t, err)
	assert.Equal(t, "dpgw-bf0123", svc.InstanceName)
	assert.Equal(t, "keyabc", svc.ProductKey)
	assert.Equal(t, []string{"192.168.1.10", "fe80::1"}, svc.Addresses)

	addr, err := svc.Address()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10:6668", addr)
}

func TestMDNSBrowserResolve(t *testing.T) {
	b := testBrowser(t, newEntry("dpgw-bf0123", "bf0123", 7001, "10.0.0.5"))

	addr, err := b.Resolve(context.Background(), "bf0123")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:7001", addr)
}

func TestMDNSBrowserFindDeviceTimeout(t *testing.T) {
	b := testBrowser(t, newEntry("dpgw-other", "other", 6668, "192.168.1.20"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.FindDevice(ctx, "bf0123")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMDNSBrowserFindAll(t *testing.T) {
	b := testBrowser(t,
		newEntry("dpgw-a", "a", 6668, "192.168.1.1"),
		newEntry("dpgw-b", "b", 6668, "192.168.1.2"),
		// Same instance on a second interface merges into the first entry.
		newEntry("dpgw-a", "a", 6668, "fe80::a"),
		// Entries without a device ID are ignored.
		func() *zeroconf.ServiceEntry {
			e := newEntry("junk", "x", 6668, "192.168.1.3")
			e.Text = []string{"pk=nothing"}
			return e
		}(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	found, err := b.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].DeviceID)
	assert.Equal(t, []string{"192.168.1.1", "fe80::a"}, found[0].Addresses)
	assert.Equal(t, "b", found[1].DeviceID)
}

func TestMDNSBrowserFindAllEmpty(t *testing.T) {
	b := testBrowser(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := b.FindAll(ctx)
	assert.NoError(t, err)
	assert.Empty(t, found)
}

func TestMDNSBrowserStop(t *testing.T) {
	b := testBrowser(t)

	results, err := b.Browse(context.Background())
	require.NoError(t, err)

	b.Stop()

	select {
	case _, ok := <-results:
		assert.False(t, ok, "channel should close after Stop")
	case <-time.After(time.Second):
		t.Fatal("browse did not end after Stop")
	}

	_, err = b.Browse(context.Background())
	assert.Error(t, err)
}

func TestRemoveAddresses(t *testing.T) {
	entry := newEntry("dpgw-a", "a", 6668, "192.168.1.1")
	got := removeAddresses([]string{"192.168.1.1", "fe80::a"}, entry)
	assert.Equal(t, []string{"fe80::a"}, got)
}
