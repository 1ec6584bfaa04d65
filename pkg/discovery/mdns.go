package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// registration is the part of *zeroconf.Server the advertiser uses.
type registration interface {
	Shutdown()
	SetText(text []string)
}

// registerFunc and browseFunc are swapped out in tests.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error)

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return server, nil
}

func zeroconfBrowse(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
	return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
}

// ErrBrowserStopped is returned by Browse after Stop.
var ErrBrowserStopped = errors.New("browser stopped")

// MDNSAdvertiser registers one zeroconf service per advertised device.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu      sync.Mutex
	servers map[string]registration
}

// NewMDNSAdvertiser creates an advertiser. Nothing is announced until
// Advertise.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{
		config:   config,
		register: zeroconfRegister,
		servers:  make(map[string]registration),
	}, nil
}

// Advertise announces info, replacing an earlier announcement for the same
// device. A zero port advertises DefaultPort.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *GatewayInfo) error {
	if info == nil || info.DeviceID == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyDeviceID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := ValidateInstanceName(info.InstanceName()); err != nil {
		return err
	}
	txt := EncodeGatewayTXT(info)
	if size := TXTRecordSize(txt); size > MaxTXTRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidTXTRecord, size)
	}
	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}
	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.shutdownLocked(info.DeviceID)
	server, err := a.register(info.InstanceName(), ServiceType, Domain, port,
		TXTRecordsToStrings(txt), selectInterfaces(a.config.Interface), opts...)
	if err != nil {
		return fmt.Errorf("register %s: %w", info.InstanceName(), err)
	}
	a.servers[info.DeviceID] = server
	return nil
}

// Update replaces the TXT records of an advertised device.
func (a *MDNSAdvertiser) Update(info *GatewayInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[info.DeviceID]
	if !ok {
		return ErrNotFound
	}
	server.SetText(TXTRecordsToStrings(EncodeGatewayTXT(info)))
	return nil
}

// Stop withdraws the announcement for deviceID.
func (a *MDNSAdvertiser) Stop(deviceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.shutdownLocked(deviceID) {
		return ErrNotFound
	}
	return nil
}

// StopAll withdraws every announcement.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id := range a.servers {
		a.shutdownLocked(id)
	}
}

func (a *MDNSAdvertiser) shutdownLocked(deviceID string) bool {
	server, ok := a.servers[deviceID]
	if ok {
		server.Shutdown()
		delete(a.servers, deviceID)
	}
	return ok
}

// MDNSBrowser looks up gateways with zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	browse browseFunc

	// done is cancelled by Stop and ends every running Browse.
	done context.Context
	stop context.CancelFunc
}

// NewMDNSBrowser creates a browser. A zero BrowseTimeout takes the default.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	done, stop := context.WithCancel(context.Background())
	return &MDNSBrowser{
		config: config,
		browse: zeroconfBrowse,
		done:   done,
		stop:   stop,
	}, nil
}

// Browse streams each gateway instance once, when it is first seen. Later
// announcements of the same instance from other interfaces only add
// addresses to the already delivered service.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *GatewayService, error) {
	if b.done.Err() != nil {
		return nil, ErrBrowserStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(b.done, cancel)

	out := make(chan *GatewayService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		defer unlink()
		defer cancel()

		table := gatewayTable{}
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := table.add(entry)
				if svc == nil {
					continue
				}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}
			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				table.remove(entry)
			}
		}
	}()

	var opts []zeroconf.ClientOption
	if ifaces := selectInterfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}
	go func() {
		_ = b.browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindDevice returns the first gateway advertising deviceID with at least
// one address. Without a deadline on ctx the search is bounded by
// BrowseTimeout.
func (b *MDNSBrowser) FindDevice(ctx context.Context, deviceID string) (*GatewayService, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}
	browseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(browseCtx)
	if err != nil {
		return nil, err
	}
	for svc := range results {
		if svc.DeviceID == deviceID && len(svc.Addresses) > 0 {
			return svc, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, deviceID, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, deviceID)
}

// Resolve returns host:port of the gateway serving deviceID.
func (b *MDNSBrowser) Resolve(ctx context.Context, deviceID string) (string, error) {
	svc, err := b.FindDevice(ctx, deviceID)
	if err != nil {
		return "", err
	}
	return svc.Address()
}

// FindAll collects every gateway seen until ctx is done. Running out of
// time is not an error.
func (b *MDNSBrowser) FindAll(ctx context.Context) ([]*GatewayService, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	found := []*GatewayService{}
	for svc := range results {
		found = append(found, svc)
	}
	return found, nil
}

// Stop ends all running browses. The browser cannot be reused.
func (b *MDNSBrowser) Stop() {
	b.stop()
}

func selectInterfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// gatewayTable aggregates zeroconf entries by instance name.
type gatewayTable map[string]*GatewayService

// add records entry and returns the service when the instance is new.
// Entries without valid gateway TXT records are ignored.
func (t gatewayTable) add(entry *zeroconf.ServiceEntry) *GatewayService {
	svc := entryToGateway(entry)
	if svc == nil {
		return nil
	}
	if known, ok := t[svc.InstanceName]; ok {
		for _, addr := range svc.Addresses {
			if !slices.Contains(known.Addresses, addr) {
				known.Addresses = append(known.Addresses, addr)
			}
		}
		return nil
	}
	t[svc.InstanceName] = svc
	return svc
}

// remove drops the entry's addresses and forgets instances left with none.
func (t gatewayTable) remove(entry *zeroconf.ServiceEntry) {
	known, ok := t[entry.Instance]
	if !ok {
		return
	}
	known.Addresses = removeAddresses(known.Addresses, entry)
	if len(known.Addresses) == 0 {
		delete(t, entry.Instance)
	}
}

func entryToGateway(entry *zeroconf.ServiceEntry) *GatewayService {
	if entry == nil {
		return nil
	}
	info, err := DecodeGatewayTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	return &GatewayService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    entryAddresses(entry),
		DeviceID:     info.DeviceID,
		ProductKey:   info.ProductKey,
		Version:      info.Version,
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range append(slices.Clone(entry.AddrIPv4), entry.AddrIPv6...) {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	gone := entryAddresses(entry)
	return slices.DeleteFunc(slices.Clone(addresses), func(addr string) bool {
		return slices.Contains(gone, addr)
	})
}

var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Browser    = (*MDNSBrowser)(nil)
)
