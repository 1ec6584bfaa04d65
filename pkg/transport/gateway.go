package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

// Gateway defaults.
const (
	DefaultBrowseTimeout    = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultSetTimeout       = 5 * time.Second

	// eventQueueSize bounds the events buffered between the read loop and
	// the delivery goroutine.
	eventQueueSize = 64
)

// Resolver maps a device ID to a gateway address (host:port).
// Implemented by discovery.MDNSBrowser.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (string, error)
}

// GatewayConfig configures a GatewayTransport.
type GatewayConfig struct {
	// DeviceID and DeviceKey identify the device. Both are required.
	DeviceID  string
	DeviceKey string

	// Address is a static gateway address. When set, Find only checks that
	// the address accepts connections and Resolver is not used.
	Address string

	// Resolver finds the gateway when Address is empty.
	Resolver Resolver

	// BrowseTimeout bounds one Find call (default: 5s).
	BrowseTimeout time.Duration

	// HandshakeTimeout bounds the hello exchange (default: 5s).
	HandshakeTimeout time.Duration

	// SetTimeout bounds the wait for a set acknowledgement when the caller's
	// context has no deadline (default: 5s).
	SetTimeout time.Duration

	// RefreshOnConnect requests a full refresh right after the hello, so the
	// first state arrives without the caller asking.
	RefreshOnConnect bool

	// Conn configures the framed session.
	Conn ConnConfig

	// Logger receives operational debug output. Nil means silent.
	Logger *slog.Logger
}

// DefaultGatewayConfig returns a configuration with defaults for the device.
func DefaultGatewayConfig(deviceID, deviceKey string) GatewayConfig {
	return GatewayConfig{
		DeviceID:         deviceID,
		DeviceKey:        deviceKey,
		BrowseTimeout:    DefaultBrowseTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		SetTimeout:       DefaultSetTimeout,
		RefreshOnConnect: true,
		Conn:             DefaultConnConfig(),
	}
}

// GatewayTransport is the reference Transport. It reaches the device through
// a local DP gateway over a framed CBOR session.
type GatewayTransport struct {
	config GatewayConfig
	logger *slog.Logger
	events Emitter

	mu      sync.Mutex
	address string
	conn    *Conn
	session *log.Session
	pending map[string]chan *wire.SetAck

	queue   chan Event
	deliver sync.WaitGroup
}

// NewGatewayTransport creates a transport for one device.
func NewGatewayTransport(config GatewayConfig) (*GatewayTransport, error) {
	if config.DeviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}
	if config.Address == "" && config.Resolver == nil {
		return nil, fmt.Errorf("either Address or Resolver is required")
	}
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.SetTimeout <= 0 {
		config.SetTimeout = DefaultSetTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &GatewayTransport{
		config:  config,
		logger:  logger.With("device", config.DeviceID),
		pending: make(map[string]chan *wire.SetAck),
	}, nil
}

// SetSession directs session logging to s for subsequent connections.
func (t *GatewayTransport) SetSession(s *log.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = s
}

// Address returns the gateway address found by the last successful Find.
func (t *GatewayTransport) Address() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.address
}

// Find locates the gateway serving the device.
func (t *GatewayTransport) Find(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.BrowseTimeout)
	defer cancel()

	var addr string
	if t.config.Address != "" {
		var d net.Dialer
		probe, err := d.DialContext(ctx, "tcp", t.config.Address)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, t.config.Address, err)
		}
		_ = probe.Close()
		addr = t.config.Address
	} else {
		resolved, err := t.config.Resolver.Resolve(ctx, t.config.DeviceID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
		}
		addr = resolved
	}

	t.mu.Lock()
	t.address = addr
	t.mu.Unlock()

	t.logger.Debug("device found", "address", addr)
	return nil
}

// Connect dials the gateway, performs the hello exchange and starts the
// session.
func (t *GatewayTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	addr := t.address
	session := t.session
	t.mu.Unlock()

	if addr == "" {
		return fmt.Errorf("%w: call Find before Connect", ErrDeviceNotFound)
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn := newConn(nc, t.config.Conn, session)
	if err := t.handshake(conn); err != nil {
		_ = nc.Close()
		return err
	}

	// The refresh goes out before the session is published, so a failed
	// write leaves nothing running. Its answer waits in the socket for the
	// read loop.
	if t.config.RefreshOnConnect {
		if err := conn.Send(&wire.RefreshRequest{}); err != nil {
			_ = nc.Close()
			return fmt.Errorf("initial refresh failed: %w", err)
		}
	}

	queue := make(chan Event, eventQueueSize)

	t.mu.Lock()
	t.conn = conn
	t.queue = queue
	t.mu.Unlock()

	t.deliver.Add(1)
	go t.deliverLoop(queue)

	session.State(log.LayerTransport, log.StateEntityConnection, "DISCONNECTED", "CONNECTED", addr)
	t.logger.Debug("session established", "address", addr)

	// The session outlives the Connect call, so it gets its own context.
	conn.start(context.Background(), t.handleMessage, func(err error) { t.handleClose(conn, queue, err) })
	return nil
}

func (t *GatewayTransport) handshake(conn *Conn) error {
	nonce, err := NewNonce()
	if err != nil {
		return err
	}
	tag, err := DeriveTag(t.config.DeviceKey, t.config.DeviceID, nonce)
	if err != nil {
		return err
	}

	if err := conn.Send(&wire.Hello{
		DeviceID: t.config.DeviceID,
		Nonce:    nonce,
		Tag:      tag,
		Version:  wire.ProtocolVersion,
	}); err != nil {
		return fmt.Errorf("hello failed: %w", err)
	}

	m, err := conn.receive(t.config.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("hello failed: %w", err)
	}
	ack, ok := m.(*wire.HelloAck)
	if !ok {
		return fmt.Errorf("%w: %s during hello", ErrUnexpectedMessage, m.MessageKind())
	}
	if !ack.Accepted {
		return fmt.Errorf("%w: %s", ErrRejected, ack.Reason)
	}
	return nil
}

// Disconnect closes the session and returns once subscribers received
// EventDisconnected. It must not be called from an event handler.
func (t *GatewayTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return err
	}

	// Wait until the disconnected event was delivered.
	done := make(chan struct{})
	go func() {
		t.deliver.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Set writes DPs and waits for the gateway's acknowledgement.
func (t *GatewayTransport) Set(ctx context.Context, req SetRequest) (Ack, error) {
	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return Ack{}, ErrNotConnected
	}
	id := uuid.New().String()
	ch := make(chan *wire.SetAck, 1)
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.SetTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := conn.Send(&wire.SetRequest{
		RequestID: id,
		Multiple:  req.Multiple,
		DPS:       req.Data,
	}); err != nil {
		return Ack{}, err
	}

	select {
	case ack := <-ch:
		result := Ack{RequestID: id, Applied: ack.DPS, RoundTrip: time.Since(start)}
		if !ack.OK {
			return result, fmt.Errorf("%w: %s", ErrSetFailed, ack.Error)
		}
		t.logger.Debug("set acknowledged", "request", id, "round_trip", result.RoundTrip)
		return result, nil
	case <-conn.Done():
		if err := conn.Err(); err != nil {
			return Ack{}, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		return Ack{}, ErrConnectionClosed
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

// Refresh asks the gateway for a full DP refresh.
func (t *GatewayTransport) Refresh(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return conn.Send(&wire.RefreshRequest{})
}

// Subscribe registers an event handler.
func (t *GatewayTransport) Subscribe(h EventHandler) func() {
	return t.events.Subscribe(h)
}

// handleMessage runs on the read loop.
func (t *GatewayTransport) handleMessage(m wire.Message) {
	switch msg := m.(type) {
	case *wire.SetAck:
		t.mu.Lock()
		ch, ok := t.pending[msg.RequestID]
		t.mu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		} else {
			t.logger.Debug("ack for unknown request", "request", msg.RequestID)
		}

	case *wire.Data:
		ev := Event{Type: EventData, DPS: msg.DPS}
		if msg.Refresh {
			ev.Type = EventDPRefresh
		}
		t.enqueue(ev)

	default:
		t.logger.Debug("ignoring message", "kind", m.MessageKind())
	}
}

func (t *GatewayTransport) handleClose(conn *Conn, queue chan Event, err error) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
		t.queue = nil
	}
	t.mu.Unlock()

	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		t.logger.Debug("session failed", "error", err)
		queue <- Event{Type: EventError, Err: err}
	}
	queue <- Event{Type: EventDisconnected}
	close(queue)
}

func (t *GatewayTransport) enqueue(ev Event) {
	t.mu.Lock()
	queue := t.queue
	t.mu.Unlock()
	if queue != nil {
		queue <- ev
	}
}

func (t *GatewayTransport) deliverLoop(queue <-chan Event) {
	defer t.deliver.Done()
	for ev := range queue {
		t.events.Emit(ev)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Transport    = (*GatewayTransport)(nil)
	_ SessionAware = (*GatewayTransport)(nil)
)
