package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

// DefaultPort is the default gateway port.
const DefaultPort = 6668

// ServerConfig configures a gateway Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":6668" or "127.0.0.1:0").
	Address string

	// Authenticate checks a client Hello. Nil accepts every client.
	Authenticate func(hello *wire.Hello) error

	// HandshakeTimeout bounds the wait for the client Hello (default: 5s).
	HandshakeTimeout time.Duration

	// Conn configures accepted sessions. Keep-alive pings are the client's
	// job, so they are always disabled on the server side.
	Conn ConnConfig

	// Logger receives operational debug output. Nil means silent.
	Logger *slog.Logger

	// SessionLogger receives session events for every accepted client.
	SessionLogger log.Logger

	// OnConnect is called after a client completed the hello exchange.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a session ends.
	OnDisconnect func(conn *ServerConn, err error)

	// OnMessage is called for every non-control message.
	OnMessage func(conn *ServerConn, msg wire.Message)
}

// Server accepts gateway sessions.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a gateway server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	config.Conn.DisableKeepAlive = true

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		config: config,
		logger: logger,
		conns:  make(map[*ServerConn]struct{}),
	}
}

// Start listens on Address. ctx bounds the lifetime of every session.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)
	s.wg.Go(s.acceptLoop)

	s.logger.Debug("gateway listening", "address", listener.Addr().String())
	return nil
}

// Stop closes the listener and every session and waits for their
// handlers to return.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	_ = s.listener.Close()
	for _, c := range s.sessions() {
		_ = c.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of active sessions.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// Broadcast sends m to every session. Failed sends do not stop the others.
func (s *Server) Broadcast(m wire.Message) error {
	var errs []error
	for _, c := range s.sessions() {
		if err := c.Send(m); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", c.id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) sessions() []*ServerConn {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return slices.Collect(maps.Keys(s.conns))
}

func (s *Server) track(c *ServerConn, active bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if active {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) acceptLoop() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Debug("accept failed", "error", err)
			continue
		}
		s.wg.Go(func() { s.serve(nc) })
	}
}

// handshake reads the client Hello, authenticates it and answers with a
// HelloAck. The connection is closed on failure.
func (s *Server) handshake(nc net.Conn) (*ServerConn, error) {
	conn := newConn(nc, s.config.Conn, nil)
	fail := func(err error) (*ServerConn, error) {
		_ = nc.Close()
		return nil, err
	}

	m, err := conn.receive(s.config.HandshakeTimeout)
	if err != nil {
		return fail(fmt.Errorf("read hello: %w", err))
	}
	hello, ok := m.(*wire.Hello)
	if !ok {
		return fail(fmt.Errorf("%w: got %s before hello", ErrUnexpectedMessage, m.MessageKind()))
	}
	if s.config.Authenticate != nil {
		if err := s.config.Authenticate(hello); err != nil {
			_ = conn.Send(&wire.HelloAck{Accepted: false, Reason: err.Error()})
			return fail(err)
		}
	}

	if session := log.NewSession(s.config.SessionLogger, hello.DeviceID); session != nil {
		conn.session = session
		conn.framer.SetLogger(session)
	}
	if err := conn.Send(&wire.HelloAck{Accepted: true}); err != nil {
		return fail(err)
	}
	return &ServerConn{Conn: conn, id: uuid.NewString(), deviceID: hello.DeviceID}, nil
}

func (s *Server) serve(nc net.Conn) {
	remote := nc.RemoteAddr().String()
	sconn, err := s.handshake(nc)
	if err != nil {
		s.logger.Debug("handshake failed", "remote", remote, "error", err)
		return
	}

	s.track(sconn, true)
	sconn.session.State(log.LayerTransport, log.StateEntityConnection, "DISCONNECTED", "CONNECTED", remote)
	s.logger.Debug("session accepted", "device", sconn.deviceID, "conn", sconn.id)
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	closed := make(chan error, 1)
	sconn.start(s.ctx,
		func(m wire.Message) {
			if s.config.OnMessage != nil {
				s.config.OnMessage(sconn, m)
			}
		},
		func(err error) { closed <- err },
	)

	var closeErr error
	select {
	case closeErr = <-closed:
	case <-s.ctx.Done():
		_ = sconn.Close()
		closeErr = <-closed
	}

	s.track(sconn, false)
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn, closeErr)
	}
}

// ServerConn is an accepted gateway session.
type ServerConn struct {
	*Conn
	id       string
	deviceID string
}

// ID returns the session's unique identifier.
func (c *ServerConn) ID() string { return c.id }

// DeviceID returns the device ID the client announced in its Hello.
func (c *ServerConn) DeviceID() string { return c.deviceID }
