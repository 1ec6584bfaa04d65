package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

// ConnConfig configures a framed gateway session.
type ConnConfig struct {
	// MaxMessageSize is the maximum frame payload (default: 16KB).
	MaxMessageSize uint32

	// KeepAlive configures pings. Ignored when DisableKeepAlive is set.
	KeepAlive KeepAliveConfig

	// DisableKeepAlive turns off client pings. Pings from the peer are
	// still answered.
	DisableKeepAlive bool

	// WriteTimeout bounds each frame write (0 = no timeout).
	WriteTimeout time.Duration
}

// DefaultConnConfig returns the default session configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		MaxMessageSize: DefaultMaxMessageSize,
		KeepAlive:      DefaultKeepAliveConfig(),
		WriteTimeout:   10 * time.Second,
	}
}

// Conn is a framed CBOR session over a net.Conn, shared by the gateway
// client and server.
type Conn struct {
	config  ConnConfig
	conn    net.Conn
	framer  *Framer
	session *log.Session

	keepAlive *KeepAlive

	onMessage func(wire.Message)
	onClose   func(err error)

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newConn(nc net.Conn, config ConnConfig, session *log.Session) *Conn {
	framer := NewFramer(nc, config.MaxMessageSize)
	if session != nil {
		framer.SetLogger(session)
	}
	return &Conn{
		config:  config,
		conn:    nc,
		framer:  framer,
		session: session,
		closed:  make(chan struct{}),
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Done is closed when the session ends.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Err returns the reason the session ended, nil for a clean close.
func (c *Conn) Err() error {
	select {
	case <-c.closed:
		return c.closeErr
	default:
		return nil
	}
}

// Send encodes and writes a message.
func (c *Conn) Send(m wire.Message) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	data, err := wire.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.MessageKind(), err)
	}

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.framer.WriteFrame(data); err != nil {
		return err
	}

	c.logMessage(m, log.DirectionOut)
	return nil
}

// receive reads one message with a timeout. It is only used before start,
// during the hello exchange.
func (c *Conn) receive(timeout time.Duration) (wire.Message, error) {
	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}

	data, err := c.framer.ReadFrame()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrHandshakeTimeout
		}
		return nil, err
	}

	m, err := wire.Decode(data)
	if err != nil {
		return nil, err
	}
	c.logMessage(m, log.DirectionIn)
	return m, nil
}

// start runs the read loop and, unless disabled, the keep-alive. onClose is
// called exactly once, from the read loop, when the session ends.
func (c *Conn) start(ctx context.Context, onMessage func(wire.Message), onClose func(error)) {
	c.onMessage = onMessage
	c.onClose = onClose

	if !c.config.DisableKeepAlive {
		c.keepAlive = NewKeepAlive(c.config.KeepAlive,
			func(seq uint32) error {
				c.logControl(log.ControlMsgPing, seq, log.DirectionOut)
				return c.Send(&wire.Control{Type: wire.ControlPing, Sequence: seq})
			},
			func() {
				c.finish(ErrKeepAliveTimeout)
			},
		)
		c.keepAlive.Start(ctx)
	}

	go c.readLoop()
}

// Close sends a close control message and ends the session.
func (c *Conn) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	c.logControl(log.ControlMsgClose, 0, log.DirectionOut)
	_ = c.Send(&wire.Control{Type: wire.ControlClose})
	c.finish(nil)
	return nil
}

func (c *Conn) finish(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		if c.keepAlive != nil {
			c.keepAlive.Stop()
		}
		_ = c.conn.Close()
		close(c.closed)

		if err != nil {
			c.session.Error(log.LayerTransport, err, "session")
		}
		c.session.State(log.LayerTransport, log.StateEntityConnection, "CONNECTED", "DISCONNECTED", reason(err))
	})
}

// readLoop is the only caller of onMessage and onClose, so a consumer never
// sees a message after the close notification.
func (c *Conn) readLoop() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c.closeErr)
		}
	}()

	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				c.finish(nil)
			} else {
				c.finish(fmt.Errorf("read error: %w", err))
			}
			return
		}

		m, err := wire.Decode(data)
		if err != nil {
			c.session.Error(log.LayerWire, err, "decode")
			continue
		}

		if ctrl, ok := m.(*wire.Control); ok {
			c.handleControl(ctrl)
			continue
		}

		c.logMessage(m, log.DirectionIn)
		if c.onMessage != nil {
			c.onMessage(m)
		}
	}
}

func (c *Conn) handleControl(msg *wire.Control) {
	switch msg.Type {
	case wire.ControlPing:
		c.logControl(log.ControlMsgPing, msg.Sequence, log.DirectionIn)
		c.logControl(log.ControlMsgPong, msg.Sequence, log.DirectionOut)
		_ = c.Send(&wire.Control{Type: wire.ControlPong, Sequence: msg.Sequence})

	case wire.ControlPong:
		c.logControl(log.ControlMsgPong, msg.Sequence, log.DirectionIn)
		if c.keepAlive != nil {
			c.keepAlive.PongReceived(msg.Sequence)
		}

	case wire.ControlClose:
		c.logControl(log.ControlMsgClose, 0, log.DirectionIn)
		c.finish(nil)
	}
}

func (c *Conn) logMessage(m wire.Message, direction log.Direction) {
	if c.session == nil {
		return
	}
	c.session.Log(log.Event{
		Direction:  direction,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: c.conn.RemoteAddr().String(),
		Message:    messageEvent(m),
	})
}

func (c *Conn) logControl(t log.ControlMsgType, seq uint32, direction log.Direction) {
	if c.session == nil {
		return
	}
	c.session.Log(log.Event{
		Direction:  direction,
		Layer:      log.LayerTransport,
		Category:   log.CategoryControl,
		ControlMsg: &log.ControlMsgEvent{Type: t, Sequence: seq},
	})
}

func messageEvent(m wire.Message) *log.MessageEvent {
	ev := &log.MessageEvent{Kind: m.MessageKind().String()}
	switch msg := m.(type) {
	case *wire.HelloAck:
		ev.OK = &msg.Accepted
		ev.Error = msg.Reason
	case *wire.SetRequest:
		ev.RequestID = msg.RequestID
		ev.DPS = msg.DPS
	case *wire.SetAck:
		ev.RequestID = msg.RequestID
		ev.OK = &msg.OK
		ev.Error = msg.Error
		ev.DPS = msg.DPS
	case *wire.Data:
		ev.DPS = msg.DPS
	}
	return ev
}

func reason(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}
