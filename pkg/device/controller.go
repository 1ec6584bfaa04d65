package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/log"
	"github.com/dpcontrol/dpcontrol-go/pkg/transport"
)

// Profile translates between a friendly state type S and raw DPs.
// Implementations are stateless.
type Profile[S any] interface {
	// Kind names the device type ("light", "plug", ...).
	Kind() string

	// Encode turns the fields set in partial into raw DP writes.
	Encode(partial S) (dps.Update, error)

	// Project merges the DPs it recognizes in u into current.
	Project(current S, u dps.Update) S
}

// StateHandler receives the friendly state after an update and the raw
// update that produced it.
type StateHandler[S any] func(state S, update dps.Update)

// Controller is the public contract for one device.
type Controller[S any] struct {
	identity  Identity
	transport transport.Transport
	profile   Profile[S]
	opts      options
	logger    *slog.Logger

	manager *connection.Manager
	acc     *Accumulator
	errs    chan error

	mu            sync.Mutex
	state         S
	generation    uint64
	connecting    bool
	unsubscribe   func()
	session       *log.Session
	stateHandlers []StateHandler[S]
	errorHandlers []func(error)
	connHandlers  []func(oldState, newState connection.State)
}

// New creates a controller for the device behind tr.
func New[S any](identity Identity, tr transport.Transport, profile Profile[S], opts ...Option) (*Controller[S], error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, errors.New("transport is required")
	}
	if profile == nil {
		return nil, errors.New("profile is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	manager, err := connection.NewManager(o.retryPolicy())
	if err != nil {
		return nil, err
	}

	c := &Controller[S]{
		identity:  identity,
		transport: tr,
		profile:   profile,
		opts:      o,
		logger:    o.debugLogger(identity.ID).With("kind", profile.Kind()),
		manager:   manager,
		errs:      make(chan error, errorBufferSize),
	}
	c.acc = NewAccumulator(c.onAccumulated)

	manager.OnStateChange(func(oldState, newState connection.State) {
		c.logger.Debug("connection state changed", "from", oldState, "to", newState)
		c.currentSession().State(log.LayerDevice, log.StateEntityDevice, oldState.String(), newState.String(), "")

		c.mu.Lock()
		handlers := slices.Clone(c.connHandlers)
		c.mu.Unlock()
		for _, h := range handlers {
			h(oldState, newState)
		}
	})
	manager.OnRetry(func(trial int, delay time.Duration, err error) {
		c.logger.Debug("device not found, retrying", "trial", trial, "delay", delay, "error", err)
		c.currentSession().State(log.LayerDevice, log.StateEntityDiscovery, "NOT_FOUND", "RETRY", err.Error())
	})

	return c, nil
}

// Identity returns the device identity.
func (c *Controller[S]) Identity() Identity {
	return c.identity
}

// Kind returns the profile's device kind.
func (c *Controller[S]) Kind() string {
	return c.profile.Kind()
}

// Label returns the debug label, or the device ID when none was set.
func (c *Controller[S]) Label() string {
	if c.opts.label != "" {
		return c.opts.label
	}
	return c.identity.ID
}

// abortTimeout bounds the disconnect of a session abandoned by Connect.
const abortTimeout = 2 * time.Second

// Connect discovers the device, subscribes to its events and connects the
// transport.
//
// Discovery is retried per the retry policy; when the trials are exhausted
// the error wraps ErrDeviceUnreachable. A failing transport connect is not
// retried and its error is returned as is. With WithWaitFirstState, Connect
// returns once the first state update arrived; if ctx ends first, the
// session is closed again and Connect may be retried.
func (c *Controller[S]) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil || c.connecting {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	session := log.NewSession(c.opts.sessionLogger, c.identity.ID)
	c.session = session
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	if sa, ok := c.transport.(transport.SessionAware); ok {
		sa.SetSession(session)
	}

	c.logger.Debug("connecting", "max_trials", c.manager.Policy().MaxTrials)
	if err := c.manager.Discover(ctx, c.transport.Find); err != nil {
		c.logger.Debug("discovery failed", "trials", c.manager.Trials(), "error", err)
		session.Error(log.LayerDevice, err, "discover")
		return err
	}

	// Subscribe before connecting so the initial refresh is not missed.
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.acc.Rearm()
	unsubscribe := c.transport.Subscribe(func(ev transport.Event) {
		c.handleEvent(gen, ev)
	})

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		c.logger.Debug("transport connect failed", "error", err)
		session.Error(log.LayerDevice, err, "connect")
		c.teardown(gen, "connect failed")
		return err
	}
	c.logger.Debug("transport connected")

	if c.opts.waitFirstState {
		if err := c.manager.WaitConnected(ctx); err != nil {
			// ctx is already done, so the session is closed on a fresh one.
			dctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
			_ = c.transport.Disconnect(dctx)
			cancel()
			session.Error(log.LayerDevice, err, "wait first state")
			c.teardown(gen, "wait cancelled")
			return fmt.Errorf("waiting for first state: %w", err)
		}
	}
	return nil
}

// Disconnect closes the transport session. The snapshot survives unless
// WithResetOnDisconnect was given.
func (c *Controller[S]) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	// The transport may deliver its disconnected event from inside this call,
	// so no controller lock is held here.
	err := c.transport.Disconnect(ctx)
	c.teardown(gen, "disconnect")
	if err != nil {
		terr := &TransportError{Op: "disconnect", Err: err}
		c.currentSession().Error(log.LayerDevice, err, "disconnect")
		return terr
	}
	return nil
}

// IsConnected reports whether the controller is connected.
func (c *Controller[S]) IsConnected() bool {
	return c.manager.IsConnected()
}

// State returns the connection state.
func (c *Controller[S]) State() connection.State {
	return c.manager.State()
}

// Trials returns the number of failed discovery trials counted so far.
func (c *Controller[S]) Trials() int {
	return c.manager.Trials()
}

// GetState returns the friendly projection of the known state.
func (c *Controller[S]) GetState() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RawState returns a copy of the raw DP snapshot.
func (c *Controller[S]) RawState() dps.Snapshot {
	return c.acc.Snapshot()
}

// SetState encodes partial through the profile and writes the resulting DPs.
func (c *Controller[S]) SetState(ctx context.Context, partial S) (transport.Ack, error) {
	raw, err := c.profile.Encode(partial)
	if err != nil {
		return transport.Ack{}, &SetStateError{Err: err}
	}
	return c.SetRaw(ctx, raw)
}

// SetRaw writes raw DPs in one request.
func (c *Controller[S]) SetRaw(ctx context.Context, u dps.Update) (transport.Ack, error) {
	if len(u) == 0 {
		return transport.Ack{}, &SetStateError{Err: ErrEmptyUpdate}
	}

	c.logger.Debug("set", "dps", u)
	ack, err := c.transport.Set(ctx, transport.SetRequest{Multiple: true, Data: u})
	if err != nil {
		c.logger.Debug("set failed", "dps", u.Keys(), "error", err)
		return ack, &SetStateError{Data: u, Err: err}
	}
	return ack, nil
}

// Refresh asks the device for a full DP refresh. The result arrives as a
// regular state update.
func (c *Controller[S]) Refresh(ctx context.Context) error {
	if err := c.transport.Refresh(ctx); err != nil {
		return &TransportError{Op: "refresh", Err: err}
	}
	return nil
}

// Errors returns the channel of runtime transport errors. It is never closed.
func (c *Controller[S]) Errors() <-chan error {
	return c.errs
}

// OnError registers a callback for runtime transport errors.
func (c *Controller[S]) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorHandlers = append(c.errorHandlers, fn)
}

// OnStateUpdate registers a callback invoked after every state update.
func (c *Controller[S]) OnStateUpdate(fn StateHandler[S]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

// OnConnectionChange registers a callback for connection state changes.
func (c *Controller[S]) OnConnectionChange(fn func(oldState, newState connection.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connHandlers = append(c.connHandlers, fn)
}

// SessionID returns the ID of the current protocol log session, if any.
func (c *Controller[S]) SessionID() string {
	return c.currentSession().ID()
}

func (c *Controller[S]) currentSession() *log.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// handleEvent runs on the transport's delivery goroutine.
func (c *Controller[S]) handleEvent(gen uint64, ev transport.Event) {
	c.mu.Lock()
	stale := gen != c.generation || c.unsubscribe == nil
	c.mu.Unlock()
	if stale {
		return
	}

	switch ev.Type {
	case transport.EventData, transport.EventDPRefresh:
		c.acc.OnUpdate(ev.DPS)

	case transport.EventDisconnected:
		c.logger.Debug("device disconnected")
		c.teardown(gen, "transport disconnected")

	case transport.EventError:
		c.report(&TransportError{Op: "session", Err: ev.Err})
	}
}

// onAccumulated is the accumulator's notify hook.
func (c *Controller[S]) onAccumulated(u dps.Update, first bool) {
	c.mu.Lock()
	c.state = c.profile.Project(c.state, u)
	state := c.state
	session := c.session
	handlers := slices.Clone(c.stateHandlers)
	c.mu.Unlock()

	session.Log(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerDevice,
		Category:  log.CategoryDP,
		DPUpdate:  &log.DPUpdateEvent{DPS: u, First: first},
	})
	c.logger.Debug("state update", "dps", u, "first", first)

	if first {
		c.manager.MarkConnected()
	}
	for _, h := range handlers {
		h(state, u)
	}
}

func (c *Controller[S]) report(err error) {
	c.logger.Debug("transport error", "error", err)
	c.currentSession().Error(log.LayerDevice, err, "session")

	c.mu.Lock()
	handlers := slices.Clone(c.errorHandlers)
	c.mu.Unlock()

	select {
	case c.errs <- err:
	default:
		c.logger.Debug("error channel full, dropping", "error", err)
	}
	for _, h := range handlers {
		h(err)
	}
}

// teardown ends the connection cycle gen. It is idempotent.
func (c *Controller[S]) teardown(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.generation || c.unsubscribe == nil {
		c.mu.Unlock()
		return
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	if c.opts.resetOnDisconnect {
		c.acc.Reset()
		var zero S
		c.state = zero
	}
	c.mu.Unlock()

	unsubscribe()
	c.manager.MarkDisconnected()
	c.logger.Debug("connection closed", "reason", reason)
}
