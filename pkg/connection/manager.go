package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Connection errors.
var (
	// ErrDeviceUnreachable is returned when discovery trials are exhausted.
	ErrDeviceUnreachable = errors.New("device offline or not found")

	// ErrDiscoveryInProgress is returned when Discover is called concurrently.
	ErrDiscoveryInProgress = errors.New("discovery already in progress")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active session.
	StateDisconnected State = iota

	// StateDiscovering indicates discovery or session setup is in progress.
	StateDiscovering

	// StateConnected indicates the device has reported its state.
	StateConnected
)

var stateNames = [...]string{"DISCONNECTED", "DISCOVERING", "CONNECTED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// FindFunc locates the device. It returns nil once the device was found.
type FindFunc func(ctx context.Context) error

// Manager tracks the connection state of one device and drives discovery.
type Manager struct {
	mu sync.RWMutex

	state  State
	policy RetryPolicy

	backoff *Backoff
	trials  int

	discovering bool

	// ready is closed when the state reaches Connected and replaced on
	// the next disconnect.
	ready chan struct{}

	onStateChange func(oldState, newState State)
	onRetry       func(trial int, delay time.Duration, err error)
}

// NewManager creates a manager with the given retry policy.
func NewManager(policy RetryPolicy) (*Manager, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		state:   StateDisconnected,
		policy:  policy,
		backoff: policy.backoff(),
		ready:   make(chan struct{}),
	}, nil
}

// Policy returns the retry policy.
func (m *Manager) Policy() RetryPolicy {
	return m.policy
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if the device has reported state.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected
}

// Trials returns the number of failed discovery trials counted so far.
func (m *Manager) Trials() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trials
}

// Discover calls find until it succeeds or the retry policy is exhausted.
//
// Every failure counts one trial. Once the counter reaches MaxTrials,
// Discover returns an error wrapping ErrDeviceUnreachable and the last
// discovery error. Between trials it waits the backoff delay. Cancelling ctx
// aborts the loop with ctx.Err().
//
// On success the state stays Discovering until MarkConnected or
// MarkDisconnected is called.
func (m *Manager) Discover(ctx context.Context, find FindFunc) error {
	m.mu.Lock()
	if m.discovering {
		m.mu.Unlock()
		return ErrDiscoveryInProgress
	}
	m.discovering = true
	if m.policy.ResetTrialsOnConnect {
		m.trials = 0
		m.backoff.Reset()
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.discovering = false
		m.mu.Unlock()
	}()

	m.setState(StateDiscovering)

	for {
		err := find(ctx)
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			m.MarkDisconnected()
			return ctxErr
		}

		m.mu.Lock()
		m.trials++
		trials := m.trials
		exhausted := trials >= m.policy.MaxTrials
		m.mu.Unlock()

		if exhausted {
			m.MarkDisconnected()
			return fmt.Errorf("%w after %d trials: %w", ErrDeviceUnreachable, trials, err)
		}

		delay := m.backoff.Next()

		m.mu.RLock()
		onRetry := m.onRetry
		m.mu.RUnlock()
		if onRetry != nil {
			onRetry(trials, delay, err)
		}

		if err := wait(ctx, delay); err != nil {
			m.MarkDisconnected()
			return err
		}
	}
}

// MarkConnected moves the state to Connected and releases WaitConnected
// callers. It returns true only for the call that performed the transition.
func (m *Manager) MarkConnected() bool {
	return m.setState(StateConnected)
}

// MarkDisconnected moves the state to Disconnected and re-arms the
// first-state signal for the next connection.
func (m *Manager) MarkDisconnected() {
	m.setState(StateDisconnected)
}

// setState performs a transition and reports whether the state changed.
// Leaving Connected re-arms ready; entering it fires ready.
func (m *Manager) setState(to State) bool {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return false
	}
	m.state = to
	switch {
	case to == StateConnected:
		m.backoff.Reset()
		close(m.ready)
	case from == StateConnected:
		m.ready = make(chan struct{})
	}
	fn := m.onStateChange
	m.mu.Unlock()

	if fn != nil {
		fn(from, to)
	}
	return true
}

// WaitConnected blocks until the state reaches Connected or ctx is done.
func (m *Manager) WaitConnected(ctx context.Context) error {
	m.mu.RLock()
	ready := m.ready
	m.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnRetry sets a callback invoked before every backoff wait.
func (m *Manager) OnRetry(fn func(trial int, delay time.Duration, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRetry = fn
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
