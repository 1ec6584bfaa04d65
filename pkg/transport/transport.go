package transport

import (
	"context"
	"errors"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

// Transport errors.
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrRejected          = errors.New("session rejected")
	ErrSetFailed         = errors.New("set failed")
	ErrKeepAliveTimeout  = errors.New("keep-alive timeout")
	ErrHandshakeTimeout  = errors.New("handshake timeout")
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// EventType identifies a transport event.
type EventType uint8

const (
	// EventData carries an incremental DP update.
	EventData EventType = iota + 1

	// EventDPRefresh carries a full DP refresh.
	EventDPRefresh

	// EventDisconnected reports the end of the session.
	EventDisconnected

	// EventError reports a runtime failure. It is usually followed by
	// EventDisconnected.
	EventError
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventData:
		return "data"
	case EventDPRefresh:
		return "dp-refresh"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a Transport. DPS is set for data and dp-refresh, Err
// for error.
type Event struct {
	Type EventType
	DPS  dps.Update
	Err  error
}

// EventHandler receives transport events. Handlers run on the transport's
// delivery goroutine, one event at a time, in arrival order.
type EventHandler func(Event)

// SetRequest is a DP write.
type SetRequest struct {
	// Multiple marks a write of several DPs at once.
	Multiple bool

	// Data holds the raw DP values to write.
	Data dps.Update
}

// Ack is the transport's acknowledgement of a SetRequest.
type Ack struct {
	RequestID string
	// Applied holds the values the device reports as applied, if any.
	Applied   dps.Update
	RoundTrip time.Duration
}

// Transport is the device transport contract.
type Transport interface {
	// Find locates the device. It returns an error if the device cannot be
	// found right now; callers retry.
	Find(ctx context.Context) error

	// Connect opens a session to a found device.
	Connect(ctx context.Context) error

	// Disconnect closes the session. Disconnecting an idle transport is a
	// no-op.
	Disconnect(ctx context.Context) error

	// Set writes DPs and waits for the acknowledgement.
	Set(ctx context.Context, req SetRequest) (Ack, error)

	// Refresh asks the device for a full DP refresh. The answer arrives as
	// an EventDPRefresh.
	Refresh(ctx context.Context) error

	// Subscribe registers a handler and returns a function that removes it.
	Subscribe(h EventHandler) (unsubscribe func())
}

// SessionAware is implemented by transports that can write to the caller's
// session log, so transport and controller events share one session ID.
type SessionAware interface {
	SetSession(session *log.Session)
}
