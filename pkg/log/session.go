package log

import (
	"time"

	"github.com/google/uuid"
)

// FileExtension is the conventional extension of session log files.
const FileExtension = ".dplog"

// Session stamps events with a session ID, the device ID and a timestamp
// before passing them to a Logger. A nil *Session discards everything, so
// components can hold one unconditionally.
type Session struct {
	logger   Logger
	id       string
	deviceID string
}

// NewSession starts a session for the device. It returns nil when logger is
// nil.
func NewSession(logger Logger, deviceID string) *Session {
	if logger == nil {
		return nil
	}
	return &Session{
		logger:   logger,
		id:       uuid.New().String(),
		deviceID: deviceID,
	}
}

// ID returns the session UUID. Empty for a nil session.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Logger returns the underlying logger, or nil.
func (s *Session) Logger() Logger {
	if s == nil {
		return nil
	}
	return s.logger
}

// Log stamps and records the event.
func (s *Session) Log(event Event) {
	if s == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		event.SessionID = s.id
	}
	if event.DeviceID == "" {
		event.DeviceID = s.deviceID
	}
	s.logger.Log(event)
}

// State records a state change.
func (s *Session) State(layer Layer, entity StateEntity, oldState, newState, reason string) {
	s.Log(Event{
		Layer:    layer,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error records an error.
func (s *Session) Error(layer Layer, err error, context string) {
	if err == nil {
		return
	}
	s.Log(Event{
		Layer:    layer,
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

// Compile-time interface satisfaction check.
var _ Logger = (*Session)(nil)
