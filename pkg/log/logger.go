package log

// Logger receives session events. Log is called from transport and device
// goroutines, so implementations must be safe for concurrent use and should
// not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. A nil Logger in a Session behaves the same.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
