package log

// MultiLogger fans events out to several loggers in order, for example a
// FileLogger and a SlogAdapter during debugging.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers, skipping nil entries.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{loggers: make([]Logger, 0, len(loggers))}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Tee returns the cheapest Logger covering loggers: nil when all are nil,
// the single logger when only one is set, a MultiLogger otherwise.
func Tee(loggers ...Logger) Logger {
	m := NewMultiLogger(loggers...)
	switch m.Len() {
	case 0:
		return nil
	case 1:
		return m.loggers[0]
	default:
		return m
	}
}

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Len returns the number of combined loggers.
func (m *MultiLogger) Len() int {
	return len(m.loggers)
}

var _ Logger = (*MultiLogger)(nil)
