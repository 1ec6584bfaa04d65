package log

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a .dplog file. Records are CBOR items written
// back to back, so a crash loses at most the buffered tail.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	enc     *cbor.Encoder
	written int
	dropped int
	closed  bool
}

// NewFileLogger opens path for appending, creating the file and its
// directory when missing.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileLogger{
		path: path,
		file: f,
		buf:  buf,
		enc:  NewEncoder(buf),
	}, nil
}

// Path returns the file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Log encodes event. State changes and errors are flushed immediately so
// the reason for a lost connection reaches the disk. Events logged after
// Close are dropped silently.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.enc.Encode(event); err != nil {
		l.dropped++
		return
	}
	l.written++
	if event.Category == CategoryState || event.Category == CategoryError {
		_ = l.buf.Flush()
	}
}

// Flush writes buffered events to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Counts returns the number of events written and the number dropped
// because they could not be encoded.
func (l *FileLogger) Counts() (written, dropped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written, l.dropped
}

// Close flushes and closes the file. Repeated calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.buf.Flush(), l.file.Close())
}

var _ Logger = (*FileLogger)(nil)
