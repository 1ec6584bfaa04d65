package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrTruncated is returned by Reader.Next when the file ends inside a
// record, typically because the writer crashed before flushing.
var ErrTruncated = errors.New("truncated log record")

// Filter selects events. Zero fields match everything.
type Filter struct {
	SessionID string
	DeviceID  string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// Kind matches message events by wire kind name. Events without a
	// message never match a non-empty Kind.
	Kind string
}

// Match reports whether event passes every criterion of f.
func (f Filter) Match(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID,
		f.DeviceID != "" && event.DeviceID != f.DeviceID,
		f.Direction != nil && event.Direction != *f.Direction,
		f.Layer != nil && event.Layer != *f.Layer,
		f.Category != nil && event.Category != *f.Category,
		f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	if f.Kind != "" {
		return event.Message != nil && event.Message.Kind == f.Kind
	}
	return true
}

// Reader streams events from a .dplog file.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	filter  Filter
	read    int
}

// NewReader opens path and returns every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and returns the events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{closer: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.decoder.Decode(&event)
		switch {
		case err == io.EOF:
			return Event{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Event{}, fmt.Errorf("%w after %d records", ErrTruncated, r.read)
		case err != nil:
			return Event{}, err
		}
		r.read++

		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.closer.Close()
}
