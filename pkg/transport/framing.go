package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dpcontrol/dpcontrol-go/pkg/log"
)

// A frame is a big-endian uint32 payload length followed by the payload.
const (
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds a frame payload. DP messages are a few
	// hundred bytes, so 16 KiB only trips on a broken peer.
	DefaultMaxMessageSize = 16 << 10

	// MaxLogFrameDataSize bounds the bytes copied into a frame log event.
	MaxLogFrameDataSize = 1024
)

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

type frameLimit uint32

func newFrameLimit(maxSize uint32) frameLimit {
	if maxSize == 0 {
		return DefaultMaxMessageSize
	}
	return frameLimit(maxSize)
}

func (l frameLimit) check(n int) error {
	switch {
	case n == 0:
		return ErrMessageEmpty
	case n > int(l):
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, l)
	}
	return nil
}

// FrameWriter writes frames. It is safe for concurrent use.
type FrameWriter struct {
	mu     sync.Mutex
	w      io.Writer
	limit  frameLimit
	logger log.Logger
}

// NewFrameWriter creates a frame writer. maxSize 0 selects
// DefaultMaxMessageSize.
func NewFrameWriter(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{w: w, limit: newFrameLimit(maxSize)}
}

// SetLogger records every written frame to logger. Nil disables it.
func (fw *FrameWriter) SetLogger(logger log.Logger) {
	fw.logger = logger
}

// WriteFrame writes data as one frame.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if err := fw.limit.check(len(data)); err != nil {
		return err
	}
	// One Write call per frame; the socket is shared by several senders.
	frame := binary.BigEndian.AppendUint32(make([]byte, 0, LengthPrefixSize+len(data)), uint32(len(data)))
	frame = append(frame, data...)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if fw.logger != nil {
		fw.logger.Log(frameEvent(data, log.DirectionOut))
	}
	return nil
}

// FrameReader reads frames. It is not safe for concurrent use.
type FrameReader struct {
	r      io.Reader
	limit  frameLimit
	prefix [LengthPrefixSize]byte
	logger log.Logger
}

// NewFrameReader creates a frame reader. maxSize 0 selects
// DefaultMaxMessageSize.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{r: r, limit: newFrameLimit(maxSize)}
}

// SetLogger records every read frame to logger. Nil disables it.
func (fr *FrameReader) SetLogger(logger log.Logger) {
	fr.logger = logger
}

// ReadFrame returns the next payload. It returns io.EOF only when the
// stream ends cleanly between frames; a stream ending inside a frame is
// ErrFrameTruncated.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if err := fr.readFull(fr.prefix[:], true); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(fr.prefix[:])
	if err := fr.limit.check(int(n)); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if err := fr.readFull(payload, false); err != nil {
		return nil, err
	}
	if fr.logger != nil {
		fr.logger.Log(frameEvent(payload, log.DirectionIn))
	}
	return payload, nil
}

func (fr *FrameReader) readFull(buf []byte, atBoundary bool) error {
	_, err := io.ReadFull(fr.r, buf)
	switch {
	case err == nil:
		return nil
	case err == io.EOF && atBoundary:
		return io.EOF
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF):
		return ErrFrameTruncated
	default:
		return fmt.Errorf("read frame: %w", err)
	}
}

// Framer reads and writes frames on one connection.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a framer over rw.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw, maxSize),
		FrameWriter: NewFrameWriter(rw, maxSize),
	}
}

// SetLogger records frames in both directions.
func (f *Framer) SetLogger(logger log.Logger) {
	f.FrameReader.SetLogger(logger)
	f.FrameWriter.SetLogger(logger)
}

func frameEvent(payload []byte, direction log.Direction) log.Event {
	kept := payload[:min(len(payload), MaxLogFrameDataSize)]
	return log.Event{
		Timestamp: time.Now(),
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      LengthPrefixSize + len(payload),
			Data:      kept,
			Truncated: len(kept) < len(payload),
		},
	}
}
