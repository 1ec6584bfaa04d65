package device

import (
	"errors"
	"fmt"

	"github.com/dpcontrol/dpcontrol-go/pkg/connection"
	"github.com/dpcontrol/dpcontrol-go/pkg/dps"
)

// Controller errors.
var (
	// ErrDeviceUnreachable is returned by Connect when discovery retries are
	// exhausted.
	ErrDeviceUnreachable = connection.ErrDeviceUnreachable

	ErrAlreadyConnected = errors.New("device already connected")
	ErrEmptyUpdate      = errors.New("no data points to write")
)

// TransportError is a transport failure after the session was established.
type TransportError struct {
	// Op is the operation or phase that failed ("session", "disconnect").
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SetStateError is a failed DP write.
type SetStateError struct {
	// Data holds the raw DPs that were being written, if encoding got that far.
	Data dps.Update
	Err  error
}

func (e *SetStateError) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("set state: %v", e.Err)
	}
	return fmt.Sprintf("set state %v: %v", e.Data.Keys(), e.Err)
}

func (e *SetStateError) Unwrap() error {
	return e.Err
}
