package device

import (
	"errors"
	"fmt"
)

// ErrInvalidIdentity is returned for an identity with an empty ID or key.
var ErrInvalidIdentity = errors.New("invalid device identity")

// Identity identifies a physical device to the transport.
type Identity struct {
	ID  string
	Key string
}

// Validate checks that both fields are set.
func (i Identity) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidIdentity)
	}
	if i.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidIdentity)
	}
	return nil
}

// String returns the device ID.
func (i Identity) String() string {
	return i.ID
}
