package transport

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

// Hello authentication constants.
const (
	// NonceSize is the size of the client nonce in Hello.
	NonceSize = 16

	// TagSize is the size of the HKDF tag in Hello.
	TagSize = 32

	helloInfo = "dpgw-hello-v1"
)

// NewNonce returns a random Hello nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// DeriveTag derives the Hello tag from the device key. The nonce is the
// HKDF salt and the device ID is bound into the info string.
func DeriveTag(deviceKey, deviceID string, nonce []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(deviceKey), nonce, []byte(helloInfo+":"+deviceID))
	tag := make([]byte, TagSize)
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, fmt.Errorf("failed to derive hello tag: %w", err)
	}
	return tag, nil
}

// VerifyHello checks the Hello tag against the device key.
func VerifyHello(hello *wire.Hello, deviceKey string) error {
	want, err := DeriveTag(deviceKey, hello.DeviceID, hello.Nonce)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, hello.Tag) {
		return fmt.Errorf("%w: bad tag for device %s", ErrRejected, hello.DeviceID)
	}
	return nil
}

// KeyAuthenticator returns a Hello check for a fixed set of device keys.
func KeyAuthenticator(keys map[string]string) func(*wire.Hello) error {
	return func(hello *wire.Hello) error {
		key, ok := keys[hello.DeviceID]
		if !ok {
			return fmt.Errorf("%w: unknown device %s", ErrRejected, hello.DeviceID)
		}
		return VerifyHello(hello, key)
	}
}
