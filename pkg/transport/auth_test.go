package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpcontrol/dpcontrol-go/pkg/wire"
)

func TestDeriveTag(t *testing.T) {
	nonce, err := NewNonce()
	require.NoError(t, err)
	require.Len(t, nonce, NonceSize)

	a, err := DeriveTag("secret", "bf01", nonce)
	require.NoError(t, err)
	b, err := DeriveTag("secret", "bf01", nonce)
	require.NoError(t, err)
	assert.Equal(t, a, b, "tag must be deterministic")
	assert.Len(t, a, TagSize)

	other, _ := DeriveTag("secret", "bf02", nonce)
	assert.NotEqual(t, a, other, "tag must bind the device ID")

	otherKey, _ := DeriveTag("wrong", "bf01", nonce)
	assert.NotEqual(t, a, otherKey, "tag must depend on the key")
}

func TestKeyAuthenticator(t *testing.T) {
	auth := KeyAuthenticator(map[string]string{"bf01": "secret"})
	nonce, _ := NewNonce()
	tag, _ := DeriveTag("secret", "bf01", nonce)

	assert.NoError(t, auth(&wire.Hello{DeviceID: "bf01", Nonce: nonce, Tag: tag}))

	err := auth(&wire.Hello{DeviceID: "bf01", Nonce: nonce, Tag: []byte("bad")})
	assert.True(t, errors.Is(err, ErrRejected), "bad tag: %v", err)

	err = auth(&wire.Hello{DeviceID: "unknown", Nonce: nonce, Tag: tag})
	assert.True(t, errors.Is(err, ErrRejected), "unknown device: %v", err)
}
