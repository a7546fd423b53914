package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestAESEncryptorRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptorFromHex(testKey)
	require.NoError(t, err)

	sealed, err := enc.EncryptString("Mario Rossi")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "Mario")

	plain, err := enc.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Mario Rossi", plain)
}

func TestAESEncryptorRejectsTampering(t *testing.T) {
	enc, err := NewAESEncryptorFromHex(testKey)
	require.NoError(t, err)

	sealed, err := enc.EncryptString("signature")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = enc.DecryptString(tampered)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestNewAESEncryptorFromHexRejectsBadKey(t *testing.T) {
	_, err := NewAESEncryptorFromHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewAESEncryptorFromHex("zz")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
