package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapgate/internal/vault"
)

func newSoftware(t *testing.T) *SoftwareProvider {
	t.Helper()
	return NewSoftwareProvider(vault.NewMemStore())
}

func TestSoftwareGenerateAndRoundTrip(t *testing.T) {
	p := newSoftware(t)

	require.NoError(t, p.Generate("alias-1", false))
	assert.True(t, p.HasKey("alias-1"))

	plaintext := []byte("identity template bytes")
	ct, err := p.Encrypt("alias-1", plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)

	pt, err := p.Decrypt("alias-1", ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestGenerateRejectsDuplicateAlias(t *testing.T) {
	p := newSoftware(t)

	require.NoError(t, p.Generate("dup", false))
	assert.ErrorIs(t, p.Generate("dup", false), ErrKeyExists)
}

func TestEncryptUnknownAlias(t *testing.T) {
	p := newSoftware(t)

	_, err := p.Encrypt("nope", []byte("data"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = p.Decrypt("nope", []byte("data"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDecryptRejectsTampering(t *testing.T) {
	p := newSoftware(t)
	require.NoError(t, p.Generate("a", false))

	ct, err := p.Encrypt("a", []byte("payload"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0x01
	_, err = p.Decrypt("a", ct)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestCiphertextBoundToAlias(t *testing.T) {
	p := newSoftware(t)
	require.NoError(t, p.Generate("a", false))
	require.NoError(t, p.Generate("b", false))

	ct, err := p.Encrypt("a", []byte("payload"))
	require.NoError(t, err)

	// A different alias means a different key, so the AEAD tag fails.
	_, err = p.Decrypt("b", ct)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	p := newSoftware(t)
	require.NoError(t, p.Generate("a", false))

	ct1, err := p.Encrypt("a", []byte("same"))
	require.NoError(t, err)
	ct2, err := p.Encrypt("a", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct2, "nonces must differ")
}

func TestDeleteRemovesKey(t *testing.T) {
	p := newSoftware(t)
	require.NoError(t, p.Generate("gone", false))

	ct, err := p.Encrypt("gone", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, p.Delete("gone"))
	assert.False(t, p.HasKey("gone"))

	_, err = p.Decrypt("gone", ct)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, p.Delete("gone"))
}

func TestDetectFallsBackToSoftware(t *testing.T) {
	store := vault.NewMemStore()
	p := Detect(store)
	require.NotNil(t, p)
	assert.True(t, p.Available())
}

func TestSealOpenWithKey(t *testing.T) {
	key := make([]byte, dataKeySize)
	for i := range key {
		key[i] = byte(i)
	}

	ct, err := sealWithKey(key, "alias", []byte("plaintext"))
	require.NoError(t, err)

	pt, err := openWithKey(key, "alias", ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext"), pt)

	// Associated data mismatch.
	_, err = openWithKey(key, "other", ct)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}
