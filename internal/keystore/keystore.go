// Package keystore abstracts the secure key store that guards identity
// material.
//
// Keys are addressed by opaque alias and never leave the provider as raw
// bytes through the public interface. Two implementations exist:
// HardwareProvider seals per-alias data keys to a TPM 2.0 device and
// unseals them only for the duration of an encrypt/decrypt call, and
// SoftwareProvider keeps keys in the vault for hosts without a TPM and
// for tests. AEAD output always carries the nonce prepended to
// ciphertext+tag.
package keystore

import (
	"errors"
	"fmt"

	"github.com/tink-crypto/tink-go/v2/aead/subtle"

	"tapgate/internal/security"
	"tapgate/internal/vault"
)

// Key store errors
var (
	ErrKeyNotFound         = errors.New("keystore: key not found")
	ErrKeyExists           = errors.New("keystore: key already exists")
	ErrDecryptFailed       = errors.New("keystore: decryption failed")
	ErrHardwareUnavailable = errors.New("keystore: hardware key store not available")
)

// blobPrefix namespaces key material entries in the vault.
const blobPrefix = "keystore/"

// dataKeySize is the per-alias AES-256 data key size.
const dataKeySize = 32

// Provider is the secure key store contract.
type Provider interface {
	// Available reports whether the provider can serve requests.
	Available() bool

	// Generate creates a new key under alias. hardwareBacked requests
	// the highest isolation the provider offers; software providers
	// ignore it.
	Generate(alias string, hardwareBacked bool) error

	// Encrypt encrypts plaintext under the alias's key.
	// The nonce is prepended to ciphertext+tag.
	Encrypt(alias string, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt. Returns ErrDecryptFailed on any
	// authenticity failure.
	Decrypt(alias string, ciphertext []byte) ([]byte, error)

	// HasKey reports whether a key exists under alias.
	HasKey(alias string) bool

	// Delete destroys the key under alias. Deleting a missing alias is
	// not an error.
	Delete(alias string) error
}

// Detect returns the hardware provider when a TPM is present and usable,
// falling back to the software provider.
func Detect(store vault.Store) Provider {
	if hw := detectHardware(store); hw != nil {
		return hw
	}
	return NewSoftwareProvider(store)
}

// sealWithKey AEAD-encrypts plaintext with a raw data key, binding the
// ciphertext to the alias via associated data.
func sealWithKey(key []byte, alias string, plaintext []byte) ([]byte, error) {
	aead, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: init cipher: %w", err)
	}
	ct, err := aead.Encrypt(plaintext, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("keystore: encrypt: %w", err)
	}
	return ct, nil
}

// openWithKey reverses sealWithKey.
func openWithKey(key []byte, alias string, ciphertext []byte) ([]byte, error) {
	aead, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: init cipher: %w", err)
	}
	pt, err := aead.Decrypt(ciphertext, []byte(alias))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}

// newDataKey generates a fresh per-alias data key.
func newDataKey() ([]byte, error) {
	return security.GenerateKey(dataKeySize)
}
