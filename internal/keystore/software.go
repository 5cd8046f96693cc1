package keystore

import (
	"errors"
	"fmt"

	"tapgate/internal/security"
	"tapgate/internal/vault"
)

// SoftwareProvider stores per-alias data keys in the vault and performs
// AEAD in software.
//
// WARNING: keys at rest have no hardware isolation. This is the fallback
// for hosts without a TPM and the injectable fake for tests.
type SoftwareProvider struct {
	store vault.Store
}

// NewSoftwareProvider creates a software key store over the given vault.
func NewSoftwareProvider(store vault.Store) *SoftwareProvider {
	return &SoftwareProvider{store: store}
}

func (p *SoftwareProvider) Available() bool { return true }

func (p *SoftwareProvider) Generate(alias string, hardwareBacked bool) error {
	exists, err := p.store.Contains(blobPrefix + alias)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	if exists {
		return ErrKeyExists
	}

	key, err := newDataKey()
	if err != nil {
		return err
	}
	defer security.Wipe(key)

	if err := p.store.Put(blobPrefix+alias, key); err != nil {
		return fmt.Errorf("keystore: persist key: %w", err)
	}
	return nil
}

func (p *SoftwareProvider) Encrypt(alias string, plaintext []byte) ([]byte, error) {
	key, err := p.loadKey(alias)
	if err != nil {
		return nil, err
	}
	defer security.Wipe(key)

	return sealWithKey(key, alias, plaintext)
}

func (p *SoftwareProvider) Decrypt(alias string, ciphertext []byte) ([]byte, error) {
	key, err := p.loadKey(alias)
	if err != nil {
		return nil, err
	}
	defer security.Wipe(key)

	return openWithKey(key, alias, ciphertext)
}

func (p *SoftwareProvider) HasKey(alias string) bool {
	exists, err := p.store.Contains(blobPrefix + alias)
	return err == nil && exists
}

func (p *SoftwareProvider) Delete(alias string) error {
	// Overwrite before deleting so the key row does not linger in
	// reusable pages.
	zero := make([]byte, dataKeySize)
	_ = p.store.Put(blobPrefix+alias, zero)
	return p.store.Delete(blobPrefix + alias)
}

func (p *SoftwareProvider) loadKey(alias string) ([]byte, error) {
	key, err := p.store.Get(blobPrefix + alias)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keystore: load key: %w", err)
	}
	return key, nil
}
