//go:build linux

// Hardware-backed key store for Linux TPM 2.0 devices.
//
// TPM 2.0 seals small secrets but is slow for bulk AEAD, so per-alias
// data keys are sealed to the TPM and unsealed only for the duration of
// an encrypt/decrypt call; the AEAD itself runs in software and the
// unsealed key is wiped immediately after use.

package keystore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"

	"tapgate/internal/security"
	"tapgate/internal/vault"
)

// TPM device paths in order of preference.
var tpmDevicePaths = []string{
	"/dev/tpmrm0", // TPM Resource Manager (preferred)
	"/dev/tpm0",   // Direct TPM access (fallback)
}

// HardwareProvider seals per-alias data keys to a TPM 2.0 device.
// Sealed blobs are persisted in the vault; the raw keys exist in memory
// only transiently.
type HardwareProvider struct {
	mu         sync.Mutex
	store      vault.Store
	devicePath string
	transport  transport.TPMCloser
	isOpen     bool
}

// detectHardware probes for an accessible TPM device.
func detectHardware(store vault.Store) Provider {
	for _, path := range tpmDevicePaths {
		if _, err := os.Stat(path); err == nil {
			f, err := os.OpenFile(path, os.O_RDWR, 0)
			if err == nil {
				f.Close()
				return &HardwareProvider{store: store, devicePath: path}
			}
		}
	}
	return nil
}

// NewHardwareProvider creates a TPM-backed provider on the given device.
func NewHardwareProvider(store vault.Store, devicePath string) *HardwareProvider {
	return &HardwareProvider{store: store, devicePath: devicePath}
}

func (h *HardwareProvider) Available() bool {
	if h.devicePath == "" {
		return false
	}
	_, err := os.Stat(h.devicePath)
	return err == nil
}

func (h *HardwareProvider) open() error {
	if h.isOpen {
		return nil
	}
	t, err := transport.OpenTPM(h.devicePath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrHardwareUnavailable, h.devicePath, err)
	}
	h.transport = t
	h.isOpen = true
	return nil
}

// Close releases the TPM connection.
func (h *HardwareProvider) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.isOpen {
		return nil
	}
	err := h.transport.Close()
	h.transport = nil
	h.isOpen = false
	return err
}

func (h *HardwareProvider) Generate(alias string, hardwareBacked bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	exists, err := h.store.Contains(blobPrefix + alias)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	if exists {
		return ErrKeyExists
	}

	if err := h.open(); err != nil {
		return err
	}

	key, err := newDataKey()
	if err != nil {
		return err
	}
	defer security.Wipe(key)

	sealed, err := h.seal(key)
	if err != nil {
		return err
	}

	if err := h.store.Put(blobPrefix+alias, sealed); err != nil {
		return fmt.Errorf("keystore: persist sealed key: %w", err)
	}
	return nil
}

func (h *HardwareProvider) Encrypt(alias string, plaintext []byte) ([]byte, error) {
	key, err := h.dataKey(alias)
	if err != nil {
		return nil, err
	}
	defer security.Wipe(key)

	return sealWithKey(key, alias, plaintext)
}

func (h *HardwareProvider) Decrypt(alias string, ciphertext []byte) ([]byte, error) {
	key, err := h.dataKey(alias)
	if err != nil {
		return nil, err
	}
	defer security.Wipe(key)

	return openWithKey(key, alias, ciphertext)
}

func (h *HardwareProvider) HasKey(alias string) bool {
	exists, err := h.store.Contains(blobPrefix + alias)
	return err == nil && exists
}

func (h *HardwareProvider) Delete(alias string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.store.Delete(blobPrefix + alias)
}

func (h *HardwareProvider) dataKey(alias string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sealed, err := h.store.Get(blobPrefix + alias)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keystore: load sealed key: %w", err)
	}

	if err := h.open(); err != nil {
		return nil, err
	}
	return h.unseal(sealed)
}

// seal wraps data in a TPM keyedhash object under a fresh SRK.
// Blob format: len(pub) || pub || len(priv) || priv.
func (h *HardwareProvider) seal(data []byte) ([]byte, error) {
	srkHandle, err := h.createPrimary()
	if err != nil {
		return nil, fmt.Errorf("keystore: create SRK: %w", err)
	}
	defer func() {
		flushCmd := tpm2.FlushContext{FlushHandle: srkHandle}
		flushCmd.Execute(h.transport)
	}()

	createCmd := tpm2.Create{
		ParentHandle: tpm2.AuthHandle{
			Handle: srkHandle,
			Auth:   tpm2.PasswordAuth(nil),
		},
		InSensitive: tpm2.TPM2BSensitiveCreate{
			Sensitive: &tpm2.TPMSSensitiveCreate{
				Data: tpm2.NewTPMUSensitiveCreate(
					&tpm2.TPM2BSensitiveData{Buffer: data},
				),
			},
		},
		InPublic: tpm2.New2B(tpm2.TPMTPublic{
			Type:    tpm2.TPMAlgKeyedHash,
			NameAlg: tpm2.TPMAlgSHA256,
			ObjectAttributes: tpm2.TPMAObject{
				FixedTPM:     true,
				FixedParent:  true,
				UserWithAuth: true,
			},
		}),
	}

	createRsp, err := createCmd.Execute(h.transport)
	if err != nil {
		return nil, fmt.Errorf("keystore: TPM Create failed: %w", err)
	}

	pubBytes := tpm2.Marshal(createRsp.OutPublic)
	privBytes := tpm2.Marshal(createRsp.OutPrivate)

	sealed := make([]byte, 0, 8+len(pubBytes)+len(privBytes))
	sealed = binary.BigEndian.AppendUint32(sealed, uint32(len(pubBytes)))
	sealed = append(sealed, pubBytes...)
	sealed = binary.BigEndian.AppendUint32(sealed, uint32(len(privBytes)))
	sealed = append(sealed, privBytes...)
	return sealed, nil
}

// unseal reverses seal.
func (h *HardwareProvider) unseal(sealed []byte) ([]byte, error) {
	if len(sealed) < 8 {
		return nil, errors.New("keystore: sealed blob too short")
	}

	pubLen := binary.BigEndian.Uint32(sealed[0:4])
	if len(sealed) < int(4+pubLen+4) {
		return nil, errors.New("keystore: sealed blob corrupted")
	}
	pubBytes := sealed[4 : 4+pubLen]
	offset := 4 + pubLen
	privLen := binary.BigEndian.Uint32(sealed[offset : offset+4])
	if len(sealed) < int(offset+4+privLen) {
		return nil, errors.New("keystore: sealed blob corrupted")
	}
	privBytes := sealed[offset+4 : offset+4+privLen]

	outPublic, err := tpm2.Unmarshal[tpm2.TPM2BPublic](pubBytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: unmarshal public: %w", err)
	}

	srkHandle, err := h.createPrimary()
	if err != nil {
		return nil, fmt.Errorf("keystore: create SRK: %w", err)
	}
	defer func() {
		flushCmd := tpm2.FlushContext{FlushHandle: srkHandle}
		flushCmd.Execute(h.transport)
	}()

	loadCmd := tpm2.Load{
		ParentHandle: tpm2.AuthHandle{
			Handle: srkHandle,
			Auth:   tpm2.PasswordAuth(nil),
		},
		InPublic:  *outPublic,
		InPrivate: tpm2.TPM2BPrivate{Buffer: privBytes},
	}

	loadRsp, err := loadCmd.Execute(h.transport)
	if err != nil {
		return nil, fmt.Errorf("keystore: TPM Load failed: %w", err)
	}
	defer func() {
		flushCmd := tpm2.FlushContext{FlushHandle: loadRsp.ObjectHandle}
		flushCmd.Execute(h.transport)
	}()

	unsealCmd := tpm2.Unseal{
		ItemHandle: tpm2.AuthHandle{
			Handle: loadRsp.ObjectHandle,
			Auth:   tpm2.PasswordAuth(nil),
		},
	}

	unsealRsp, err := unsealCmd.Execute(h.transport)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	return unsealRsp.OutData.Buffer, nil
}

// createPrimary builds the ECC storage root key used as the sealing
// parent.
func (h *HardwareProvider) createPrimary() (tpm2.TPMHandle, error) {
	createPrimaryCmd := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHOwner,
		InPublic: tpm2.New2B(tpm2.TPMTPublic{
			Type:    tpm2.TPMAlgECC,
			NameAlg: tpm2.TPMAlgSHA256,
			ObjectAttributes: tpm2.TPMAObject{
				FixedTPM:            true,
				FixedParent:         true,
				SensitiveDataOrigin: true,
				UserWithAuth:        true,
				Restricted:          true,
				Decrypt:             true,
			},
			Parameters: tpm2.NewTPMUPublicParms(
				tpm2.TPMAlgECC,
				&tpm2.TPMSECCParms{
					CurveID: tpm2.TPMECCNistP256,
					Scheme: tpm2.TPMTECCScheme{
						Scheme: tpm2.TPMAlgNull,
					},
				},
			),
		}),
	}

	rsp, err := createPrimaryCmd.Execute(h.transport)
	if err != nil {
		return 0, err
	}
	return rsp.ObjectHandle, nil
}
