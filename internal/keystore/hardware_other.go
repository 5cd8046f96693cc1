//go:build !linux

package keystore

import "tapgate/internal/vault"

// detectHardware reports no hardware key store on platforms without a
// TPM binding; Detect falls back to the software provider.
func detectHardware(store vault.Store) Provider {
	return nil
}
