// Package vault provides the persistent byte storage behind the
// gatekeeper: encrypted templates, the encrypted identity seed, sealed
// key blobs, and durable attempt counters, each as an individual keyed
// entry.
//
// Values are opaque bytes; everything sensitive is encrypted by the
// keystore before it reaches a Store. The SQLite implementation keeps the
// file at 0600 in WAL mode; MemStore is the injectable fake for tests.
package vault

import "errors"

// Storage errors
var (
	ErrNotFound = errors.New("vault: entry not found")
	ErrClosed   = errors.New("vault: store is closed")
)

// Store is a minimal keyed byte store.
type Store interface {
	// Put inserts or replaces an entry.
	Put(key string, value []byte) error

	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(key string) error

	// Contains reports whether key exists.
	Contains(key string) (bool, error)

	// Close releases the store's resources.
	Close() error
}
