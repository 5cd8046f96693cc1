package gatekeeper

import (
	"encoding/binary"
	"errors"
	"time"

	"tapgate/internal/vault"
)

// Vault entry keys. AttemptState fields are persisted as individual
// entries so lockouts and wipe thresholds survive process restart.
const (
	keyRealMeta      = "identity/real/meta"
	keyRealTemplate  = "identity/real/template"
	keyRealSeed      = "identity/real/seed"
	keyDecoyMeta     = "identity/decoy/meta"
	keyDecoyTemplate = "identity/decoy/template"

	keyFailedCount  = "attempts/failed"
	keyTotalFailed  = "attempts/total"
	keyLockoutUntil = "attempts/lockout_until"

	keyWipedAt = "wiped_at"
)

// attemptState is the durable failure-tracking record. TotalFailedCount
// is monotonically non-decreasing until an explicit wipe or successful
// recovery resets it.
type attemptState struct {
	FailedCount      uint32
	TotalFailedCount uint32
	LockoutUntil     time.Time
}

func (g *Gatekeeper) loadAttempts() attemptState {
	var st attemptState
	st.FailedCount = uint32(g.loadCounter(keyFailedCount))
	st.TotalFailedCount = uint32(g.loadCounter(keyTotalFailed))
	if unix := g.loadCounter(keyLockoutUntil); unix > 0 {
		st.LockoutUntil = time.Unix(int64(unix), 0)
	}
	return st
}

func (g *Gatekeeper) saveAttempts(st attemptState) error {
	if err := g.saveCounter(keyFailedCount, uint64(st.FailedCount)); err != nil {
		return err
	}
	if err := g.saveCounter(keyTotalFailed, uint64(st.TotalFailedCount)); err != nil {
		return err
	}
	var unix uint64
	if !st.LockoutUntil.IsZero() {
		unix = uint64(st.LockoutUntil.Unix())
	}
	return g.saveCounter(keyLockoutUntil, unix)
}

// loadCounter reads a big-endian counter entry; missing or malformed
// entries read as zero.
func (g *Gatekeeper) loadCounter(key string) uint64 {
	raw, err := g.store.Get(key)
	if err != nil || len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func (g *Gatekeeper) saveCounter(key string, value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return g.store.Put(key, buf[:])
}

func (g *Gatekeeper) loadMeta(key string) (*vault.IdentityMetadata, error) {
	raw, err := g.store.Get(key)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return nil, ErrNoIdentity
		}
		return nil, err
	}
	return vault.DecodeMetadata(raw)
}
