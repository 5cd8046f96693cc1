// Package gatekeeper is the orchestrating state machine between gesture
// input and key release.
//
// It owns the full identity lifecycle: registration (with confirmation
// and quality gating), unlock (with lockout, destructive-wipe, and decoy
// handling), phrase-based recovery, and panic wipe. Unlock is shaped so
// that an observer measuring responses cannot tell which stage rejected
// an attempt: both identities are always evaluated, failures and decoy
// successes are indistinguishable from the outside, and every verdict is
// held to a minimum response time.
package gatekeeper

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tapgate/internal/capture"
	"tapgate/internal/keystore"
	"tapgate/internal/landmark"
	"tapgate/internal/match"
	"tapgate/internal/quantize"
	"tapgate/internal/recovery"
	"tapgate/internal/security"
	"tapgate/internal/vault"
)

// State is the coarse lifecycle state reported to callers.
type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateLockedOut
	StateWiped
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateLockedOut:
		return "locked_out"
	case StateWiped:
		return "wiped"
	default:
		return "unknown"
	}
}

// UnlockStatus classifies an unlock verdict.
type UnlockStatus int

const (
	UnlockFailure UnlockStatus = iota
	UnlockSuccess
	UnlockLockedOut
)

// UnlockMode says which identity matched on success. Callers that drive
// a user-visible surface must NOT surface the distinction; it exists so
// the embedding application can release the real key or the decoy
// environment.
type UnlockMode int

const (
	ModeNone UnlockMode = iota
	ModeReal
	ModeDecoy
)

// UnlockOutcome is the result of one unlock attempt. Unlock never
// returns an error: every internal failure is folded into a non-match
// verdict so storage and decryption problems are not distinguishable
// from a wrong gesture.
type UnlockOutcome struct {
	Status UnlockStatus
	Mode   UnlockMode

	// Seed is the released identity seed (real success only). The caller
	// must Destroy it as soon as the derived keys are established.
	Seed *security.SecureBytes

	// AttemptsRemaining counts attempts left before lockout (failures
	// only).
	AttemptsRemaining int

	// LockoutRemaining is how long the current lockout lasts.
	LockoutRemaining time.Duration

	// Wiped reports that this attempt crossed the destructive threshold
	// and all identity material was erased.
	Wiped bool
}

// Config tunes the gatekeeper's failure policy.
type Config struct {
	// LockoutThreshold is the consecutive-failure count that triggers a
	// timed lockout.
	LockoutThreshold int

	// WipeThreshold is the cumulative-failure count that triggers a
	// destructive wipe. Cumulative failures only reset on success,
	// recovery, or wipe.
	WipeThreshold int

	// LockoutDuration is the length of a timed lockout.
	LockoutDuration time.Duration

	// ResponseFloor is the minimum wall-clock duration of any unlock
	// verdict. Verdicts that compute faster are held back.
	ResponseFloor time.Duration

	// LandmarkNodes is the node count for generated landmark fields.
	LandmarkNodes int
}

// DefaultConfig returns the standard failure policy.
func DefaultConfig() Config {
	return Config{
		LockoutThreshold: 5,
		WipeThreshold:    20,
		LockoutDuration:  5 * time.Minute,
		ResponseFloor:    250 * time.Millisecond,
		LandmarkNodes:    landmark.DefaultNodeCount,
	}
}

// Gatekeeper mediates all access to stored identities. All exported
// methods are safe for concurrent use; mutating operations serialize on
// one mutex so attempt accounting cannot race.
type Gatekeeper struct {
	mu    sync.Mutex
	store vault.Store
	keys  keystore.Provider
	cfg   Config
	log   *slog.Logger

	// Injectable clock and sleeper for deterministic tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a gatekeeper over the given vault and key store.
func New(store vault.Store, keys keystore.Provider, cfg Config, log *slog.Logger) *Gatekeeper {
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = DefaultConfig().LockoutThreshold
	}
	if cfg.WipeThreshold <= 0 {
		cfg.WipeThreshold = DefaultConfig().WipeThreshold
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultConfig().LockoutDuration
	}
	if cfg.LandmarkNodes <= 0 {
		cfg.LandmarkNodes = DefaultConfig().LandmarkNodes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gatekeeper{
		store: store,
		keys:  keys,
		cfg:   cfg,
		log:   log.With("component", "gatekeeper"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Register enrolls the real identity from a capture and its confirmation.
//
// On fresh registration it generates a new identity seed, returns the
// recovery phrase, and (for the grid strategy) derives and commits to the
// landmark field. After a recovery it re-enrolls the gesture against the
// restored seed and returns a nil phrase: the original phrase remains the
// only backup.
func (g *Gatekeeper) Register(first, confirm *capture.RawCapture) (*recovery.Phrase, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tmpl, err := g.validatePair(first, confirm)
	if err != nil {
		return nil, err
	}

	meta, metaErr := g.loadMeta(keyRealMeta)
	if metaErr == nil && !meta.NeedsEnrollment {
		return nil, ErrAlreadyRegistered
	}
	if metaErr != nil && !errors.Is(metaErr, ErrNoIdentity) {
		return nil, metaErr
	}

	if metaErr == nil && meta.NeedsEnrollment {
		if err := g.enrollRecovered(meta, tmpl); err != nil {
			return nil, err
		}
		g.log.Info("identity re-enrolled after recovery", "strategy", tmpl.Strategy.String())
		return nil, nil
	}

	phrase, err := g.enrollFresh(tmpl)
	if err != nil {
		return nil, err
	}
	g.log.Info("identity registered",
		"strategy", tmpl.Strategy.String(),
		"events", tmpl.EventCount())
	return phrase, nil
}

// RegisterDecoy enrolls or replaces the decoy identity. The decoy has no
// seed and no recovery phrase; matching it at unlock releases nothing.
// It must differ from the real pattern or unlock behavior would be
// ambiguous, but that check requires decrypting the real template, so it
// is the caller's responsibility to enforce during enrollment UX.
func (g *Gatekeeper) RegisterDecoy(first, confirm *capture.RawCapture) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tmpl, err := g.validatePair(first, confirm)
	if err != nil {
		return err
	}

	if _, err := g.loadMeta(keyRealMeta); err != nil {
		if errors.Is(err, ErrNoIdentity) {
			return ErrNoIdentity
		}
		return err
	}

	// Replacing an existing decoy drops its old key first.
	if old, err := g.loadMeta(keyDecoyMeta); err == nil {
		if err := g.keys.Delete(old.KeyAlias); err != nil {
			g.log.Warn("stale decoy key not removed", "error", err)
		}
	}

	alias := "tapgate-" + uuid.NewString()
	if err := g.keys.Generate(alias, true); err != nil {
		return fmt.Errorf("gatekeeper: generate decoy key: %w", err)
	}

	if err := g.storeTemplate(alias, keyDecoyTemplate, tmpl); err != nil {
		g.keys.Delete(alias)
		return err
	}

	meta := &vault.IdentityMetadata{
		Version:   vault.MetadataVersion,
		Strategy:  tmpl.Strategy.String(),
		KeyAlias:  alias,
		CreatedAt: g.now().Unix(),
	}
	if err := g.storeMeta(keyDecoyMeta, meta); err != nil {
		g.keys.Delete(alias)
		return err
	}

	g.log.Info("decoy identity registered", "strategy", tmpl.Strategy.String())
	return nil
}

// Unlock evaluates a gesture attempt against both stored identities.
//
// The evaluation shape is fixed: real and decoy comparisons always both
// run (against deranged stand-ins when an identity is absent or
// unreadable), failure accounting happens on every non-match, and the
// verdict is released no earlier than ResponseFloor after entry.
func (g *Gatekeeper) Unlock(attempt *capture.RawCapture) UnlockOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	started := g.now()
	out := g.unlockLocked(attempt)

	if held := g.cfg.ResponseFloor - g.now().Sub(started); held > 0 {
		g.sleep(held)
	}
	return out
}

func (g *Gatekeeper) unlockLocked(attempt *capture.RawCapture) UnlockOutcome {
	st := g.loadAttempts()
	now := g.now()

	if st.LockoutUntil.After(now) {
		return UnlockOutcome{
			Status:           UnlockLockedOut,
			LockoutRemaining: st.LockoutUntil.Sub(now),
		}
	}

	attemptTmpl, err := quantize.Quantize(attempt)
	if err != nil {
		// Malformed input still pays the full evaluation and failure
		// accounting cost.
		attemptTmpl = nil
	}

	realMeta, realHit := g.evaluate(keyRealMeta, keyRealTemplate, attemptTmpl)
	_, decoyHit := g.evaluate(keyDecoyMeta, keyDecoyTemplate, attemptTmpl)

	if realHit {
		// A matching gesture with an unreadable seed falls through to the
		// failure path.
		if seed, ok := g.releaseSeed(realMeta); ok {
			st.FailedCount = 0
			if err := g.saveAttempts(st); err != nil {
				g.log.Warn("attempt state not persisted", "error", err)
			}
			return UnlockOutcome{Status: UnlockSuccess, Mode: ModeReal, Seed: seed}
		}
	}

	if decoyHit {
		st.FailedCount = 0
		if err := g.saveAttempts(st); err != nil {
			g.log.Warn("attempt state not persisted", "error", err)
		}
		return UnlockOutcome{Status: UnlockSuccess, Mode: ModeDecoy}
	}

	st.FailedCount++
	st.TotalFailedCount++

	if int(st.TotalFailedCount) >= g.cfg.WipeThreshold {
		g.wipeLocked()
		g.log.Warn("destructive wipe threshold reached")
		return UnlockOutcome{Status: UnlockLockedOut, Wiped: true}
	}

	if int(st.FailedCount) >= g.cfg.LockoutThreshold {
		st.LockoutUntil = now.Add(g.cfg.LockoutDuration)
		if err := g.saveAttempts(st); err != nil {
			g.log.Warn("attempt state not persisted", "error", err)
		}
		g.log.Info("lockout engaged", "duration", g.cfg.LockoutDuration)
		return UnlockOutcome{
			Status:           UnlockLockedOut,
			LockoutRemaining: g.cfg.LockoutDuration,
		}
	}

	if err := g.saveAttempts(st); err != nil {
		g.log.Warn("attempt state not persisted", "error", err)
	}
	return UnlockOutcome{
		Status:            UnlockFailure,
		AttemptsRemaining: g.cfg.LockoutThreshold - int(st.FailedCount),
	}
}

// evaluate runs one identity's comparator against the attempt. Any
// storage or decryption failure is absorbed by comparing against a
// deranged stand-in template instead, so the comparison work still
// happens and the caller only sees a non-match.
func (g *Gatekeeper) evaluate(metaKey, tmplKey string, attempt *quantize.Template) (*vault.IdentityMetadata, bool) {
	meta, metaErr := g.loadMeta(metaKey)
	var stored *quantize.Template
	if metaErr == nil && !meta.NeedsEnrollment {
		stored = g.loadTemplate(meta.KeyAlias, tmplKey)
	}

	if attempt == nil {
		// Nothing to compare; run the comparator against two stand-ins so
		// the work is still done.
		stored = nil
	}

	genuine := stored != nil &&
		attempt != nil &&
		stored.Strategy == attempt.Strategy

	probe := attempt
	target := stored
	if !genuine {
		probe = standIn(attempt, stored)
		target = derange(probe)
	}

	m, err := match.ForStrategy(probe.Strategy)
	if err != nil {
		return meta, false
	}
	res := m.Match(target, probe)

	return meta, genuine && res.IsMatch
}

// standIn picks a template to feed the comparator when a genuine
// comparison is impossible, preferring whichever side exists.
func standIn(attempt, stored *quantize.Template) *quantize.Template {
	if attempt != nil {
		return attempt
	}
	if stored != nil {
		return stored
	}
	return &quantize.Template{
		Version:   quantize.Version,
		Strategy:  capture.StrategyInterval,
		Intervals: []uint32{500, 500, 500},
		Zones:     []uint8{0, 0, 0, 0},
	}
}

// derange returns a template guaranteed not to match its source: every
// zone and cell is displaced, and intervals are pushed far enough that
// the blended confidence stays below the match threshold.
func derange(t *quantize.Template) *quantize.Template {
	d := &quantize.Template{Version: t.Version, Strategy: t.Strategy}

	d.Intervals = make([]uint32, len(t.Intervals))
	for i, v := range t.Intervals {
		d.Intervals[i] = v*4 + 1000
	}
	d.Zones = make([]uint8, len(t.Zones))
	for i, v := range t.Zones {
		d.Zones[i] = (v + 1) % (quantize.ZoneGridSize * quantize.ZoneGridSize)
	}
	d.Cells = make([]uint16, len(t.Cells))
	for i, v := range t.Cells {
		d.Cells[i] = (v + 1) % (quantize.GridSize * quantize.GridSize)
	}
	return d
}

// releaseSeed decrypts the identity seed into locked memory and checks
// the landmark-field commitment for grid identities.
func (g *Gatekeeper) releaseSeed(meta *vault.IdentityMetadata) (*security.SecureBytes, bool) {
	raw, err := g.store.Get(keyRealSeed)
	if err != nil {
		g.log.Warn("seed entry unreadable", "error", err)
		return nil, false
	}
	seedBytes, err := g.keys.Decrypt(meta.KeyAlias, raw)
	if err != nil {
		g.log.Warn("seed decryption failed", "error", err)
		return nil, false
	}
	// The plaintext seed must not survive a panic between decryption and
	// the locked-buffer handoff below.
	defer security.ZeroizeOnPanic(seedBytes)()

	if meta.VerificationHash != "" {
		g.checkFieldCommitment(meta, seedBytes)
	}

	seed, err := security.FromBytes(seedBytes)
	if err != nil {
		security.Wipe(seedBytes)
		return nil, false
	}
	return seed, true
}

// checkFieldCommitment regenerates the landmark field and compares its
// hash against the registration-time commitment. A mismatch means the
// generator changed underneath a stored identity; the unlock still
// succeeds, but loudly.
func (g *Gatekeeper) checkFieldCommitment(meta *vault.IdentityMetadata, seed []byte) {
	field, err := landmark.GenerateN(seed, g.cfg.LandmarkNodes)
	if err != nil {
		g.log.Warn("landmark field regeneration failed", "error", err)
		return
	}
	stored, err := hex.DecodeString(meta.VerificationHash)
	if err != nil || len(stored) != 32 {
		g.log.Warn("stored field commitment malformed")
		return
	}
	var h [32]byte
	copy(h[:], stored)
	if !field.Verify(h) {
		g.log.Warn("landmark field commitment mismatch",
			"stored_version", meta.AlgorithmVersion,
			"current_version", landmark.AlgorithmVersion)
	}
}

// Recover replaces the real identity from a recovery phrase. The stored
// gesture template is discarded; the caller must re-enroll a gesture via
// Register before the identity can unlock again. An invalid phrase
// mutates nothing.
func (g *Gatekeeper) Recover(phrase string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	seed, err := recovery.Decode(phrase)
	if err != nil {
		return err
	}
	defer security.Wipe(seed)

	// Drop the previous real identity, if any.
	if old, err := g.loadMeta(keyRealMeta); err == nil {
		if err := g.keys.Delete(old.KeyAlias); err != nil {
			g.log.Warn("stale identity key not removed", "error", err)
		}
	}
	g.store.Delete(keyRealTemplate)
	g.store.Delete(keyRealSeed)

	alias := "tapgate-" + uuid.NewString()
	if err := g.keys.Generate(alias, true); err != nil {
		return fmt.Errorf("gatekeeper: generate identity key: %w", err)
	}

	encSeed, err := g.keys.Encrypt(alias, seed)
	if err != nil {
		g.keys.Delete(alias)
		return fmt.Errorf("gatekeeper: encrypt seed: %w", err)
	}
	if err := g.store.Put(keyRealSeed, encSeed); err != nil {
		g.keys.Delete(alias)
		return fmt.Errorf("gatekeeper: persist seed: %w", err)
	}

	meta := &vault.IdentityMetadata{
		Version:         vault.MetadataVersion,
		KeyAlias:        alias,
		CreatedAt:       g.now().Unix(),
		NeedsEnrollment: true,
	}
	if err := g.storeMeta(keyRealMeta, meta); err != nil {
		g.keys.Delete(alias)
		return err
	}

	if err := g.saveAttempts(attemptState{}); err != nil {
		g.log.Warn("attempt state not reset", "error", err)
	}
	g.store.Delete(keyWipedAt)

	g.log.Info("identity restored from recovery phrase")
	return nil
}

// PanicWipe immediately and irreversibly destroys all identity material:
// keys, encrypted templates and seeds, metadata, and attempt counters.
func (g *Gatekeeper) PanicWipe() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.wipeLocked()
	g.log.Warn("panic wipe executed")
}

func (g *Gatekeeper) wipeLocked() {
	for _, metaKey := range []string{keyRealMeta, keyDecoyMeta} {
		if meta, err := g.loadMeta(metaKey); err == nil {
			if err := g.keys.Delete(meta.KeyAlias); err != nil {
				g.log.Warn("key not removed during wipe", "error", err)
			}
		}
	}

	for _, key := range []string{
		keyRealMeta, keyRealTemplate, keyRealSeed,
		keyDecoyMeta, keyDecoyTemplate,
		keyFailedCount, keyTotalFailed, keyLockoutUntil,
	} {
		g.store.Delete(key)
	}

	g.saveCounter(keyWipedAt, uint64(g.now().Unix()))
}

// State reports the coarse lifecycle state.
func (g *Gatekeeper) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if meta, err := g.loadMeta(keyRealMeta); err == nil && !meta.NeedsEnrollment {
		if g.loadAttempts().LockoutUntil.After(g.now()) {
			return StateLockedOut
		}
		return StateRegistered
	}
	if g.loadCounter(keyWipedAt) > 0 {
		return StateWiped
	}
	return StateUnregistered
}

// HasRealIdentity reports whether a fully enrolled real identity exists.
func (g *Gatekeeper) HasRealIdentity() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	meta, err := g.loadMeta(keyRealMeta)
	return err == nil && !meta.NeedsEnrollment
}

// NeedsEnrollment reports whether a recovered identity awaits a gesture.
func (g *Gatekeeper) NeedsEnrollment() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	meta, err := g.loadMeta(keyRealMeta)
	return err == nil && meta.NeedsEnrollment
}

// FailedAttempts returns the consecutive failure count.
func (g *Gatekeeper) FailedAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return int(g.loadAttempts().FailedCount)
}

// LockoutRemaining returns the time left on the current lockout, or zero.
func (g *Gatekeeper) LockoutRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	until := g.loadAttempts().LockoutUntil
	if remaining := until.Sub(g.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// LandmarkField regenerates the real identity's landmark field from a
// released seed. Rendering surfaces call this after a successful unlock
// or during grid registration.
func (g *Gatekeeper) LandmarkField(seed *security.SecureBytes) (*landmark.Field, error) {
	raw := seed.Copy()
	defer security.Wipe(raw)
	return landmark.GenerateN(raw, g.cfg.LandmarkNodes)
}

// validatePair quantizes both captures, gates pattern quality, and
// requires the confirmation to match the first capture.
func (g *Gatekeeper) validatePair(first, confirm *capture.RawCapture) (*quantize.Template, error) {
	tmpl, err := quantize.Quantize(first)
	if err != nil {
		return nil, err
	}
	confirmTmpl, err := quantize.Quantize(confirm)
	if err != nil {
		return nil, err
	}
	if err := match.CheckRegistrationQuality(tmpl); err != nil {
		return nil, err
	}

	m, err := match.ForStrategy(tmpl.Strategy)
	if err != nil {
		return nil, err
	}
	if res := m.Match(tmpl, confirmTmpl); !res.IsMatch {
		return nil, ErrConfirmationMismatch
	}
	return tmpl, nil
}

// enrollFresh provisions a brand-new identity: key, seed, template,
// metadata, and recovery phrase.
func (g *Gatekeeper) enrollFresh(tmpl *quantize.Template) (*recovery.Phrase, error) {
	alias := "tapgate-" + uuid.NewString()
	if err := g.keys.Generate(alias, true); err != nil {
		return nil, fmt.Errorf("gatekeeper: generate identity key: %w", err)
	}

	seed, err := security.GenerateKey(recovery.SeedSize)
	if err != nil {
		g.keys.Delete(alias)
		return nil, err
	}
	defer security.Wipe(seed)

	phrase, err := recovery.Encode(seed)
	if err != nil {
		g.keys.Delete(alias)
		return nil, err
	}

	encSeed, err := g.keys.Encrypt(alias, seed)
	if err != nil {
		g.keys.Delete(alias)
		return nil, fmt.Errorf("gatekeeper: encrypt seed: %w", err)
	}
	if err := g.store.Put(keyRealSeed, encSeed); err != nil {
		g.keys.Delete(alias)
		return nil, fmt.Errorf("gatekeeper: persist seed: %w", err)
	}

	if err := g.storeTemplate(alias, keyRealTemplate, tmpl); err != nil {
		g.keys.Delete(alias)
		return nil, err
	}

	meta := &vault.IdentityMetadata{
		Version:   vault.MetadataVersion,
		Strategy:  tmpl.Strategy.String(),
		KeyAlias:  alias,
		CreatedAt: g.now().Unix(),
	}
	if err := g.commitFieldHash(meta, tmpl, seed); err != nil {
		g.keys.Delete(alias)
		return nil, err
	}
	if err := g.storeMeta(keyRealMeta, meta); err != nil {
		g.keys.Delete(alias)
		return nil, err
	}

	if err := g.saveAttempts(attemptState{}); err != nil {
		g.log.Warn("attempt state not reset", "error", err)
	}
	g.store.Delete(keyWipedAt)

	return phrase, nil
}

// enrollRecovered attaches a new gesture to an identity restored from a
// recovery phrase, reusing its key alias and seed.
func (g *Gatekeeper) enrollRecovered(meta *vault.IdentityMetadata, tmpl *quantize.Template) error {
	if err := g.storeTemplate(meta.KeyAlias, keyRealTemplate, tmpl); err != nil {
		return err
	}

	meta.Strategy = tmpl.Strategy.String()
	meta.NeedsEnrollment = false
	meta.AlgorithmVersion = 0
	meta.VerificationHash = ""

	if tmpl.Strategy == capture.StrategyGrid {
		raw, err := g.store.Get(keyRealSeed)
		if err != nil {
			return fmt.Errorf("gatekeeper: load seed: %w", err)
		}
		seed, err := g.keys.Decrypt(meta.KeyAlias, raw)
		if err != nil {
			return fmt.Errorf("gatekeeper: decrypt seed: %w", err)
		}
		defer security.Wipe(seed)
		if err := g.commitFieldHash(meta, tmpl, seed); err != nil {
			return err
		}
	}

	return g.storeMeta(keyRealMeta, meta)
}

// commitFieldHash records the landmark-field commitment for grid
// identities; a no-op for interval identities.
func (g *Gatekeeper) commitFieldHash(meta *vault.IdentityMetadata, tmpl *quantize.Template, seed []byte) error {
	if tmpl.Strategy != capture.StrategyGrid {
		return nil
	}
	field, err := landmark.GenerateN(seed, g.cfg.LandmarkNodes)
	if err != nil {
		return fmt.Errorf("gatekeeper: generate landmark field: %w", err)
	}
	meta.AlgorithmVersion = landmark.AlgorithmVersion
	meta.VerificationHash = hex.EncodeToString(field.VerificationHash[:])
	return nil
}

func (g *Gatekeeper) storeTemplate(alias, key string, tmpl *quantize.Template) error {
	encoded, err := tmpl.Encode()
	if err != nil {
		return fmt.Errorf("gatekeeper: encode template: %w", err)
	}
	sealed, err := g.keys.Encrypt(alias, encoded)
	if err != nil {
		return fmt.Errorf("gatekeeper: encrypt template: %w", err)
	}
	if err := g.store.Put(key, sealed); err != nil {
		return fmt.Errorf("gatekeeper: persist template: %w", err)
	}
	return nil
}

// loadTemplate decrypts and decodes a stored template; nil on any
// failure (the caller folds that into a non-match).
func (g *Gatekeeper) loadTemplate(alias, key string) *quantize.Template {
	sealed, err := g.store.Get(key)
	if err != nil {
		return nil
	}
	encoded, err := g.keys.Decrypt(alias, sealed)
	if err != nil {
		g.log.Warn("template decryption failed", "error", err)
		return nil
	}
	tmpl, err := quantize.Decode(encoded)
	if err != nil {
		g.log.Warn("stored template malformed", "error", err)
		return nil
	}
	return tmpl
}

func (g *Gatekeeper) storeMeta(key string, meta *vault.IdentityMetadata) error {
	encoded, err := meta.Encode()
	if err != nil {
		return fmt.Errorf("gatekeeper: encode metadata: %w", err)
	}
	if err := g.store.Put(key, encoded); err != nil {
		return fmt.Errorf("gatekeeper: persist metadata: %w", err)
	}
	return nil
}
