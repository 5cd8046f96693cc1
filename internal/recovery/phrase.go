// Package recovery converts the fixed-length identity seed to and from a
// human-writable mnemonic word sequence (BIP-39).
//
// The phrase is generated once at registration for offline backup. It is
// completely independent of the gesture: recovery restores the identity,
// never the forgotten gesture.
package recovery

import (
	"errors"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"tapgate/internal/security"
)

// ErrInvalidPhrase covers word-list and checksum failures. Decoding a bad
// phrase mutates no state.
var ErrInvalidPhrase = errors.New("recovery: invalid phrase")

// SeedSize is the identity seed length in bytes. 16 bytes encodes to 12
// words; 32 would encode to 24.
const SeedSize = 16

// Phrase is an ordered mnemonic word sequence.
type Phrase struct {
	words []string
}

// Encode converts a seed into a mnemonic phrase with checksum bits.
func Encode(seed []byte) (*Phrase, error) {
	if len(seed) != SeedSize {
		return nil, errors.New("recovery: seed must be 16 bytes")
	}

	mnemonic, err := bip39.NewMnemonic(seed)
	if err != nil {
		return nil, err
	}

	return &Phrase{words: strings.Fields(mnemonic)}, nil
}

// Decode validates a phrase's checksum and recovers the seed. The caller
// owns the returned bytes and must wipe them.
func Decode(phrase string) ([]byte, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")

	seed, err := bip39.EntropyFromMnemonic(normalized)
	if err != nil {
		return nil, ErrInvalidPhrase
	}
	if len(seed) != SeedSize {
		security.Wipe(seed)
		return nil, ErrInvalidPhrase
	}
	return seed, nil
}

// Words returns a copy of the word sequence.
func (p *Phrase) Words() []string {
	out := make([]string, len(p.words))
	copy(out, p.words)
	return out
}

// String renders the phrase for display. Never log this.
func (p *Phrase) String() string {
	return strings.Join(p.words, " ")
}

// Len returns the word count.
func (p *Phrase) Len() int {
	return len(p.words)
}

// Wipe clears the phrase from memory. Go strings are immutable, so this
// drops references; call it as soon as the phrase has been shown.
func (p *Phrase) Wipe() {
	for i := range p.words {
		p.words[i] = ""
	}
	p.words = nil
}
