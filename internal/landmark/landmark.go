// Package landmark derives a reproducible personal visual field from an
// identity seed.
//
// The field is a fixed set of pseudo-random node positions plus
// decorative connective elements. It is purely a rendering artifact — the
// security lives in which landmarks the user taps, in which order. The
// same seed on the same algorithm version must always produce an
// identical field on any device, so the user can find their landmarks
// again at unlock time.
package landmark

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"tapgate/internal/security"
)

const (
	// AlgorithmVersion changes whenever field generation changes in a
	// way that moves nodes. A stored VerificationHash from an older
	// version will no longer match, which callers detect explicitly
	// instead of failing silently.
	AlgorithmVersion = 1

	// DefaultNodeCount is the number of landmark nodes in a field.
	DefaultNodeCount = 50

	// hashedNodes is how many leading node positions feed the
	// verification hash.
	hashedNodes = 8

	// derivationLabel domain-separates the field sub-seed from every
	// other use of the identity seed.
	derivationLabel = "landmark-field"
)

var ErrBadSeed = errors.New("landmark: seed too short")

// NodeKind selects a node's decorative glyph.
type NodeKind uint8

const (
	KindDot NodeKind = iota
	KindRing
	KindDiamond
	KindCross
	kindCount
)

// Node is a single landmark at a normalized position.
type Node struct {
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
	Kind NodeKind `json:"kind"`
}

// Edge is a decorative connective element between two nodes.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Field is a deterministic landmark field.
type Field struct {
	Version          uint8    `json:"version"`
	Nodes            []Node   `json:"nodes"`
	Edges            []Edge   `json:"edges"`
	VerificationHash [32]byte `json:"-"`
}

// Generate derives the field for an identity seed with the default node
// count.
func Generate(identitySeed []byte) (*Field, error) {
	return GenerateN(identitySeed, DefaultNodeCount)
}

// GenerateN derives a field with an explicit node count.
func GenerateN(identitySeed []byte, nodeCount int) (*Field, error) {
	if len(identitySeed) < security.MinKeySize {
		return nil, ErrBadSeed
	}
	if nodeCount < hashedNodes {
		return nil, fmt.Errorf("landmark: node count %d below minimum %d", nodeCount, hashedNodes)
	}

	subSeed, err := security.DeriveKeyWithLabel(identitySeed, derivationLabel, 32)
	if err != nil {
		return nil, fmt.Errorf("derive field seed: %w", err)
	}
	defer security.Wipe(subSeed)

	rng := newStream(subSeed)

	f := &Field{
		Version: AlgorithmVersion,
		Nodes:   make([]Node, 0, nodeCount),
	}

	for i := 0; i < nodeCount; i++ {
		f.Nodes = append(f.Nodes, Node{
			X:    rng.float64(),
			Y:    rng.float64(),
			Kind: NodeKind(rng.byte() % uint8(kindCount)),
		})
	}

	// Connect each node to its nearest predecessor. Deterministic given
	// the node order, and renders as a loose constellation.
	for i := 1; i < len(f.Nodes); i++ {
		f.Edges = append(f.Edges, Edge{From: i, To: nearestBefore(f.Nodes, i)})
	}

	f.VerificationHash = verificationHash(subSeed, f.Nodes)
	return f, nil
}

// Verify reports whether a stored hash still matches this field. A
// mismatch means the generation algorithm changed since the hash was
// recorded.
func (f *Field) Verify(stored [32]byte) bool {
	return security.SecureCompare(f.VerificationHash[:], stored[:])
}

// verificationHash commits to the sub-seed prefix and the first
// hashedNodes positions, quantized to fixed point so the hash is stable
// across float formatting.
func verificationHash(subSeed []byte, nodes []Node) [32]byte {
	buf := make([]byte, 0, 8+hashedNodes*4)
	buf = append(buf, subSeed[:8]...)
	for _, n := range nodes[:hashedNodes] {
		buf = binary.BigEndian.AppendUint16(buf, fixedPoint(n.X))
		buf = binary.BigEndian.AppendUint16(buf, fixedPoint(n.Y))
	}
	return security.HashDomainSeparated("tapgate-landmark-v1", buf)
}

func fixedPoint(v float64) uint16 {
	return uint16(math.Round(v * 65535))
}

func nearestBefore(nodes []Node, i int) int {
	best := 0
	bestDist := math.MaxFloat64
	for j := 0; j < i; j++ {
		d := math.Hypot(nodes[i].X-nodes[j].X, nodes[i].Y-nodes[j].Y)
		if d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}

// stream is a deterministic byte stream: HMAC-SHA256 over an
// incrementing counter, keyed by the field sub-seed.
type stream struct {
	key     []byte
	counter uint64
	buf     []byte
	off     int
}

func newStream(key []byte) *stream {
	k := make([]byte, len(key))
	copy(k, key)
	return &stream{key: k}
}

func (s *stream) refill() {
	h := hmac.New(sha256.New, s.key)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.counter)
	h.Write(buf[:])
	s.counter++
	s.buf = h.Sum(s.buf[:0])
	s.off = 0
}

func (s *stream) byte() uint8 {
	if s.off >= len(s.buf) {
		s.refill()
	}
	b := s.buf[s.off]
	s.off++
	return b
}

// float64 returns a uniform value in [0,1).
func (s *stream) float64() float64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(s.byte())
	}
	// 53 bits of mantissa precision.
	return float64(v>>11) / float64(1<<53)
}
