package security

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(RecommendedKeySize)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(key) != RecommendedKeySize {
		t.Fatalf("len = %d", len(key))
	}

	other, err := GenerateKey(RecommendedKeySize)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key, other) {
		t.Error("two generated keys are identical")
	}

	if _, err := GenerateKey(8); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("small key: %v", err)
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	master := []byte("0123456789abcdef0123456789abcdef")

	a, err := DeriveKey(master, []byte("salt"), []byte("info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := DeriveKey(master, []byte("salt"), []byte("info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same inputs derived different keys")
	}

	c, err := DeriveKey(master, []byte("salt"), []byte("other"), 32)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Error("different info derived the same key")
	}
}

func TestDeriveKeyWithLabelSeparatesDomains(t *testing.T) {
	master := []byte("0123456789abcdef")

	a, err := DeriveKeyWithLabel(master, "landmark-field", 32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := DeriveKeyWithLabel(master, "template-key", 32)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("labels did not separate derived keys")
	}
}

func TestDeriveKeyRejectsWeakInputs(t *testing.T) {
	if _, err := DeriveKey([]byte("weak"), nil, nil, 32); !errors.Is(err, ErrWeakKey) {
		t.Errorf("weak master: %v", err)
	}
	master := []byte("0123456789abcdef")
	if _, err := DeriveKey(master, nil, nil, 4); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("tiny output: %v", err)
	}
}

func TestSecureCompare(t *testing.T) {
	a := []byte("equal-bytes")
	b := []byte("equal-bytes")
	c := []byte("other-bytes")

	if !SecureCompare(a, b) {
		t.Error("equal slices compare unequal")
	}
	if SecureCompare(a, c) {
		t.Error("unequal slices compare equal")
	}
	if SecureCompare(a, a[:5]) {
		t.Error("different lengths compare equal")
	}
}

func TestHashDomainSeparated(t *testing.T) {
	data := []byte("payload")

	a := HashDomainSeparated("domain-a", data)
	b := HashDomainSeparated("domain-b", data)
	if a == b {
		t.Error("domains did not separate hashes")
	}

	// Length-prefixed domain: no ambiguity between domain and payload.
	c := HashDomainSeparated("ab", []byte("cpayload"))
	d := HashDomainSeparated("abc", []byte("payload"))
	if c == d {
		t.Error("domain boundary is ambiguous")
	}
}

func TestValidateKeyStrength(t *testing.T) {
	good := []byte("0123456789abcdef")
	if err := ValidateKeyStrength(good); err != nil {
		t.Errorf("good key rejected: %v", err)
	}

	if err := ValidateKeyStrength([]byte("short")); !errors.Is(err, ErrWeakKey) {
		t.Errorf("short key: %v", err)
	}

	repeating := bytes.Repeat([]byte{0x42}, 32)
	if err := ValidateKeyStrength(repeating); !errors.Is(err, ErrWeakKey) {
		t.Errorf("repeating key: %v", err)
	}
}

func TestWipe(t *testing.T) {
	data := []byte("sensitive")
	Wipe(data)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not wiped: %x", i, b)
		}
	}

	// Wiping nil or empty slices is a no-op.
	Wipe(nil)
	Wipe([]byte{})
}

func TestZeroizeOnPanic(t *testing.T) {
	data := []byte("sensitive")
	func() {
		defer func() { _ = recover() }()
		defer ZeroizeOnPanic(data)()
		panic("boom")
	}()
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not wiped after panic: %x", i, b)
		}
	}

	// Without a panic the buffer is left alone.
	intact := []byte("sensitive")
	func() {
		defer ZeroizeOnPanic(intact)()
	}()
	if intact[0] != 's' {
		t.Error("buffer wiped without a panic")
	}
}

func TestSecureBytesLifecycle(t *testing.T) {
	original := []byte("identity-seed-16")
	sb, err := FromBytes(original)
	if err != nil {
		t.Fatal(err)
	}

	// The source buffer is wiped on transfer.
	for _, b := range original {
		if b != 0 {
			t.Fatal("source buffer not wiped")
		}
	}

	if sb.Len() != 16 {
		t.Errorf("len = %d", sb.Len())
	}
	cp := sb.Copy()
	if !bytes.Equal(cp, []byte("identity-seed-16")) {
		t.Error("copy mismatch")
	}
	Wipe(cp)

	sb.Destroy()
	if sb.Len() != 0 {
		t.Error("destroyed buffer still has length")
	}
	if sb.Copy() != nil {
		t.Error("destroyed buffer still copies")
	}
	// Double destroy is safe.
	sb.Destroy()
}
