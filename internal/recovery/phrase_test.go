package recovery

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seed := []byte("0123456789abcdef")

	phrase, err := Encode(seed)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if phrase.Len() != 12 {
		t.Fatalf("word count = %d, want 12", phrase.Len())
	}

	decoded, err := Decode(phrase.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, seed) {
		t.Error("round trip did not restore the seed")
	}
}

func TestDecodeNormalizesInput(t *testing.T) {
	seed := []byte{0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89,
		0x10, 0x32, 0x54, 0x76, 0x98, 0xba, 0xdc, 0xfe}
	phrase, err := Encode(seed)
	if err != nil {
		t.Fatal(err)
	}

	// Mixed case and messy whitespace must decode identically.
	messy := "  " + strings.ToUpper(strings.Join(phrase.Words(), "   ")) + "\n"
	decoded, err := Decode(messy)
	if err != nil {
		t.Fatalf("decode messy input: %v", err)
	}
	if !bytes.Equal(decoded, seed) {
		t.Error("normalized decode mismatch")
	}
}

func TestDecodeRejectsInvalidPhrases(t *testing.T) {
	cases := []string{
		"",
		"abandon",
		"not real words at all just noise filler pad pad pad pad pad",
		// Valid words, broken checksum.
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon",
	}
	for _, phrase := range cases {
		if _, err := Decode(phrase); !errors.Is(err, ErrInvalidPhrase) {
			t.Errorf("Decode(%q) = %v, want ErrInvalidPhrase", phrase, err)
		}
	}
}

func TestEncodeRejectsWrongSeedSize(t *testing.T) {
	if _, err := Encode([]byte("short")); err == nil {
		t.Error("short seed accepted")
	}
	if _, err := Encode(make([]byte, 32)); err == nil {
		t.Error("oversized seed accepted")
	}
}

func TestPhraseWipe(t *testing.T) {
	phrase, err := Encode([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	phrase.Wipe()
	if phrase.Len() != 0 {
		t.Error("wiped phrase still has words")
	}
	if phrase.String() != "" {
		t.Error("wiped phrase still renders")
	}
}

func TestWordsReturnsCopy(t *testing.T) {
	phrase, err := Encode([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	words := phrase.Words()
	words[0] = "tampered"
	if phrase.Words()[0] == "tampered" {
		t.Error("Words exposed internal state")
	}
}
