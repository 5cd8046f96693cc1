package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSecretAttributesAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	})
	log := slog.New(handler)

	log.Info("unlock", "identity_seed", "deadbeef", "recovery_phrase", "abandon ability", "attempts", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("parse log record: %v", err)
	}
	if record["identity_seed"] != "[REDACTED]" {
		t.Errorf("identity_seed leaked: %v", record["identity_seed"])
	}
	if record["recovery_phrase"] != "[REDACTED]" {
		t.Errorf("recovery_phrase leaked: %v", record["recovery_phrase"])
	}
	if record["attempts"] != float64(3) {
		t.Errorf("attempts = %v, want 3", record["attempts"])
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tapgate.log")

	log, closer, err := New(Options{Level: "info", Format: "text", Output: path, Component: "test"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("hello")
	if closer == nil {
		t.Fatal("file-backed logger must return a closer")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestShouldRedact(t *testing.T) {
	for _, key := range []string{"seed", "IdentitySeed", "recovery_phrase", "key_alias", "data_key", "template_bytes"} {
		if !shouldRedact(key) {
			t.Errorf("shouldRedact(%q) = false, want true", key)
		}
	}
	for _, key := range []string{"attempts", "strategy", "component", "duration"} {
		if shouldRedact(key) {
			t.Errorf("shouldRedact(%q) = true, want false", key)
		}
	}
}
