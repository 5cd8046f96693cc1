package vault

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

// storeContract runs the Store contract against any implementation.
func storeContract(t *testing.T, s Store) {
	t.Helper()

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
	if ok, err := s.Contains("missing"); err != nil || ok {
		t.Errorf("Contains missing = %v, %v", ok, err)
	}

	if err := s.Put("a", []byte("alpha")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("alpha")) {
		t.Errorf("get = %q", got)
	}

	// Overwrite.
	if err := s.Put("a", []byte("beta")); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get("a")
	if !bytes.Equal(got, []byte("beta")) {
		t.Errorf("after overwrite = %q", got)
	}

	ok, err := s.Contains("a")
	if err != nil || !ok {
		t.Errorf("Contains = %v, %v", ok, err)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete = %v", err)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete("a"); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestMemStoreContract(t *testing.T) {
	storeContract(t, NewMemStore())
}

func TestMemStoreCopiesValues(t *testing.T) {
	s := NewMemStore()
	original := []byte("secret")
	s.Put("k", original)
	original[0] = 'X'

	got, _ := s.Get("k")
	if !bytes.Equal(got, []byte("secret")) {
		t.Error("store aliased the caller's buffer")
	}

	got[0] = 'Y'
	again, _ := s.Get("k")
	if !bytes.Equal(again, []byte("secret")) {
		t.Error("store returned an aliased buffer")
	}
}

func TestMemStoreClosed(t *testing.T) {
	s := NewMemStore()
	s.Close()

	if err := s.Put("k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("put after close = %v", err)
	}
	if _, err := s.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("get after close = %v", err)
	}
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	storeContract(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("identity/real/meta", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Get("identity/real/meta")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("got %q", got)
	}
}
