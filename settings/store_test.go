package settings

import (
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Get(KeySearchClientID); err != nil || ok {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}

	if err := s.Set(KeySearchClientID, "my-id"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(KeySearchClientID)
	if err != nil || !ok || v != "my-id" {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}

	// Overwrite replaces.
	if err := s.Set(KeySearchClientID, "new-id"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _, _ := s.Get(KeySearchClientID); v != "new-id" {
		t.Fatalf("after overwrite: %q", v)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(KeySearchClientSecret, "hunter2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(KeySearchClientSecret)
	if err != nil || !ok || v != "hunter2" {
		t.Fatalf("Get after reopen = (%q, %v, %v)", v, ok, err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("want error")
	}
}
