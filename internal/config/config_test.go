package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for a missing file", err)
	}
	var w WiFi
	if s.Get("wifi", &w) {
		t.Fatal("Get() on an empty store should report false")
	}
}

func TestSetThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picox-8.config.json")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("wifi", WiFi{SSID: "px8", Passphrase: "secret"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	var w WiFi
	if !reloaded.Get("wifi", &w) {
		t.Fatal("expected wifi key to survive a reload")
	}
	if w.SSID != "px8" || w.Passphrase != "secret" {
		t.Fatalf("got %+v, want SSID=px8 Passphrase=secret", w)
	}
}

func TestGet_DefaultsWhenKeyMissing(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "x.json"))
	entries := map[string]PhonebookEntry{}
	if s.Get("phonebook", &entries) {
		t.Fatal("Get() should report false for an unset key")
	}
	if len(entries) != 0 {
		t.Fatalf("out param should be left untouched, got %v", entries)
	}
}
