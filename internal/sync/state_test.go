package sync

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBaselineRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "baseline.json")

	in := &Baseline{
		Version:       baselineVersion,
		LastCommit:    "abc123",
		ContentHashes: map[string]string{"a.md": "0011223344556677"},
		AddressHashes: map[string]string{"a.md": "ce013625030ba8dba906f756967f9e9ca394464a"},
	}
	if err := SaveBaseline(path, in); err != nil {
		t.Fatal(err)
	}

	out, err := LoadBaseline(path)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("baseline did not round trip")
	}
	if out.LastCommit != in.LastCommit {
		t.Errorf("LastCommit = %q, want %q", out.LastCommit, in.LastCommit)
	}
	if out.ContentHashes["a.md"] != in.ContentHashes["a.md"] {
		t.Errorf("ContentHashes = %v", out.ContentHashes)
	}
	if out.AddressHashes["a.md"] != in.AddressHashes["a.md"] {
		t.Errorf("AddressHashes = %v", out.AddressHashes)
	}
}

func TestLoadBaselineMissingFile(t *testing.T) {
	b, err := LoadBaseline(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if b != nil {
		t.Errorf("missing baseline returned %v, want nil", b)
	}
}

func TestLoadBaselineUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}

	b, err := LoadBaseline(path)
	if err != nil {
		t.Fatal(err)
	}
	if b != nil {
		t.Errorf("unknown version returned %v, want nil", b)
	}
}

func TestLoadBaselineCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadBaseline(path); err == nil {
		t.Error("corrupt baseline must error")
	}
}

func TestParseDirection(t *testing.T) {
	for _, valid := range []string{"pull", "push", "sync"} {
		if _, err := ParseDirection(valid); err != nil {
			t.Errorf("ParseDirection(%q) = %v", valid, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("invalid direction accepted")
	}
}
