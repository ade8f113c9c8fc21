package pack

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratakb/strata/internal/knowledge"
)

func TestPackage_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	out := filepath.Join(tmpDir, "team.skp")

	manifest := Manifest{
		ID:        "team-knowledge",
		Name:      "Team Knowledge",
		Author:    "sam",
		Namespace: "github.com/acme/api",
		Version:   "1",
		CreatedAt: time.Now(),
		Tags:      []string{"backend"},
	}
	entries := []knowledge.KnowledgeEntry{
		{Title: "First", Content: "first body", Confidence: 0.8, Tags: []string{"a"}},
		{Title: "Second", Content: "second body", Citations: []knowledge.Citation{
			{Path: "internal/db/pool.go:42", FileHash: "abc123"},
		}},
	}

	if err := Package(manifest, entries, out); err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	payload, err := Unpack(out)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if payload.Manifest.Name != "Team Knowledge" {
		t.Errorf("manifest name = %q", payload.Manifest.Name)
	}
	if payload.Manifest.EntryCount != 2 {
		t.Errorf("expected entry count 2, got %d", payload.Manifest.EntryCount)
	}
	if len(payload.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(payload.Entries))
	}
	if payload.Entries[1].Citations[0].Path != "internal/db/pool.go:42" {
		t.Errorf("citations did not survive the round trip: %+v", payload.Entries[1].Citations)
	}
}

func TestUnpack_RejectsWrongMagic(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "bogus.skp")
	os.WriteFile(file, []byte("not a pack file at all"), 0644)

	if _, err := Unpack(file); err == nil {
		t.Fatal("expected error for wrong magic bytes")
	}
}

func TestUnpack_RejectsWrongVersion(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "future.skp")

	data := append([]byte{}, MagicBytes...)
	data = append(data, 99) // unknown version
	os.WriteFile(file, data, 0644)

	if _, err := Unpack(file); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestInspect(t *testing.T) {
	tmpDir := t.TempDir()
	out := filepath.Join(tmpDir, "inspect.skp")

	manifest := Manifest{ID: "p", Name: "Inspectable", CreatedAt: time.Now()}
	entries := []knowledge.KnowledgeEntry{{Title: "Only", Content: "only body"}}
	if err := Package(manifest, entries, out); err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	m, err := Inspect(out)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if m.Name != "Inspectable" || m.EntryCount != 1 {
		t.Errorf("manifest = %+v", m)
	}
}
