package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Path Parsing Tests
// =============================================================================

func TestCitationFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"internal/db/pool.go:42", "internal/db/pool.go"},
		{"internal/db/pool.go", "internal/db/pool.go"},
		{"cmd/root.go:7", "cmd/root.go"},
		{"weird:name.go", "weird:name.go"},   // suffix not numeric
		{"trailing.go:", "trailing.go"},      // empty line suffix
		{":42", ":42"},                       // no file component
		{"a/b/c.go:123456", "a/b/c.go"},
		{"handler.go:12abc", "handler.go:12abc"}, // mixed suffix stays a filename
	}
	for _, tt := range tests {
		if got := CitationFile(tt.path); got != tt.want {
			t.Errorf("CitationFile(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// =============================================================================
// Hashing Tests
// =============================================================================

func TestHashFile_Deterministic(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "stable.go")
	if err := os.WriteFile(file, []byte("package stable\n"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := HashFile(file)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	second, err := HashFile(file)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if first != second {
		t.Errorf("same content hashed differently: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}
}

func TestHashFile_SensitiveToSingleByte(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "drift.go")
	os.WriteFile(file, []byte("package drift\n"), 0644)
	before, _ := HashFile(file)

	os.WriteFile(file, []byte("package drifz\n"), 0644)
	after, _ := HashFile(file)

	if before == after {
		t.Error("one-byte change did not change the digest")
	}
}

func TestHashCache_Memoizes(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "cached.go")
	os.WriteFile(file, []byte("original content\n"), 0644)

	cache := NewHashCache()
	first, err := cache.hash(file)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	// Rewrite the file; the per-run cache still answers with the first digest
	os.WriteFile(file, []byte("mutated content\n"), 0644)
	second, err := cache.hash(file)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first != second {
		t.Error("cache recomputed a digest within the same run")
	}

	// A fresh cache sees the new content
	fresh, _ := NewHashCache().hash(file)
	if fresh == first {
		t.Error("fresh cache returned stale digest")
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestValidateCitation_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "ok.go")
	os.WriteFile(file, []byte("package ok\n"), 0644)
	hash, _ := HashFile(file)

	check := ValidateCitation(Citation{Path: "ok.go:3", FileHash: hash}, tmpDir, NewHashCache())
	if check.Status != CitationValid {
		t.Errorf("expected valid, got %s", check.Status)
	}
	if check.CurrentFileHash != hash {
		t.Errorf("expected current hash to be reported")
	}
}

func TestValidateCitation_Changed(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "moved.go")
	os.WriteFile(file, []byte("package moved\n"), 0644)
	hash, _ := HashFile(file)

	// One byte flips after the citation was recorded
	os.WriteFile(file, []byte("package moveD\n"), 0644)

	check := ValidateCitation(Citation{Path: "moved.go:3", FileHash: hash}, tmpDir, NewHashCache())
	if check.Status != CitationChanged {
		t.Errorf("expected changed, got %s", check.Status)
	}
	if check.CurrentFileHash == hash || check.CurrentFileHash == "" {
		t.Errorf("expected the new digest to be reported, got %q", check.CurrentFileHash)
	}
}

func TestValidateCitation_Missing(t *testing.T) {
	tmpDir := t.TempDir()
	check := ValidateCitation(Citation{Path: "never-existed.go:1", FileHash: "abc"}, tmpDir, NewHashCache())
	if check.Status != CitationMissing {
		t.Errorf("expected missing, got %s", check.Status)
	}
	if check.CurrentFileHash != "" {
		t.Errorf("missing files have no current hash, got %q", check.CurrentFileHash)
	}
}

func TestValidateCitation_AbsolutePath(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "abs.go")
	os.WriteFile(file, []byte("package abs\n"), 0644)
	hash, _ := HashFile(file)

	// Absolute citation paths ignore the cwd
	check := ValidateCitation(Citation{Path: file + ":9", FileHash: hash}, "/nonexistent", NewHashCache())
	if check.Status != CitationValid {
		t.Errorf("expected valid, got %s", check.Status)
	}
}

func TestValidateEntries_SharedCacheAndCounts(t *testing.T) {
	tmpDir := t.TempDir()
	shared := filepath.Join(tmpDir, "shared.go")
	os.WriteFile(shared, []byte("package shared\n"), 0644)
	hash, _ := HashFile(shared)

	entries := []*KnowledgeEntry{
		{ID: "a", Title: "A", Citations: []Citation{{Path: "shared.go:1", FileHash: hash}}},
		{ID: "b", Title: "B", Citations: []Citation{
			{Path: "shared.go:2", FileHash: hash},
			{Path: "gone.go:3", FileHash: "feed"},
		}},
		{ID: "c", Title: "C"}, // no citations
	}

	report := ValidateEntries(entries, tmpDir)
	if report.Checked != 2 || report.Uncited != 1 {
		t.Fatalf("expected 2 checked and 1 uncited, got %+v", report)
	}
	if report.Entries[0].Valid != 1 {
		t.Errorf("entry a: %+v", report.Entries[0])
	}
	if report.Entries[1].Valid != 1 || report.Entries[1].Missing != 1 {
		t.Errorf("entry b: %+v", report.Entries[1])
	}
}

func TestValidateEntries_Idempotent(t *testing.T) {
	// Validation reads hashes, never rewrites them: running twice over an
	// unchanged tree reports the same statuses.
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "steady.go")
	os.WriteFile(file, []byte("package steady\n"), 0644)
	hash, _ := HashFile(file)

	entries := []*KnowledgeEntry{
		{ID: "a", Title: "A", Citations: []Citation{{Path: "steady.go:1", FileHash: hash}}},
	}

	first := ValidateEntries(entries, tmpDir)
	second := ValidateEntries(entries, tmpDir)
	if first.Entries[0].Valid != second.Entries[0].Valid {
		t.Error("repeated validation changed the outcome")
	}
	if entries[0].Citations[0].FileHash != hash {
		t.Error("validation mutated the recorded hash")
	}
}
