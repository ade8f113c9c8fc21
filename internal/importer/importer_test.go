package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratakb/strata/internal/knowledge"
)

func setupTestStore(t *testing.T) (*knowledge.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "strata-import-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	originalDataDir := os.Getenv("STRATA_DATA_DIR")
	os.Setenv("STRATA_DATA_DIR", tmpDir)

	store, err := knowledge.NewStore()
	if err != nil {
		os.RemoveAll(tmpDir)
		os.Setenv("STRATA_DATA_DIR", originalDataDir)
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
		os.Setenv("STRATA_DATA_DIR", originalDataDir)
	}
	return store, cleanup
}

// =============================================================================
// JSON Import Tests
// =============================================================================

func TestJSONImporter_Array(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	entries := []knowledge.KnowledgeEntry{
		{Title: "First", Content: "first body", Tags: []string{"a"}},
		{Title: "Second", Content: "second body"},
	}
	data, _ := json.Marshal(entries)

	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "entries.json")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatal(err)
	}

	imp := NewJSONImporter(store, "")
	result, err := imp.ImportFromFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if result.EntriesCreated != 2 {
		t.Errorf("expected 2 entries created, got %d (errors: %v)", result.EntriesCreated, result.Errors)
	}
}

func TestJSONImporter_JSONL(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	jsonl := `{"title":"Line one","content":"line one body"}
{"title":"Line two","content":"line two body"}

{"title":"Line three","content":"line three body"}
`
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "entries.jsonl")
	os.WriteFile(file, []byte(jsonl), 0644)

	result, err := NewJSONImporter(store, "").ImportFromFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if result.EntriesCreated != 3 {
		t.Errorf("expected 3 entries, got %d", result.EntriesCreated)
	}
}

func TestJSONImporter_SingleObject(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "one.json")
	os.WriteFile(file, []byte(`{"title":"Solo","content":"solo body"}`), 0644)

	result, err := NewJSONImporter(store, "").ImportFromFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if result.EntriesCreated != 1 {
		t.Errorf("expected 1 entry, got %d", result.EntriesCreated)
	}
}

func TestJSONImporter_AppliesDefaultNamespace(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "mixed.json")
	os.WriteFile(file, []byte(`[
		{"title":"No namespace","content":"gets the default"},
		{"title":"Has namespace","content":"keeps its own","namespace":"github.com/acme/web"}
	]`), 0644)

	ctx := context.Background()
	_, err := NewJSONImporter(store, "github.com/acme/api").ImportFromFile(ctx, file)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}

	defaulted, _ := store.List(ctx, 0, "github.com/acme/api")
	kept, _ := store.List(ctx, 0, "github.com/acme/web")
	if len(defaulted) != 1 || len(kept) != 1 {
		t.Errorf("expected one entry per namespace, got %d and %d", len(defaulted), len(kept))
	}
}

func TestJSONImporter_ResetsDerivedFields(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "stale.json")
	os.WriteFile(file, []byte(`[{"id":"imported-id","title":"Reset","content":"reset body","usage_count":99,"embedding":[0.1,0.2]}]`), 0644)

	ctx := context.Background()
	if _, err := NewJSONImporter(store, "").ImportFromFile(ctx, file); err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}

	entries, _ := store.List(ctx, 0, "")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "imported-id" {
		t.Error("imported ID should be replaced with a fresh one")
	}
	if e.UsageCount != 0 {
		t.Errorf("usage history must not transfer, got %d", e.UsageCount)
	}
	if len(e.Embedding) == 2 {
		t.Error("embedding should be recomputed, not imported")
	}
}

func TestJSONImporter_Directory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "a.json"), []byte(`[{"title":"A","content":"a body"}]`), 0644)
	os.WriteFile(filepath.Join(tmpDir, "b.jsonl"), []byte(`{"title":"B","content":"b body"}`), 0644)
	os.WriteFile(filepath.Join(tmpDir, "ignored.txt"), []byte("not json"), 0644)

	result, err := NewJSONImporter(store, "").ImportFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("ImportFromDirectory failed: %v", err)
	}
	if result.FilesProcessed != 2 || result.EntriesCreated != 2 {
		t.Errorf("expected 2 files and 2 entries, got %d files %d entries", result.FilesProcessed, result.EntriesCreated)
	}
}

// =============================================================================
// Markdown Import Tests
// =============================================================================

func TestParseMarkdownEntry_FrontMatter(t *testing.T) {
	text := `---
namespace: github.com/acme/api
category: gotcha
tags: http, retry
author: sam
---
# Retry only idempotent requests

POST handlers must never auto-retry.
`
	e := parseMarkdownEntry(text)
	if e.Namespace != "github.com/acme/api" {
		t.Errorf("namespace = %q", e.Namespace)
	}
	if e.Category != "gotcha" {
		t.Errorf("category = %q", e.Category)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "http" || e.Tags[1] != "retry" {
		t.Errorf("tags = %v", e.Tags)
	}
	if e.Author != "sam" {
		t.Errorf("author = %q", e.Author)
	}
	if e.Title != "Retry only idempotent requests" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Content != "POST handlers must never auto-retry." {
		t.Errorf("content = %q", e.Content)
	}
}

func TestParseMarkdownEntry_NoFrontMatter(t *testing.T) {
	e := parseMarkdownEntry("# Just a heading\n\nAnd a body.\n")
	if e.Title != "Just a heading" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Content != "And a body." {
		t.Errorf("content = %q", e.Content)
	}
	if e.Source != knowledge.SourceManual {
		t.Errorf("expected manual source, got %q", e.Source)
	}
}

func TestMarkdownImporter_FileNameFallbackTitle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "untitled-note.md")
	os.WriteFile(file, []byte("Body without a heading.\n"), 0644)

	ctx := context.Background()
	result, err := NewMarkdownImporter(store, "").ImportFromFile(ctx, file)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if result.EntriesCreated != 1 {
		t.Fatalf("expected 1 entry, got %d", result.EntriesCreated)
	}

	entries, _ := store.List(ctx, 0, "")
	if entries[0].Title != "untitled-note" {
		t.Errorf("expected file-name title, got %q", entries[0].Title)
	}
}

func TestMarkdownImporter_Directory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "one.md"), []byte("# One\n\none body\n"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "two.md"), []byte("# Two\n\ntwo body\n"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "skip.txt"), []byte("not markdown"), 0644)

	result, err := NewMarkdownImporter(store, "").ImportFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("ImportFromDirectory failed: %v", err)
	}
	if result.EntriesCreated != 2 {
		t.Errorf("expected 2 entries, got %d", result.EntriesCreated)
	}
}
