package knowledge

import (
	"strings"
	"testing"
)

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0.0, MinConfidence},
		{-1.0, MinConfidence},
		{1.0, MaxConfidence},
		{1.5, MaxConfidence},
		{MinConfidence, MinConfidence},
		{MaxConfidence, MaxConfidence},
	}
	for _, tt := range tests {
		if got := clampConfidence(tt.in); got != tt.want {
			t.Errorf("clampConfidence(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestSlowDecayCategory(t *testing.T) {
	slow := []string{CategoryTruth, CategoryArchitecture}
	fast := []string{CategoryPattern, CategoryPrinciple, CategoryGotcha, "", "unknown"}

	for _, c := range slow {
		if !slowDecayCategory(c) {
			t.Errorf("expected %q to decay slowly", c)
		}
	}
	for _, c := range fast {
		if slowDecayCategory(c) {
			t.Errorf("expected %q to decay at the normal rate", c)
		}
	}
}

func TestEmbeddingText(t *testing.T) {
	e := &KnowledgeEntry{
		Title:   "Pool sizing",
		Content: "cap at four",
		Tags:    []string{"db", "pool"},
	}
	text := e.EmbeddingText()
	for _, part := range []string{"Pool sizing", "cap at four", "db", "pool"} {
		if !strings.Contains(text, part) {
			t.Errorf("embedding text missing %q: %q", part, text)
		}
	}

	// Tag changes must change the text so re-embedding is forced
	e.Tags = []string{"db"}
	if e.EmbeddingText() == text {
		t.Error("removing a tag did not change the embedding text")
	}
}

func TestHasTag(t *testing.T) {
	e := &KnowledgeEntry{Tags: []string{"http", "retry"}}

	if !e.HasTag([]string{"retry"}) {
		t.Error("expected match on present tag")
	}
	if !e.HasTag([]string{"tls", "http"}) {
		t.Error("expected any-of semantics")
	}
	if e.HasTag([]string{"tls", "grpc"}) {
		t.Error("expected no match for absent tags")
	}
	if e.HasTag(nil) {
		t.Error("expected no match for empty query tags")
	}
}

func TestSearchable(t *testing.T) {
	with := &KnowledgeEntry{Embedding: []float32{0.1, 0.2}}
	without := &KnowledgeEntry{}

	if !with.Searchable() {
		t.Error("entry with embedding should be searchable")
	}
	if without.Searchable() {
		t.Error("entry without embedding predates embedding support and is skipped")
	}
}

func TestGenerateID_Format(t *testing.T) {
	id := generateID()
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		t.Fatalf("expected millis-random format, got %q", id)
	}
	if len(parts[0]) != 12 {
		t.Errorf("expected 12-char millisecond prefix, got %q", parts[0])
	}
	if len(parts[1]) != 8 {
		t.Errorf("expected 8-char random suffix, got %q", parts[1])
	}
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := generateID()
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
	}
}
