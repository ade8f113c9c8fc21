// Package knowledge provides the local knowledge ledger for Strata
package knowledge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Entry categories. Truth and architecture entries decay more slowly.
const (
	CategoryPattern      = "pattern"
	CategoryTruth        = "truth"
	CategoryPrinciple    = "principle"
	CategoryArchitecture = "architecture"
	CategoryGotcha       = "gotcha"
)

// Entry sources.
const (
	SourceTicket    = "ticket"
	SourceDiscovery = "discovery"
	SourceManual    = "manual"
)

// Decision scopes (informational; not evaluated by retrieval or maintenance).
const (
	ScopeNewOnly            = "new-only"
	ScopeBackwardCompatible = "backward-compatible"
	ScopeGlobal             = "global"
	ScopeLegacyFrozen       = "legacy-frozen"
)

// Branch markers. New entries start on the draft branch and are promoted
// to the stable branch explicitly.
const (
	DraftBranch  = "draft"
	StableBranch = "main"
)

// Confidence bounds. Confidence never leaves this range.
const (
	MinConfidence     = 0.1
	MaxConfidence     = 1.0
	DefaultConfidence = 0.7
)

// Citation links a knowledge entry to a location in code.
// Path is "relativeFile:line"; the line is a navigation hint only.
// FileHash is the digest of the entire referenced file at record time and is
// never recomputed except by explicit update of the citation.
type Citation struct {
	Path     string `json:"path"`
	FileHash string `json:"file_hash"`
}

// KnowledgeEntry is a stored piece of knowledge
type KnowledgeEntry struct {
	ID               string     `json:"id"`
	Namespace        string     `json:"namespace"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	Embedding        []float32  `json:"embedding,omitempty"`
	Category         string     `json:"category,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Source           string     `json:"source,omitempty"`
	OriginTicketID   string     `json:"origin_ticket_id,omitempty"`
	OriginTicketType string     `json:"origin_ticket_type,omitempty"`
	Confidence       float64    `json:"confidence"`
	Active           bool       `json:"active"`
	DecisionScope    string     `json:"decision_scope,omitempty"`
	UsageCount       int        `json:"usage_count"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	Citations        []Citation `json:"citations,omitempty"`
	Author           string     `json:"author,omitempty"`
	Branch           string     `json:"branch,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EmbeddingText returns the text an entry's embedding is computed from.
// Must be recomputed whenever title, content, or tags change.
func (e *KnowledgeEntry) EmbeddingText() string {
	text := e.Title + "\n" + e.Content
	for _, tag := range e.Tags {
		text += "\n" + tag
	}
	return text
}

// Searchable reports whether the entry can participate in vector retrieval.
// Entries that predate embedding support have no embedding and are skipped.
func (e *KnowledgeEntry) Searchable() bool {
	return len(e.Embedding) > 0
}

// HasTag returns true if the entry carries at least one of the given tags.
func (e *KnowledgeEntry) HasTag(tags []string) bool {
	tagSet := make(map[string]bool, len(e.Tags))
	for _, t := range e.Tags {
		tagSet[t] = true
	}
	for _, t := range tags {
		if tagSet[t] {
			return true
		}
	}
	return false
}

// clampConfidence keeps confidence inside [MinConfidence, MaxConfidence].
func clampConfidence(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// slowDecayCategory reports whether the category uses reduced staleness
// penalties.
func slowDecayCategory(category string) bool {
	return category == CategoryTruth || category == CategoryArchitecture
}

// generateID returns a time-derived unique identifier. The millisecond
// prefix keeps IDs roughly creation-ordered; the random suffix breaks
// same-millisecond collisions.
func generateID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%012x-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
