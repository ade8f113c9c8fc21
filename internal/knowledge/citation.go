package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CitationStatus classifies the outcome of an integrity check.
type CitationStatus string

const (
	// CitationValid means the file digest matches the recorded hash.
	CitationValid CitationStatus = "valid"
	// CitationChanged means the file exists but its digest moved. The cited
	// code still exists somewhere, so this is informational only.
	CitationChanged CitationStatus = "changed"
	// CitationMissing means the file is gone or unreadable.
	CitationMissing CitationStatus = "missing"
)

// CitationCheck is the result of validating a single citation.
type CitationCheck struct {
	Path            string         `json:"path"`
	Status          CitationStatus `json:"status"`
	CurrentFileHash string         `json:"current_file_hash,omitempty"`
}

// hashBytes computes the SHA-256 hex digest of content.
func hashBytes(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// HashFile computes the content digest of the entire file. Citations always
// hash whole files, never line ranges.
func HashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(content), nil
}

// HashCache memoizes file digests for one validation run so a file cited by
// multiple entries is hashed once. Safe for concurrent use; workers in a
// parallel batch share a single cache keyed on resolved path.
type HashCache struct {
	mu      sync.Mutex
	digests map[string]string
}

// NewHashCache creates an empty per-run digest cache.
func NewHashCache() *HashCache {
	return &HashCache{digests: make(map[string]string)}
}

func (c *HashCache) hash(path string) (string, error) {
	c.mu.Lock()
	if digest, ok := c.digests[path]; ok {
		c.mu.Unlock()
		return digest, nil
	}
	c.mu.Unlock()

	// Hash outside the lock; file I/O dominates cost. A racing duplicate
	// hash of the same unchanged file produces the same digest.
	digest, err := HashFile(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.digests[path] = digest
	c.mu.Unlock()
	return digest, nil
}

// CitationFile strips the ":line" navigation suffix from a citation path,
// leaving the file component. Both recording and validation resolve paths
// through it so a citation always hashes and re-checks the same file.
func CitationFile(path string) string {
	idx := strings.LastIndex(path, ":")
	if idx <= 0 {
		return path
	}
	suffix := path[idx+1:]
	if suffix == "" {
		return path[:idx]
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return path
		}
	}
	return path[:idx]
}

// ValidateCitation checks whether the file a citation points at is unchanged.
// The recorded hash is only read for comparison, never rewritten here.
func ValidateCitation(c Citation, cwd string, cache *HashCache) CitationCheck {
	check := CitationCheck{Path: c.Path}

	file := CitationFile(c.Path)
	resolved := file
	if !filepath.IsAbs(file) {
		resolved = filepath.Join(cwd, file)
	}

	digest, err := cache.hash(resolved)
	if err != nil {
		check.Status = CitationMissing
		return check
	}

	check.CurrentFileHash = digest
	if digest == c.FileHash {
		check.Status = CitationValid
	} else {
		check.Status = CitationChanged
	}
	return check
}

// EntryValidation aggregates citation checks for one entry.
type EntryValidation struct {
	EntryID string          `json:"entry_id"`
	Title   string          `json:"title"`
	Valid   int             `json:"valid"`
	Changed int             `json:"changed"`
	Missing int             `json:"missing"`
	Total   int             `json:"total"`
	Checks  []CitationCheck `json:"checks,omitempty"`
}

// ValidationReport summarizes citation health across a batch of entries.
// Uncited entries are counted separately; having no citations is not a
// validation failure.
type ValidationReport struct {
	Entries []EntryValidation `json:"entries"`
	Checked int               `json:"checked"`
	Uncited int               `json:"uncited"`
}

// validateEntryCitations runs the validator over one entry's citations.
func validateEntryCitations(e *KnowledgeEntry, cwd string, cache *HashCache) EntryValidation {
	ev := EntryValidation{
		EntryID: e.ID,
		Title:   e.Title,
		Total:   len(e.Citations),
	}
	for _, c := range e.Citations {
		check := ValidateCitation(c, cwd, cache)
		ev.Checks = append(ev.Checks, check)
		switch check.Status {
		case CitationValid:
			ev.Valid++
		case CitationChanged:
			ev.Changed++
		case CitationMissing:
			ev.Missing++
		}
	}
	return ev
}

// ValidateEntries checks citation integrity for every given entry, sharing
// one hash cache across the batch. A single unreadable file degrades that
// citation to missing without affecting other citations or entries.
func ValidateEntries(entries []*KnowledgeEntry, cwd string) ValidationReport {
	cache := NewHashCache()
	report := ValidationReport{}
	for _, e := range entries {
		if len(e.Citations) == 0 {
			report.Uncited++
			continue
		}
		report.Entries = append(report.Entries, validateEntryCitations(e, cwd, cache))
		report.Checked++
	}
	return report
}
