// Package importer ingests knowledge entries from JSON and markdown files
package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stratakb/strata/internal/knowledge"
)

// ImportResult summarizes an ingestion run
type ImportResult struct {
	FilesProcessed int           `json:"files_processed"`
	EntriesCreated int           `json:"entries_created"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// JSONImporter ingests knowledge entries from JSON or JSONL export files
type JSONImporter struct {
	store     *knowledge.Store
	namespace string // applied to entries that carry none
}

// NewJSONImporter creates a new JSON importer
func NewJSONImporter(store *knowledge.Store, defaultNamespace string) *JSONImporter {
	return &JSONImporter{store: store, namespace: defaultNamespace}
}

// ImportFromFile imports entries from a JSON array or JSONL file. Embeddings
// in the file are discarded; the store recomputes them so they always match
// the configured embedder.
func (i *JSONImporter) ImportFromFile(ctx context.Context, filePath string) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var entries []knowledge.KnowledgeEntry

	if strings.ToLower(filepath.Ext(filePath)) == ".jsonl" {
		scanner := bufio.NewScanner(file)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 10*1024*1024) // 10MB max line

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var e knowledge.KnowledgeEntry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line parse error: %v", err))
				continue
			}
			entries = append(entries, e)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scanner error: %w", err)
		}
	} else {
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(&entries); err != nil {
			// Try single entry
			file.Seek(0, 0)
			var single knowledge.KnowledgeEntry
			if err := json.NewDecoder(file).Decode(&single); err != nil {
				return nil, fmt.Errorf("failed to parse JSON: %w", err)
			}
			entries = []knowledge.KnowledgeEntry{single}
		}
	}

	result.FilesProcessed = 1
	for idx := range entries {
		e := entries[idx]
		e.ID = ""           // store assigns fresh IDs
		e.Embedding = nil   // recomputed from title + content + tags
		e.UsageCount = 0    // usage history does not transfer
		e.LastUsedAt = nil
		if e.Source == "" {
			e.Source = knowledge.SourceManual
		}
		if e.Namespace == "" {
			e.Namespace = i.namespace
		}
		if _, err := i.store.Create(ctx, &e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %q: %v", e.Title, err))
			continue
		}
		result.EntriesCreated++
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ImportFromDirectory imports all JSON/JSONL files from a directory
func (i *JSONImporter) ImportFromDirectory(ctx context.Context, dirPath string) (*ImportResult, error) {
	combined := &ImportResult{}
	start := time.Now()

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		lower := strings.ToLower(path)
		if !info.IsDir() && (strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".jsonl")) {
			result, err := i.ImportFromFile(ctx, path)
			if err != nil {
				combined.Errors = append(combined.Errors, fmt.Sprintf("%s: %v", path, err))
				return nil
			}

			combined.FilesProcessed += result.FilesProcessed
			combined.EntriesCreated += result.EntriesCreated
			combined.Errors = append(combined.Errors, result.Errors...)
		}

		return nil
	})

	combined.Duration = time.Since(start)
	return combined, err
}
