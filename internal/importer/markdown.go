package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stratakb/strata/internal/knowledge"
)

// MarkdownImporter ingests knowledge entries from markdown notes. Each file
// becomes one entry: the first level-1 heading is the title (falling back to
// the file name), the rest is content, and an optional front matter block
// supplies namespace, category, tags, author, and source.
type MarkdownImporter struct {
	store     *knowledge.Store
	namespace string // applied to entries that carry none
}

// NewMarkdownImporter creates a new markdown importer
func NewMarkdownImporter(store *knowledge.Store, defaultNamespace string) *MarkdownImporter {
	return &MarkdownImporter{store: store, namespace: defaultNamespace}
}

// ImportFromFile imports one markdown file as a knowledge entry
func (i *MarkdownImporter) ImportFromFile(ctx context.Context, filePath string) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	e := parseMarkdownEntry(string(data))
	if e.Title == "" {
		base := filepath.Base(filePath)
		e.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if strings.TrimSpace(e.Content) == "" {
		return nil, fmt.Errorf("no content in %s", filePath)
	}
	if e.Namespace == "" {
		e.Namespace = i.namespace
	}

	result.FilesProcessed = 1
	if _, err := i.store.Create(ctx, e); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filePath, err))
	} else {
		result.EntriesCreated++
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ImportFromDirectory imports all markdown files from a directory
func (i *MarkdownImporter) ImportFromDirectory(ctx context.Context, dirPath string) (*ImportResult, error) {
	combined := &ImportResult{}
	start := time.Now()

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}

		result, err := i.ImportFromFile(ctx, path)
		if err != nil {
			combined.Errors = append(combined.Errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}

		combined.FilesProcessed += result.FilesProcessed
		combined.EntriesCreated += result.EntriesCreated
		combined.Errors = append(combined.Errors, result.Errors...)
		return nil
	})

	combined.Duration = time.Since(start)
	return combined, err
}

// parseMarkdownEntry splits an optional front matter block and the body into
// a knowledge entry. Front matter is a leading "---" fence with key: value
// lines; unknown keys are ignored.
func parseMarkdownEntry(text string) *knowledge.KnowledgeEntry {
	e := &knowledge.KnowledgeEntry{Source: knowledge.SourceManual}

	body := text
	if strings.HasPrefix(text, "---\n") {
		rest := text[4:]
		if end := strings.Index(rest, "\n---"); end >= 0 {
			for _, line := range strings.Split(rest[:end], "\n") {
				key, value, ok := strings.Cut(line, ":")
				if !ok {
					continue
				}
				key = strings.TrimSpace(strings.ToLower(key))
				value = strings.TrimSpace(value)
				switch key {
				case "namespace":
					e.Namespace = value
				case "category":
					e.Category = value
				case "author":
					e.Author = value
				case "source":
					e.Source = value
				case "scope", "decision-scope":
					e.DecisionScope = value
				case "tags":
					for _, t := range strings.Split(value, ",") {
						if tag := strings.TrimSpace(t); tag != "" {
							e.Tags = append(e.Tags, tag)
						}
					}
				}
			}
			body = strings.TrimPrefix(rest[end+4:], "\n")
		}
	}

	// First level-1 heading becomes the title
	lines := strings.Split(body, "\n")
	var contentLines []string
	for _, line := range lines {
		if e.Title == "" && strings.HasPrefix(line, "# ") {
			e.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			continue
		}
		contentLines = append(contentLines, line)
	}
	e.Content = strings.TrimSpace(strings.Join(contentLines, "\n"))

	return e
}
