package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/git"
	"github.com/stratakb/strata/internal/knowledge"
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Record a knowledge entry",
	Long: `Record a knowledge entry with optional tags, category, and citations.

Citations are recorded as path:line with a digest of the whole referenced
file, so later validation can detect when the code moved or disappeared.
The namespace defaults to the current git repository when detectable.

Examples:
  strata add "Retry idempotent writes only" --content "POST handlers must not auto-retry"
  strata add "Worker pool sizing" --content "IO-bound pools cap at 4" --category pattern --tags "concurrency,workers"
  strata add "Connection cleanup" --content "Close iterators before the pool" --cite internal/db/pool.go:42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, args[0])
	},
}

func init() {
	addCmd.Flags().String("content", "", "Entry body (required)")
	addCmd.Flags().String("tags", "", "Comma-separated tags")
	addCmd.Flags().String("category", "", "Category: pattern, truth, principle, architecture, gotcha")
	addCmd.Flags().String("namespace", "", "Namespace (defaults to the current git repository)")
	addCmd.Flags().String("author", "", "Author")
	addCmd.Flags().String("source", "", "Source: ticket, discovery, manual (default manual)")
	addCmd.Flags().String("ticket", "", "Origin ticket ID")
	addCmd.Flags().String("ticket-type", "", "Origin ticket type")
	addCmd.Flags().String("scope", "", "Decision scope: new-only, backward-compatible, global, legacy-frozen")
	addCmd.Flags().Float64("confidence", 0, "Initial confidence (default 0.7)")
	addCmd.Flags().StringArray("cite", nil, "Citation as path:line (repeatable); the file is hashed now")
}

func runAdd(cmd *cobra.Command, title string) error {
	content, _ := cmd.Flags().GetString("content")
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("--content is required")
	}

	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	namespace, _ := cmd.Flags().GetString("namespace")
	if namespace == "" {
		if repo, err := git.GetCurrentRepository(); err == nil {
			namespace = repo.Namespace()
		}
	}

	tagsStr, _ := cmd.Flags().GetString("tags")
	var tags []string
	if tagsStr != "" {
		for _, t := range strings.Split(tagsStr, ",") {
			if s := strings.TrimSpace(t); s != "" {
				tags = append(tags, s)
			}
		}
	}

	citePaths, _ := cmd.Flags().GetStringArray("cite")
	var citations []knowledge.Citation
	for _, p := range citePaths {
		c, err := recordCitation(p)
		if err != nil {
			return fmt.Errorf("citation %q: %w", p, err)
		}
		citations = append(citations, c)
	}

	category, _ := cmd.Flags().GetString("category")
	author, _ := cmd.Flags().GetString("author")
	source, _ := cmd.Flags().GetString("source")
	ticket, _ := cmd.Flags().GetString("ticket")
	ticketType, _ := cmd.Flags().GetString("ticket-type")
	scope, _ := cmd.Flags().GetString("scope")
	confidence, _ := cmd.Flags().GetFloat64("confidence")

	entry := &knowledge.KnowledgeEntry{
		Namespace:        namespace,
		Title:            title,
		Content:          content,
		Category:         category,
		Tags:             tags,
		Source:           source,
		OriginTicketID:   ticket,
		OriginTicketType: ticketType,
		DecisionScope:    scope,
		Confidence:       confidence,
		Author:           author,
		Citations:        citations,
	}

	created, err := store.Create(context.Background(), entry)
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}

	fmt.Printf("✅ Added %s (%s)\n", created.ID, created.Title)
	if len(created.Citations) > 0 {
		fmt.Printf("   %d citation(s) recorded\n", len(created.Citations))
	}
	return nil
}

// recordCitation hashes the cited file (the whole file, not the line) and
// returns a citation ready to store.
func recordCitation(path string) (knowledge.Citation, error) {
	digest, err := knowledge.HashFile(knowledge.CitationFile(path))
	if err != nil {
		return knowledge.Citation{}, err
	}
	return knowledge.Citation{Path: path, FileHash: digest}, nil
}
