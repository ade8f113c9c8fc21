package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/git"
	"github.com/stratakb/strata/internal/knowledge"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search knowledge entries semantically",
	Long: `Search knowledge entries by semantic similarity to a query.

Results are ranked by cosine similarity and filtered by the given flags.
With --with-working-branch the stable branch and the current git branch
are searched together, so draft knowledge from in-progress work surfaces
alongside promoted entries.

Examples:
  strata search "connection pooling"
  strata search "retry policy" --category gotcha --tags "http,client"
  strata search "worker sizing" --min-score 0.3 --limit 5
  strata search "cache invalidation" --with-working-branch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0])
	},
}

func init() {
	searchCmd.Flags().Int("limit", 10, "Maximum results")
	searchCmd.Flags().String("namespace", "", "Filter by namespace")
	searchCmd.Flags().String("category", "", "Filter by category")
	searchCmd.Flags().String("tags", "", "Comma-separated tags (match any)")
	searchCmd.Flags().String("author", "", "Filter by author")
	searchCmd.Flags().String("branch", "", "Filter by exact branch marker")
	searchCmd.Flags().Bool("with-working-branch", false, "Search the stable branch plus the current git branch")
	searchCmd.Flags().String("ticket-type", "", "Filter by origin ticket type")
	searchCmd.Flags().Float64("min-score", 0, "Drop results scoring below this similarity")
}

func runSearch(cmd *cobra.Command, query string) error {
	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	filter := knowledge.FilterSpec{}
	filter.Namespace, _ = cmd.Flags().GetString("namespace")
	filter.Category, _ = cmd.Flags().GetString("category")
	filter.Author, _ = cmd.Flags().GetString("author")
	filter.Branch, _ = cmd.Flags().GetString("branch")
	filter.TicketType, _ = cmd.Flags().GetString("ticket-type")

	tagsStr, _ := cmd.Flags().GetString("tags")
	if tagsStr != "" {
		for _, t := range strings.Split(tagsStr, ",") {
			if s := strings.TrimSpace(t); s != "" {
				filter.Tags = append(filter.Tags, s)
			}
		}
	}

	if withWorking, _ := cmd.Flags().GetBool("with-working-branch"); withWorking {
		branches := []string{knowledge.StableBranch}
		if repo, err := git.GetCurrentRepository(); err == nil {
			if branch, err := repo.CurrentBranch(); err == nil && branch != knowledge.StableBranch {
				branches = append(branches, branch)
			}
		}
		filter.Branches = branches
	}

	if cmd.Flags().Changed("min-score") {
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		filter.MinScore = &minScore
	}

	limit, _ := cmd.Flags().GetInt("limit")

	results, err := store.SearchText(context.Background(), query, filter, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching entries.")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%.3f  %s  %s\n", r.Score, r.Entry.ID, r.Entry.Title)
		if r.Entry.Category != "" || len(r.Entry.Tags) > 0 {
			fmt.Printf("       %s", r.Entry.Category)
			if len(r.Entry.Tags) > 0 {
				fmt.Printf(" [%s]", strings.Join(r.Entry.Tags, ", "))
			}
			fmt.Println()
		}
		fmt.Printf("       %s\n", summarize(r.Entry.Content, 100))
	}
	return nil
}

// summarize returns the first line of content, truncated to at most max
// runes. Truncation counts runes, not bytes, so multi-byte characters are
// never split mid-sequence.
func summarize(content string, max int) string {
	if idx := strings.Index(content, "\n"); idx > 0 {
		content = content[:idx]
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
