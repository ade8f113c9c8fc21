package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/knowledge"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate confidence for active entries",
	Long: `Recalculate confidence scores for all active knowledge entries.

Each entry is scored against three signals: how often it has been
retrieved, how long since it was last used, and whether its recorded
citations still match the files on disk. Use --dry-run to preview the
adjustments without writing anything.`,
	RunE: runRecalc,
}

func init() {
	recalcCmd.Flags().Bool("dry-run", false, "Report adjustments without applying them")
	recalcCmd.Flags().String("namespace", "", "Restrict recalculation to one namespace")
	recalcCmd.Flags().Int("workers", 4, "Concurrent entry evaluations")
}

func runRecalc(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	namespace, _ := cmd.Flags().GetString("namespace")
	workers, _ := cmd.Flags().GetInt("workers")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	report, err := store.Recalculate(context.Background(), knowledge.RecalcOptions{
		DryRun:    dryRun,
		Namespace: namespace,
		Workers:   workers,
		CWD:       cwd,
	})
	if err != nil {
		return fmt.Errorf("recalculation failed: %w", err)
	}

	if dryRun {
		fmt.Println("🔍 Dry run, no changes written.")
	}
	for _, adj := range report.Adjustments {
		fmt.Printf("%s  %.2f → %.2f  %s\n", adj.EntryID, adj.OldConfidence, adj.NewConfidence, adj.Title)
		for _, reason := range adj.Reasons {
			fmt.Printf("    - %s\n", reason)
		}
	}
	fmt.Printf("\n📊 Scanned %d entries: %d adjusted, %d unchanged", report.Scanned, report.Applied, report.Skipped)
	if report.Errored > 0 {
		fmt.Printf(", %d errored", report.Errored)
	}
	fmt.Println()
	return nil
}
