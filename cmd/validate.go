package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/knowledge"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check citation integrity for active entries",
	Long: `Verify that the files cited by active knowledge entries still exist
and still match the content hashes recorded when the citations were made.

A "changed" citation means the file exists but its content differs from
the recorded hash; a "missing" citation means the file is gone. Paths
are resolved relative to the current working directory.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("namespace", "", "Restrict validation to one namespace")
}

func runValidate(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	namespace, _ := cmd.Flags().GetString("namespace")
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	report, err := store.ValidateCitations(context.Background(), namespace, cwd)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	clean := 0
	for _, ev := range report.Entries {
		if ev.Missing == 0 && ev.Changed == 0 {
			clean++
			continue
		}
		fmt.Printf("⚠️  %s  %s\n", ev.EntryID, ev.Title)
		for _, check := range ev.Checks {
			if check.Status == knowledge.CitationValid {
				continue
			}
			fmt.Printf("    %s: %s\n", check.Status, check.Path)
		}
	}

	fmt.Printf("\n📋 Checked %d cited entries (%d without citations): %d clean\n",
		report.Checked, report.Uncited, clean)
	return nil
}
