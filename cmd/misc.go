package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/knowledge"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := knowledge.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open knowledge store: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		count, err := store.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}
		size, _ := store.Size()
		lastActivity, err := store.LastActivity(ctx)
		if err != nil {
			return fmt.Errorf("failed to read last activity: %w", err)
		}

		fmt.Println("📊 Strata Status")
		fmt.Printf("   Entries:       %d\n", count)
		fmt.Printf("   Database size: %s\n", size)
		if !lastActivity.IsZero() {
			fmt.Printf("   Last activity: %s\n", lastActivity.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("   Last activity: never")
		}
		if store.VecIndexAvailable() {
			fmt.Println("   Vector index:  available")
		} else {
			fmt.Println("   Vector index:  unavailable (linear scan)")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("strata %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <entry-id>",
	Short: "Promote a draft entry to the stable branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := knowledge.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open knowledge store: %w", err)
		}
		defer store.Close()

		if err := store.Promote(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to promote entry: %w", err)
		}
		fmt.Printf("✅ Promoted %s to %s\n", args[0], knowledge.StableBranch)
		return nil
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <entry-id>",
	Short: "Deactivate a knowledge entry",
	Long: `Mark an entry inactive. Inactive entries are excluded from search,
confidence recalculation, and citation validation, but remain in the
database for audit purposes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := knowledge.NewStore()
		if err != nil {
			return fmt.Errorf("failed to open knowledge store: %w", err)
		}
		defer store.Close()

		if err := store.Deactivate(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to deactivate entry: %w", err)
		}
		fmt.Printf("🚫 Deactivated %s\n", args[0])
		return nil
	},
}
