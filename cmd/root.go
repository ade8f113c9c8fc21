package cmd

import (
	"github.com/spf13/cobra"
)

// Build-time variables
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// SetVersion sets the version info from main
func SetVersion(v, c, d string) {
	Version = v
	Commit = c
	Date = d
}

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata - Knowledge Ledger",
	Long:  "Local-first knowledge tracking for AI-assisted development.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the strata command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// add (defined in add.go)
	rootCmd.AddCommand(addCmd)

	// search (defined in search.go)
	rootCmd.AddCommand(searchCmd)

	// recalc, validate (defined in recalc.go, validate.go)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(validateCmd)

	// status, version, promote, deactivate (defined in misc.go)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(deactivateCmd)

	// import, export (defined in import_export.go)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	// pack (defined in pack.go)
	rootCmd.AddCommand(packCmd)

	// doctor (defined in doctor.go)
	rootCmd.AddCommand(doctorCmd)
}
