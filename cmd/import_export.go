package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/importer"
	"github.com/stratakb/strata/internal/knowledge"
)

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import knowledge entries from files",
	Long: `Import knowledge entries from a JSON/JSONL file, a markdown file, or a
directory of either. Imported entries are re-embedded on insert, so
embeddings in the source files are ignored.

Examples:
  strata import entries.json
  strata import notes/ --format markdown --namespace github.com/acme/api`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("format", "json", "Input format: json or markdown")
	importCmd.Flags().String("namespace", "", "Namespace applied to entries that carry none")
}

func runImport(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")
	namespace, _ := cmd.Flags().GetString("namespace")

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", args[0], err)
	}

	var result *importer.ImportResult
	ctx := context.Background()
	switch format {
	case "json":
		imp := importer.NewJSONImporter(store, namespace)
		if info.IsDir() {
			result, err = imp.ImportFromDirectory(ctx, args[0])
		} else {
			result, err = imp.ImportFromFile(ctx, args[0])
		}
	case "markdown":
		imp := importer.NewMarkdownImporter(store, namespace)
		if info.IsDir() {
			result, err = imp.ImportFromDirectory(ctx, args[0])
		} else {
			result, err = imp.ImportFromFile(ctx, args[0])
		}
	default:
		return fmt.Errorf("unknown format %q (expected json or markdown)", format)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("📥 Imported %d entries from %d files in %s\n",
		result.EntriesCreated, result.FilesProcessed, result.Duration.Round(time.Millisecond))
	for _, e := range result.Errors {
		fmt.Printf("   ⚠️  %s\n", e)
	}
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export knowledge entries as JSON",
	Long: `Export entries as a JSON array, to a file or stdout. Embeddings are
omitted; importing elsewhere regenerates them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("namespace", "", "Restrict export to one namespace")
	exportCmd.Flags().Int("limit", 0, "Maximum entries to export (0 = all)")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	namespace, _ := cmd.Flags().GetString("namespace")
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := store.List(context.Background(), limit, namespace)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	for i := range entries {
		entries[i].Embedding = nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}

	if len(args) == 1 {
		if err := os.WriteFile(args[0], data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[0], err)
		}
		fmt.Printf("📤 Exported %d entries to %s\n", len(entries), args[0])
		return nil
	}
	fmt.Println(string(data))
	return nil
}
