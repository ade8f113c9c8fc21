package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/knowledge"
	"github.com/stratakb/strata/internal/pack"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Create, inspect, and install knowledge packs",
	Long: `Knowledge packs bundle entries into a single shareable file so a team
can distribute curated knowledge between machines and repositories.`,
}

var packCreateCmd = &cobra.Command{
	Use:   "create <output-file>",
	Short: "Bundle entries into a pack file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackCreate,
}

var packInspectCmd = &cobra.Command{
	Use:   "inspect <pack-file>",
	Short: "Show a pack's manifest without installing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackInspect,
}

var packInstallCmd = &cobra.Command{
	Use:   "install <pack-file>",
	Short: "Install a pack's entries into the local store",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackInstall,
}

func init() {
	packCreateCmd.Flags().String("name", "", "Pack name (required)")
	packCreateCmd.Flags().String("description", "", "Pack description")
	packCreateCmd.Flags().String("author", "", "Pack author")
	packCreateCmd.Flags().String("namespace", "", "Only bundle entries from this namespace")
	packCreateCmd.Flags().String("tags", "", "Comma-separated tags describing the pack")
	packCreateCmd.MarkFlagRequired("name")

	packCmd.AddCommand(packCreateCmd, packInspectCmd, packInstallCmd)
}

func runPackCreate(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	author, _ := cmd.Flags().GetString("author")
	namespace, _ := cmd.Flags().GetString("namespace")
	tagsStr, _ := cmd.Flags().GetString("tags")

	var tags []string
	for _, t := range strings.Split(tagsStr, ",") {
		if s := strings.TrimSpace(t); s != "" {
			tags = append(tags, s)
		}
	}

	pointers, err := store.ActiveEntries(context.Background(), namespace)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	if len(pointers) == 0 {
		return fmt.Errorf("no active entries to pack")
	}

	entries := make([]knowledge.KnowledgeEntry, 0, len(pointers))
	for _, e := range pointers {
		clone := *e
		clone.Embedding = nil // installers re-embed with their own embedder
		entries = append(entries, clone)
	}

	manifest := pack.Manifest{
		ID:          strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:        name,
		Description: description,
		Author:      author,
		Namespace:   namespace,
		Version:     "1",
		CreatedAt:   time.Now(),
		EntryCount:  len(entries),
		Tags:        tags,
	}

	if err := pack.Package(manifest, entries, args[0]); err != nil {
		return fmt.Errorf("failed to create pack: %w", err)
	}
	fmt.Printf("📦 Packed %d entries into %s\n", len(entries), args[0])
	return nil
}

func runPackInspect(cmd *cobra.Command, args []string) error {
	manifest, err := pack.Inspect(args[0])
	if err != nil {
		return fmt.Errorf("failed to inspect pack: %w", err)
	}

	fmt.Printf("📦 %s\n", manifest.Name)
	if manifest.Description != "" {
		fmt.Printf("   %s\n", manifest.Description)
	}
	if manifest.Author != "" {
		fmt.Printf("   Author:    %s\n", manifest.Author)
	}
	if manifest.Namespace != "" {
		fmt.Printf("   Namespace: %s\n", manifest.Namespace)
	}
	fmt.Printf("   Entries:   %d\n", manifest.EntryCount)
	fmt.Printf("   Created:   %s\n", manifest.CreatedAt.Format("2006-01-02"))
	if len(manifest.Tags) > 0 {
		fmt.Printf("   Tags:      %s\n", strings.Join(manifest.Tags, ", "))
	}
	return nil
}

func runPackInstall(cmd *cobra.Command, args []string) error {
	payload, err := pack.Unpack(args[0])
	if err != nil {
		return fmt.Errorf("failed to read pack: %w", err)
	}

	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	created := 0
	skipped := 0
	for idx := range payload.Entries {
		e := payload.Entries[idx]
		e.ID = ""
		e.Embedding = nil
		e.UsageCount = 0
		e.LastUsedAt = nil
		if _, err := store.Create(ctx, &e); err != nil {
			fmt.Printf("   ⚠️  %q: %v\n", e.Title, err)
			continue
		}
		// Create leaves the input ID empty when it deduplicated
		if e.ID == "" {
			skipped++
			continue
		}
		created++
	}

	fmt.Printf("📥 Installed %s: %d entries", payload.Manifest.Name, created)
	if skipped > 0 {
		fmt.Printf(" (%d duplicates skipped)", skipped)
	}
	fmt.Println()
	return nil
}
