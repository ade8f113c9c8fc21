package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stratakb/strata/internal/git"
	"github.com/stratakb/strata/internal/knowledge"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the local strata installation",
	Long: `Check the data directory, database, vector index, embedding provider,
and git detection, reporting anything that would degrade retrieval.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("🩺 Strata Doctor")
	ok := true

	// Data directory
	dataDir := os.Getenv("STRATA_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Printf("   ❌ Cannot resolve home directory: %v\n", err)
			return nil
		}
		dataDir = filepath.Join(home, ".strata")
	}
	if info, err := os.Stat(dataDir); err != nil {
		fmt.Printf("   ⚠️  Data directory %s does not exist yet (created on first add)\n", dataDir)
	} else if !info.IsDir() {
		fmt.Printf("   ❌ %s exists but is not a directory\n", dataDir)
		ok = false
	} else {
		fmt.Printf("   ✅ Data directory: %s\n", dataDir)
	}

	// Database + vector index
	store, err := knowledge.NewStore()
	if err != nil {
		fmt.Printf("   ❌ Cannot open database: %v\n", err)
		return nil
	}
	defer store.Close()

	count, err := store.Count(context.Background())
	if err != nil {
		fmt.Printf("   ❌ Database query failed: %v\n", err)
		ok = false
	} else {
		fmt.Printf("   ✅ Database reachable (%d active entries)\n", count)
	}

	if store.VecIndexAvailable() {
		fmt.Println("   ✅ Vector index available (sqlite-vec)")
	} else {
		fmt.Println("   ⚠️  Vector index unavailable, search falls back to linear scan")
	}

	// Embedding provider
	provider := os.Getenv("STRATA_EMBEDDINGS")
	if provider == "" {
		provider = "local"
	}
	switch provider {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			fmt.Println("   ❌ STRATA_EMBEDDINGS=openai but OPENAI_API_KEY is not set")
			ok = false
		} else {
			fmt.Println("   ✅ Embeddings: OpenAI")
		}
	case "gemini":
		if os.Getenv("GEMINI_API_KEY") == "" {
			fmt.Println("   ❌ STRATA_EMBEDDINGS=gemini but GEMINI_API_KEY is not set")
			ok = false
		} else {
			fmt.Println("   ✅ Embeddings: Gemini")
		}
	default:
		fmt.Printf("   ✅ Embeddings: local (%d dimensions, no API required)\n",
			store.GetEmbedderDimensions())
	}

	// Git detection
	if repo, err := git.GetCurrentRepository(); err != nil {
		fmt.Println("   ⚠️  No git repository detected, entries default to no namespace")
	} else {
		fmt.Printf("   ✅ Git namespace: %s\n", repo.Namespace())
		if branch, err := repo.CurrentBranch(); err == nil {
			fmt.Printf("   ✅ Current branch: %s\n", branch)
		}
	}

	if ok {
		fmt.Println("\n✨ Everything looks healthy.")
	} else {
		fmt.Println("\n⚠️  Problems found, see above.")
	}
	return nil
}
