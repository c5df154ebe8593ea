package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelv2/claude-cortex-core/internal/engine"
	"github.com/michaelv2/claude-cortex-core/internal/store"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
	"github.com/michaelv2/claude-cortex-core/pkg/config"
)

var (
	rememberCategory string
	rememberTags     []string
	rememberProject  string

	recallLimit   int
	recallProject string
	recallCategory string

	forgetCategory  string
	forgetOlderThan string
	forgetDryRun    bool
	forgetConfirm   bool
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a memory",
	Long: `Store a new memory with the given content.

Examples:
  claude-cortex remember "we decided to use SQLite for storage" --category architecture
  claude-cortex remember "prefer table-driven tests" --tags testing,go`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRemember(strings.Join(args, " "))
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search memories by relevance",
	Long: `Search stored memories, blending full-text match with salience and decay.

Examples:
  claude-cortex recall "storage decision"
  claude-cortex recall "bug" --category error --limit 5`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecall(strings.Join(args, " "))
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete memories matching filters",
	Long: `Delete memories by category or age, previewing the count before a
bulk delete that exceeds the safety threshold.

Examples:
  claude-cortex forget --category note --older-than 720h --dry-run
  claude-cortex forget --category note --older-than 720h --confirm`,
	Run: func(cmd *cobra.Command, args []string) {
		runForget()
	},
}

func init() {
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(forgetCmd)

	rememberCmd.Flags().StringVarP(&rememberCategory, "category", "c", "", "category (architecture, pattern, preference, error, context, learning, todo, note, relationship, custom)")
	rememberCmd.Flags().StringSliceVarP(&rememberTags, "tags", "t", nil, "tags (comma-separated)")
	rememberCmd.Flags().StringVarP(&rememberProject, "project", "p", "", "project scope (defaults to the current project)")

	recallCmd.Flags().IntVarP(&recallLimit, "limit", "l", 10, "maximum results")
	recallCmd.Flags().StringVarP(&recallProject, "project", "p", "", "project scope")
	recallCmd.Flags().StringVarP(&recallCategory, "category", "c", "", "filter by category")

	forgetCmd.Flags().StringVarP(&forgetCategory, "category", "c", "", "filter by category")
	forgetCmd.Flags().StringVar(&forgetOlderThan, "older-than", "", "filter by age (Go duration, e.g. 720h)")
	forgetCmd.Flags().BoolVar(&forgetDryRun, "dry-run", false, "preview without deleting")
	forgetCmd.Flags().BoolVar(&forgetConfirm, "confirm", false, "proceed even if the match count exceeds the safety threshold")
}

func openEngine() *engine.Engine {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureConfigDir(); err != nil {
		fmt.Fprintf(os.Stderr, "error preparing config directory: %v\n", err)
		os.Exit(1)
	}

	eng, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening engine: %v\n", err)
		os.Exit(1)
	}
	return eng
}

func runRemember(content string) {
	eng := openEngine()
	defer eng.Close()

	id, err := eng.Remember(&engine.RememberOptions{
		Content:  content,
		Category: storage.Category(rememberCategory),
		Tags:     rememberTags,
		Project:  rememberProject,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error storing memory: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Memory stored.")
	fmt.Printf("id: %s\n", id)
}

func runRecall(query string) {
	eng := openEngine()
	defer eng.Close()

	results, err := eng.Recall(&engine.RecallOptions{
		Query:         query,
		Project:       recallProject,
		Category:      storage.Category(recallCategory),
		Limit:         recallLimit,
		IncludeGlobal: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error searching: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("no matching memories")
		return
	}

	for _, r := range results {
		fmt.Printf("[%.3f] %s  %s\n", r.Relevance, r.Memory.ID, r.Memory.Title)
		fmt.Printf("  %s\n", truncateForDisplay(r.Memory.Content, 160))
	}
}

func runForget() {
	eng := openEngine()
	defer eng.Close()

	var olderThan time.Duration
	if forgetOlderThan != "" {
		d, err := time.ParseDuration(forgetOlderThan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --older-than duration: %v\n", err)
			os.Exit(1)
		}
		olderThan = d
	}

	result, err := eng.Forget(&store.ForgetOptions{
		Category:  storage.Category(forgetCategory),
		OlderThan: olderThan,
		DryRun:    forgetDryRun,
		Confirm:   forgetConfirm,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if forgetDryRun {
		fmt.Printf("%d memories would be deleted\n", len(result.Preview))
		return
	}
	fmt.Printf("%d memories deleted\n", result.Deleted)
}

func truncateForDisplay(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
