package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var consolidateDryRun bool

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run a consolidation pass",
	Long: `Recompute decay, promote eligible memories, evict stale ones, merge
similar short-term entries, and evolve hub salience, in one transaction.`,
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := eng.Consolidate(ctx, consolidateDryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("promoted=%d deleted=%d merged=%d salience_evolved=%d\n",
			result.Consolidated, result.Deleted, result.Merged, result.SalienceEvolved)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory counts by type and category",
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		stats, err := eng.MemoryStats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("total: %d\n", stats.Total)
		fmt.Printf("database size: %d bytes\n", stats.DatabaseBytes)
		fmt.Println("by type:")
		for t, count := range stats.ByType {
			fmt.Printf("  %s: %d\n", t, count)
		}
		fmt.Println("by category:")
		for c, count := range stats.ByCategory {
			fmt.Printf("  %s: %d\n", c, count)
		}
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(statsCmd)

	consolidateCmd.Flags().BoolVar(&consolidateDryRun, "dry-run", false, "preview without mutating")
}
