package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelv2/claude-cortex-core/internal/engine"
)

var exportProject string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export memories as a JSON array",
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		memories, err := eng.ExportMemories(exportProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(memories); err != nil {
			fmt.Fprintf(os.Stderr, "error encoding export: %v\n", err)
			os.Exit(1)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import memories from a JSON array, skipping duplicates",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening import file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		var data []*engine.ExportedMemory
		if err := json.NewDecoder(f).Decode(&data); err != nil {
			fmt.Fprintf(os.Stderr, "error decoding import file: %v\n", err)
			os.Exit(1)
		}

		result, err := eng.ImportMemories(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("imported=%d skipped=%d\n", result.Imported, result.Skipped)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringVar(&exportProject, "project", "", "project scope (defaults to all)")
}
