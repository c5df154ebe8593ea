package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelv2/claude-cortex-core/internal/logging"
)

// Version is set during build.
var Version = "0.1.0"

var (
	mcpMode bool
	quiet   bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "claude-cortex",
	Short: "Persistent memory engine for conversational assistants",
	Long: `claude-cortex stores, scores, links, and consolidates short textual
memories for a conversational assistant, entirely in a local embedded
database.

Examples:
  claude-cortex remember "we decided to use SQLite for storage" --category architecture
  claude-cortex recall "storage decision"
  claude-cortex link <id1> <id2> --relationship extends
  claude-cortex consolidate
  claude-cortex forget --category note --older-than 720h`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		if mcpMode {
			fmt.Fprintln(os.Stderr, "--mcp is a stub: wire internal/engine.Engine into your own stdio/RPC transport")
			os.Exit(1)
		}
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (accepted but not read; configuration comes from hooks.json on the search path)")
	rootCmd.PersistentFlags().String("log_level", "info", "log level (debug, info, warn, error); accepted but not applied")
	rootCmd.PersistentFlags().BoolVar(&mcpMode, "mcp", false, "stub: print guidance for wiring a host transport")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "accepted but not read; output is the same with or without it")

	logging.Init(logging.Config{Level: "info", Format: "console"})
}
