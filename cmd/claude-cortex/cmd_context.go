package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var contextProject string

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Render a structured context summary for the current project",
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		query := strings.Join(args, " ")
		summary, err := eng.GetContext(query, contextProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("key decisions:")
		for _, m := range summary.KeyDecisions {
			fmt.Printf("  - %s\n", m.Title)
		}
		fmt.Println("patterns:")
		for _, m := range summary.Patterns {
			fmt.Printf("  - %s\n", m.Title)
		}
		fmt.Println("pending:")
		for _, m := range summary.Pending {
			fmt.Printf("  - %s\n", m.Title)
		}
		fmt.Println("recent:")
		for _, m := range summary.Recent {
			fmt.Printf("  - %s\n", m.Title)
		}
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVar(&contextProject, "project", "", "project scope")
}
