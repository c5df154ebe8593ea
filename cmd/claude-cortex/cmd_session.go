package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	sessionProject string
	sessionSummary string
)

var startSessionCmd = &cobra.Command{
	Use:   "start-session",
	Short: "Begin a bounded work period",
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		s, err := eng.StartSession(sessionProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("session started: %s\n", s.ID)
	},
}

var endSessionCmd = &cobra.Command{
	Use:   "end-session <session-id>",
	Short: "End a session and record its summary",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		s, err := eng.EndSession(args[0], sessionSummary)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("session ended: %s (created=%d accessed=%d)\n", s.ID, s.MemoriesCreated, s.MemoriesAccessed)
	},
}

var getProjectCmd = &cobra.Command{
	Use:   "get-project",
	Short: "Print the current project scope",
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()
		fmt.Println(eng.GetProject())
	},
}

var setProjectCmd = &cobra.Command{
	Use:   "set-project <project>",
	Short: "Override the current project scope",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()
		eng.SetProject(args[0])
		fmt.Printf("project set to %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(startSessionCmd)
	rootCmd.AddCommand(endSessionCmd)
	rootCmd.AddCommand(getProjectCmd)
	rootCmd.AddCommand(setProjectCmd)

	startSessionCmd.Flags().StringVar(&sessionProject, "project", "", "project scope (defaults to current project)")
	endSessionCmd.Flags().StringVar(&sessionSummary, "summary", "", "closing summary")
}
