package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

var (
	linkRelationship string
	linkStrength     float64
)

var relatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "List a memory's linked neighbors",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		links, err := eng.GetRelated(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(links) == 0 {
			fmt.Println("no linked memories")
			return
		}
		for _, l := range links {
			fmt.Printf("%s -> %s  [%s]  strength=%.2f\n", l.SourceID, l.TargetID, l.Relationship, l.Strength)
		}
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <source-id> <target-id>",
	Short: "Create or strengthen a relationship between two memories",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng := openEngine()
		defer eng.Close()

		rel := storage.Relationship(linkRelationship)
		if rel == "" {
			rel = storage.RelRelated
		}

		if err := eng.LinkMemories(args[0], args[1], rel, linkStrength); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("link created")
	},
}

func init() {
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(linkCmd)

	linkCmd.Flags().StringVar(&linkRelationship, "relationship", "related", "relationship type (references, extends, contradicts, related)")
	linkCmd.Flags().Float64Var(&linkStrength, "strength", 0.5, "edge strength [0,1]")
}
