// Package cli wires the pipeline into a cobra command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "vakeel",
	Short: "Vakeel - retrieval-grounded legal question answering for Indian law",
	Long: `Vakeel answers legal questions grounded in an indexed corpus of Indian
statutes, blending knowledge-base retrieval with per-user conversation
memory. Answers cite the Act and section they draw from; memory recall is
ranked by similarity, recency, speaker role, and session continuity.

It is an assistant, not legal advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("vakeel v" + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
