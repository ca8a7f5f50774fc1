package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchTop int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base without generating an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		hits, err := a.retriever().Search(cmd.Context(), strings.Join(args, " "), searchTop)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No matches. Has the knowledge base been ingested?")
			return nil
		}

		for i, hit := range hits {
			fmt.Printf("%d. %s §%s %s (score %.3f)\n", i+1,
				hit.Meta["act"], hit.Meta["section_number"], hit.Meta["section_title"], hit.Score)
			fmt.Printf("   %s\n\n", excerpt(hit.Content, 240))
		}
		return nil
	},
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func init() {
	searchCmd.Flags().IntVarP(&searchTop, "top", "n", 5, "number of results")
	rootCmd.AddCommand(searchCmd)
}
