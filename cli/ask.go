package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	askUser    string
	askSession string
	askShowCtx bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single legal question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		eng, err := a.engine()
		if err != nil {
			return err
		}

		session := askSession
		if session == "" {
			session = uuid.NewString()
		}

		query := strings.Join(args, " ")
		res, err := eng.Answer(cmd.Context(), askUser, session, query)
		if err != nil {
			return err
		}

		if askShowCtx {
			fmt.Println("Sources:")
			for i, hit := range res.KBHits {
				fmt.Printf("  [KB %d] %s §%s %s (score %.3f)\n",
					i+1, hit.Meta["act"], hit.Meta["section_number"], hit.Meta["section_title"], hit.Score)
			}
			// Memory labels continue the KB numbering, matching the
			// prompt's citation labels.
			for i, hit := range res.MemoryHits {
				fmt.Printf("  [MEM %d] (%s) final=%.3f sim=%.3f recency=%.3f\n",
					len(res.KBHits)+i+1, hit.Meta["role"], hit.Scores.Final, hit.Scores.Sim, hit.Scores.Recency)
			}
			fmt.Println()
		}

		fmt.Println(res.Answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "default", "user identity for memory")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id (default: fresh session per invocation)")
	askCmd.Flags().BoolVar(&askShowCtx, "show-context", false, "print retrieved sources before the answer")
	rootCmd.AddCommand(askCmd)
}
