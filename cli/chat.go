package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question/answer session",
	Long: `Start a REPL over the knowledge base with conversation memory.

In-chat commands:
  new     start a fresh session (memory from older sessions still counts,
          just with a lower continuity bonus)
  su <id> switch to a different user identity
  exit    quit`,
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

		user := chatUser
		session := uuid.NewString()
		fmt.Printf("vakeel chat - user %q, session %s\nType 'exit' to quit.\n\n", user, shortID(session))

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("you> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			switch {
			case line == "exit" || line == "quit":
				return nil
			case line == "new":
				session = uuid.NewString()
				fmt.Printf("(new session %s)\n", shortID(session))
				continue
			case strings.HasPrefix(line, "su "):
				user = strings.TrimSpace(strings.TrimPrefix(line, "su "))
				session = uuid.NewString()
				fmt.Printf("(now user %q, session %s)\n", user, shortID(session))
				continue
			}

			res, err := eng.Answer(cmd.Context(), user, session, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Printf("\nvakeel> %s\n\n", res.Answer)
		}
		return scanner.Err()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "default", "user identity for memory")
	rootCmd.AddCommand(chatCmd)
}
