package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <user>",
	Short: "Erase all stored conversation memory for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		mem, err := a.memoryStore()
		if err != nil {
			return err
		}
		if err := mem.DeleteUser(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Erased all memory for user %q.\n", args[0])
		return nil
	},
}

var trimCmd = &cobra.Command{
	Use:   "trim <user> <keep-last>",
	Short: "Keep only a user's most recent memory records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, err := strconv.Atoi(args[1])
		if err != nil || keep < 0 {
			return fmt.Errorf("keep-last must be a non-negative integer, got %q", args[1])
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		mem, err := a.memoryStore()
		if err != nil {
			return err
		}
		if err := mem.TrimUser(cmd.Context(), args[0], keep); err != nil {
			return err
		}
		fmt.Printf("Trimmed user %q to the %d most recent records.\n", args[0], keep)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions <user>",
	Short: "List a user's conversation sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		mem, err := a.memoryStore()
		if err != nil {
			return err
		}
		sessions, err := mem.ListSessions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Printf("No stored sessions for user %q.\n", args[0])
			return nil
		}

		for _, s := range sessions {
			fmt.Printf("%s  %3d messages  last active %s\n", shortID(s.SessionID), s.Count, s.LastActive)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(sessionsCmd)
}
