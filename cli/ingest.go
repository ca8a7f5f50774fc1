package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index new or changed knowledge-base documents",
	Long: `Scan the processed corpus (JSONL section files) and manual notes
(Markdown), chunk and embed anything not yet indexed, and record it in the
chunk registry. Re-running after no changes is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ing, reg, err := a.ingestor()
		if err != nil {
			return err
		}

		stats, err := ing.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d chunks: %d indexed, %d already known. Registry holds %d chunks; index holds %d records.\n",
			stats.Scanned, stats.Indexed, stats.Skipped, reg.Len(), a.kbIndex.Count())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
