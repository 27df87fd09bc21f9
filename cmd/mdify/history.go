package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdify/internal/batch"
	"github.com/pdiddy/mdify/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversion batches",
	Long: `History shows past conversion batches recorded in the local history
database: when each batch ran, which runtime and image served it, and how
many files converted, failed, or were skipped.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "number of batches to show")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	home, err := mdifyHome()
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(home, "history.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	batches, err := store.Recent(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(batches) == 0 {
		fmt.Fprintln(out, "No conversion batches recorded yet.")
		return nil
	}

	for _, b := range batches {
		fmt.Fprintf(out, "%s  %-7s %-45s ok=%d failed=%d skipped=%d (%s)\n",
			b.StartedAt.Local().Format(time.DateTime),
			b.Runtime, b.Image,
			b.OK, b.Failed, b.Skipped,
			batch.FormatDuration(b.Elapsed))
	}
	return nil
}
