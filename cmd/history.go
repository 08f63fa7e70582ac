package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/rostermap/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		ctx := cmd.Context()
		log, err := store.Open(ctx, cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer log.Close() //nolint:errcheck

		cycles, err := log.List(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list cycles: %w", err)
		}
		if len(cycles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sync cycles recorded.")
			return nil
		}
		return formatCycles(cmd.OutOrStdout(), cycles)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max cycles to show")
	rootCmd.AddCommand(historyCmd)
}

func formatCycles(out io.Writer, cycles []store.Cycle) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tENTITIES\tRESOLVED\tREQUESTS\tERROR")
	fmt.Fprintln(w, "--\t------\t-------\t--------\t--------\t--------\t--------\t-----")
	for _, c := range cycles {
		duration := "-"
		if c.FinishedAt != nil {
			duration = c.FinishedAt.Sub(c.StartedAt).Round(time.Millisecond).String()
		}
		entities, resolved, requests := "-", "-", "-"
		if c.Stats != nil {
			entities = fmt.Sprint(c.Stats.Entities)
			resolved = fmt.Sprint(c.Stats.Resolved)
			requests = fmt.Sprint(c.Stats.Requests)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.StartedAt.Format(time.RFC3339), duration,
			entities, resolved, requests, c.Error)
	}
	return w.Flush()
}
