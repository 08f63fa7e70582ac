package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rostermap/internal/scheduler"
)

var syncFormat string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and print the reconciled roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		rep, runErr := eng.Scheduler.RunOnce(ctx)
		if err := writeReport(cmd.OutOrStdout(), rep, syncFormat); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(syncCmd)
}

func writeReport(out io.Writer, rep scheduler.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return formatReport(out, rep)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func formatReport(out io.Writer, rep scheduler.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCOORDINATES\tADDRESS")
	fmt.Fprintln(w, "--\t----\t------\t-----------\t-------")
	for _, e := range rep.Entities {
		coords := "-"
		if e.Coordinates != nil {
			coords = e.Coordinates.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Status, coords, e.Address)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\ncycle %s: %d records, %d created, %d updated, %d resolved, %d unresolved, %d requests, %d pauses\n",
		rep.CycleID, rep.Records, rep.Created, rep.Updated, rep.Resolved, rep.Unresolved, rep.Requests, rep.Pauses)
	if rep.Stale {
		fmt.Fprintf(out, "roster unavailable, showing previous state: %s\n", rep.Error)
	}
	return nil
}
