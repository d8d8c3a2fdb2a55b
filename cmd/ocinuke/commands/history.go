package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/config"
	"github.com/ocinuke/ocinuke/pkg/stores"
)

// timeLayout renders stored timestamps for terminal output.
const timeLayout = "2006-01-02 15:04:05"

func newHistoryCommand() *cobra.Command {
	var (
		limit       int
		compartment string
		runID       string
		status      string
		dbPath      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs from the local history store",
		Long: `Show recorded runs and their outcomes from the local SQLite store.

Without flags the most recent runs are listed. With --run the full record
of one run is shown, including every resource outcome.`,
		Example: `  # List the last 20 runs
  ocinuke history

  # List runs against one compartment
  ocinuke history --compartment ocid1.compartment.oc1..aaaa

  # Everything one run did
  ocinuke history --run 3f2a6c1e-...

  # Just its failures
  ocinuke history --run 3f2a6c1e-... --status failed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path, err := resolveStorePath(ctx, dbPath)
			if err != nil {
				return err
			}
			if _, serr := os.Stat(path); serr != nil {
				return fmt.Errorf("no run history at %s", path)
			}

			store, err := stores.NewSQLiteStore(stores.Config{Path: path})
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return err
			}
			if err := store.Migrate(ctx); err != nil {
				return err
			}

			if runID != "" {
				return showRun(ctx, cmd, store, runID, status)
			}
			return listRuns(ctx, cmd, store, compartment, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().StringVar(&compartment, "compartment", "", "only list runs for this compartment")
	cmd.Flags().StringVar(&runID, "run", "", "show one run in full, with outcomes")
	cmd.Flags().StringVar(&status, "status", "", "with --run: only outcomes with this status")
	cmd.Flags().StringVar(&dbPath, "db", "", "history database path (default: from config, else "+defaultStorePath+")")

	return cmd
}

// resolveStorePath picks the history database: the flag, then the config
// file's store path, then the default.
func resolveStorePath(ctx context.Context, flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}

	if configPath != "" {
		rc, err := loadRunConfig(ctx, config.NewCUEParser())
		if err != nil {
			return "", err
		}
		if rc.Store.Path != "" {
			return rc.Store.Path, nil
		}
	}

	return defaultStorePath, nil
}

// listRuns renders the most recent runs as a table.
func listRuns(ctx context.Context, cmd *cobra.Command, store *stores.SQLiteStore, compartment string, limit int) error {
	rows, err := store.ListRuns(ctx, compartment, limit, 0)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTATUS\tCOMPARTMENT\tSUCCEEDED\tFAILED\tSKIPPED")
	for _, row := range rows {
		succeeded, failed, skipped := "-", "-", "-"
		if summary, serr := stores.LoadSummary(row); serr == nil && summary != nil {
			succeeded = strconv.Itoa(summary.Succeeded)
			failed = strconv.Itoa(summary.Failed)
			skipped = strconv.Itoa(summary.Skipped)
		}

		status := row.Status
		if row.DryRun {
			status += " (dry)"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.StartedAt.Format(timeLayout), row.ID, status,
			shortOCID(row.CompartmentID), succeeded, failed, skipped)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nUse 'ocinuke history --run <id>' for a run's outcomes.\n")
	return nil
}

// showRun renders one run in full.
func showRun(ctx context.Context, cmd *cobra.Command, store *stores.SQLiteStore, runID, status string) error {
	row, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	var outcomes []*stores.OutcomeRow
	if status != "" {
		outcomes, err = store.ListOutcomesByStatus(ctx, runID, status)
	} else {
		outcomes, err = store.ListOutcomesByRun(ctx, runID)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, struct {
			Run      *stores.RunRow       `json:"run"`
			Outcomes []*stores.OutcomeRow `json:"outcomes"`
		}{row, outcomes})
	}

	regions, _ := stores.LoadRegions(row)

	fmt.Fprintf(out, "Run %s: %s\n", row.ID, row.Status)
	fmt.Fprintf(out, "  Compartment: %s\n", row.CompartmentID)
	fmt.Fprintf(out, "  Regions:     %s\n", strings.Join(regions, ", "))
	fmt.Fprintf(out, "  Started:     %s\n", row.StartedAt.Format(timeLayout))
	if row.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed:   %s\n", row.CompletedAt.Format(timeLayout))
	}
	if row.User != "" {
		fmt.Fprintf(out, "  User:        %s\n", row.User)
	}
	if row.DryRun {
		fmt.Fprintf(out, "  Dry run:     yes\n")
	}
	if row.Error != nil {
		fmt.Fprintf(out, "  Error:       %s\n", *row.Error)
	}

	if summary, serr := stores.LoadSummary(row); serr == nil && summary != nil {
		fmt.Fprintf(out, "\n  %d discovered: %d succeeded (%d already gone), %d failed, %d skipped\n",
			summary.Discovered, summary.Succeeded, summary.AlreadyGone,
			summary.Failed, summary.Skipped)
	}

	if len(outcomes) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  STATUS\tTYPE\tREGION\tATTEMPTS\tRESOURCE\tDETAIL")
	for _, o := range outcomes {
		detail := ""
		if o.SkipReason != nil {
			detail = *o.SkipReason
		}
		if o.Error != nil {
			detail = *o.Error
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%s\t%s\n",
			o.Status, o.ResourceType, o.Region, o.Attempts, o.ResourceID, detail)
	}
	tw.Flush()

	return nil
}

// shortOCID keeps the distinguishing tail of an OCID for table output.
func shortOCID(id string) string {
	const tail = 16
	if len(id) <= tail+3 {
		return id
	}
	return "..." + id[len(id)-tail:]
}
