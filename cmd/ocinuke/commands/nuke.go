package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/config"
	"github.com/ocinuke/ocinuke/pkg/engine"
	"github.com/ocinuke/ocinuke/pkg/stores"
)

func newNukeCommand() *cobra.Command {
	var (
		overrides runOverrides
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete every resource in a compartment",
		Long: `Discover every resource in the compartment and delete it, in dependency
order, across the selected regions.

This command:
  - Resolves the target regions from the tenancy's subscriptions
  - Discovers resources with one structured search query per region
  - Applies type rules, filters, and protection rules
  - Deletes in dependency order with bounded parallelism and retries
  - Records the run and every outcome in the local history store
  - Optionally deletes the emptied compartment

A run that leaves failures behind exits non-zero so automation notices.`,
		Example: `  # Tear down a compartment
  ocinuke nuke --config ocinuke.cue

  # See what would happen first
  ocinuke nuke --config ocinuke.cue --dry-run

  # Unattended, including the compartment itself
  ocinuke nuke --config ocinuke.cue --yes --delete-compartment

  # Flags alone, no config file
  ocinuke nuke --compartment ocid1.compartment.oc1..aaaa --region eu-frankfurt-1 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parser := config.NewCUEParser()
			rc, err := loadRunConfig(ctx, parser)
			if err != nil {
				return err
			}
			overrides.apply(cmd, rc)

			if rc.CompartmentID == "" {
				return fmt.Errorf("no compartment specified: set compartment_id in the config or pass --compartment")
			}
			if err := parser.Validate(ctx, rc); err != nil {
				return err
			}

			if !yes && !rc.Execution.DryRun {
				if err := confirmTeardown(cmd, rc); err != nil {
					return err
				}
			}

			tel, err := buildTelemetry(rc)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				tel.Shutdown(shutdownCtx)
			}()
			ctx = tel.WithContext(ctx)
			logger := tel.Logger.Zerolog()

			if err := tel.StartMetricsServer(); err != nil {
				tel.Logger.Warnf("could not start metrics server: %v", err)
			}

			store, err := openStore(ctx, rc)
			if err != nil {
				return err
			}
			var recorder *stores.Recorder
			if store != nil {
				defer store.Close()
				recorder = stores.NewRecorder(store)

				// Persist the event stream alongside run rows and outcomes.
				tel.Events.Subscribe(func(e *engine.Event) {
					if rerr := recorder.RecordEvent(context.Background(), e); rerr != nil {
						logger.Debug().Err(rerr).Msg("could not persist event")
					}
				}, nil)
			}

			filter, err := rc.BuildFilter()
			if err != nil {
				return err
			}

			gate, err := buildProtection(ctx, rc, logger)
			if err != nil {
				return err
			}

			driver, err := buildDriver(logger)
			if err != nil {
				return err
			}

			req := rc.ToRunRequest()
			req.User = runUser()

			eng := engine.NewEngine(driver, engineOptions(tel, gate, filter, recorder)...)
			run, err := eng.Run(ctx, *req)
			if err != nil {
				return err
			}

			if store != nil && rc.Store.KeepRuns > 0 {
				pruned, perr := store.PruneRuns(context.WithoutCancel(ctx), rc.Store.KeepRuns)
				if perr != nil {
					logger.Warn().Err(perr).Msg("could not prune run history")
				} else if pruned > 0 {
					logger.Debug().Int64("pruned", pruned).Msg("pruned run history")
				}
			}

			if jsonOutput {
				if perr := printJSON(cmd.OutOrStdout(), run); perr != nil {
					return perr
				}
			} else {
				printRunSummary(cmd.OutOrStdout(), run)
			}

			switch run.Status {
			case engine.RunStatusPartiallyFailed:
				return fmt.Errorf("%d resource(s) could not be deleted", run.Summary.Failed)
			case engine.RunStatusCancelled:
				return fmt.Errorf("run cancelled")
			}

			return nil
		},
	}

	addRunFlags(cmd, &overrides)
	cmd.Flags().BoolVar(&overrides.dryRun, "dry-run", false, "plan and report without deleting anything")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")

	return cmd
}

// confirmTeardown prompts for an explicit yes before anything is deleted.
func confirmTeardown(cmd *cobra.Command, rc *config.RunConfig) error {
	out := cmd.OutOrStdout()

	regions := "all subscribed regions"
	if len(rc.Regions) > 0 {
		regions = strings.Join(rc.Regions, ", ")
	}

	fmt.Fprintf(out, "About to delete EVERY resource in compartment\n")
	fmt.Fprintf(out, "  %s\n", rc.CompartmentID)
	fmt.Fprintf(out, "across %s.", regions)
	if rc.Execution.DeleteCompartment {
		fmt.Fprintf(out, " The compartment itself will be deleted afterwards.")
	}
	fmt.Fprintf(out, "\n\nThis cannot be undone. Type 'yes' to continue: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return fmt.Errorf("aborted")
	}
	if strings.TrimSpace(line) != "yes" {
		return fmt.Errorf("aborted")
	}

	return nil
}
