package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/config"
	"github.com/ocinuke/ocinuke/pkg/engine"
)

func newPlanCommand() *cobra.Command {
	var (
		overrides runOverrides
		outFile   string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview what a teardown would delete",
		Long: `Discover the compartment and report what a teardown would do, without
issuing a single delete call.

This command:
  - Resolves the target regions from the tenancy's subscriptions
  - Runs the structured search query in each region
  - Applies type rules, filters, and protection rules
  - Reports what would be deleted, protected, filtered, or unsupported`,
		Example: `  # Preview a teardown
  ocinuke plan --config ocinuke.cue

  # Preview without a config file
  ocinuke plan --compartment ocid1.compartment.oc1..aaaa --region eu-frankfurt-1

  # Save the full plan for review
  ocinuke plan --config ocinuke.cue --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parser := config.NewCUEParser()
			rc, err := loadRunConfig(ctx, parser)
			if err != nil {
				return err
			}
			overrides.apply(cmd, rc)
			rc.Execution.DryRun = true

			if rc.CompartmentID == "" {
				return fmt.Errorf("no compartment specified: set compartment_id in the config or pass --compartment")
			}
			if err := parser.Validate(ctx, rc); err != nil {
				return err
			}

			tel, err := buildTelemetry(rc)
			if err != nil {
				return err
			}
			defer tel.Shutdown(ctx)
			ctx = tel.WithContext(ctx)

			logger := tel.Logger.Zerolog()

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

			eng := engine.NewEngine(driver, engineOptions(tel, gate, filter, nil)...)
			run, err := eng.Run(ctx, *req)
			if err != nil {
				return err
			}

			if outFile != "" {
				data, merr := json.MarshalIndent(run, "", "  ")
				if merr != nil {
					return fmt.Errorf("failed to encode plan: %w", merr)
				}
				if werr := os.WriteFile(outFile, data, 0644); werr != nil {
					return fmt.Errorf("failed to write plan file: %w", werr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", outFile)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), run)
			}

			printPlan(cmd.OutOrStdout(), run)
			return nil
		},
	}

	addRunFlags(cmd, &overrides)
	cmd.Flags().StringVar(&outFile, "out", "", "write the full plan as JSON to this file")

	return cmd
}
