package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/config"
	"github.com/ocinuke/ocinuke/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config ...]",
		Short: "Validate run configuration and rules",
		Args:  cobra.ArbitraryArgs,
		Long: `Validate run configuration without touching the cloud.

This command:
  - Parses the CUE sources and checks them against the run schema
  - Compiles every configured Starlark filter
  - Compiles protection rules, built-in and configured
  - Reports errors with file and line positions`,
		Example: `  # Validate the default config
  ocinuke validate --config ocinuke.cue

  # Validate a base config plus an overlay
  ocinuke validate base.cue prod-overlay.cue

  # Show the effective configuration
  ocinuke validate --config ocinuke.cue --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sources := args
			if len(sources) == 0 && configPath != "" {
				sources = []string{configPath}
			}
			if len(sources) == 0 {
				return fmt.Errorf("no configuration given: pass files as arguments or use --config")
			}

			parser := config.NewCUEParser()
			parsed, err := parser.Parse(ctx, sources)
			if err != nil {
				return err
			}

			if len(parsed.Errors) > 0 {
				for _, e := range parsed.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", e.String())
				}
				return fmt.Errorf("%d configuration error(s)", len(parsed.Errors))
			}

			rc := &parsed.Run

			if _, err := rc.BuildFilter(); err != nil {
				return fmt.Errorf("filter configuration invalid: %w", err)
			}

			var ruleCount int
			if rc.Protection.IsEnabled() {
				gate, gerr := policy.NewEngine(zerolog.Nop())
				if gerr != nil {
					return gerr
				}
				for _, name := range rc.Protection.DisableBuiltins {
					if derr := gate.DisableRule(name); derr != nil {
						return fmt.Errorf("cannot disable built-in rule: %w", derr)
					}
				}
				if len(rc.Protection.Paths) > 0 {
					if lerr := gate.LoadRules(ctx, rc.Protection.Paths); lerr != nil {
						return lerr
					}
				}
				ruleCount = len(gate.ListRules())
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, parsed)
			}

			fmt.Fprintf(out, "✓ Configuration valid (%s)\n\n", strings.Join(parsed.SourceFiles, ", "))
			fmt.Fprintf(out, "  Compartment: %s\n", rc.CompartmentID)
			fmt.Fprintf(out, "  Regions:     %s\n", orAll(rc.Regions, "all subscribed"))
			fmt.Fprintf(out, "  Types:       %s\n", describeTypes(rc.Types))
			fmt.Fprintf(out, "  Filters:     %d\n", len(rc.Filters))
			if rc.Protection.IsEnabled() {
				fmt.Fprintf(out, "  Protection:  %d rule(s)\n", ruleCount)
			} else {
				fmt.Fprintf(out, "  Protection:  disabled\n")
			}
			if rc.Store.IsEnabled() {
				path := rc.Store.Path
				if path == "" {
					path = defaultStorePath
				}
				fmt.Fprintf(out, "  History:     %s\n", path)
			} else {
				fmt.Fprintf(out, "  History:     disabled\n")
			}

			return nil
		},
	}

	return cmd
}

// orAll joins values, or names the default when the list is empty.
func orAll(values []string, empty string) string {
	if len(values) == 0 {
		return empty
	}
	return strings.Join(values, ", ")
}

// describeTypes renders the type rules in one line.
func describeTypes(rules config.TypeRules) string {
	switch {
	case len(rules.Include) > 0 && len(rules.Exclude) > 0:
		return fmt.Sprintf("include %s; exclude %s",
			strings.Join(rules.Include, ", "), strings.Join(rules.Exclude, ", "))
	case len(rules.Include) > 0:
		return "include " + strings.Join(rules.Include, ", ")
	case len(rules.Exclude) > 0:
		return "exclude " + strings.Join(rules.Exclude, ", ")
	default:
		return "all discovered types"
	}
}
