package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
	ociProfile string

	// buildVersion is stamped into telemetry as the service version.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ocinuke",
		Short: "ocinuke - Compartment teardown for Oracle Cloud Infrastructure",
		Long: `ocinuke discovers every resource in an OCI compartment and deletes it,
in dependency order, across all subscribed regions.

Features:
  - One structured-search query discovers the whole compartment
  - Dependency-ordered deletion with bounded parallelism
  - Retry with exponential backoff on throttles and conflicts
  - Rego protection rules and Starlark record filters
  - Typed run configuration via CUE
  - Local SQLite run history
  - Optional deletion of the emptied compartment`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "run configuration file (CUE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&ociProfile, "profile", "", "OCI config profile (default: DEFAULT)")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newNukeCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
