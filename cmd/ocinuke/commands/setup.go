package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/config"
	"github.com/ocinuke/ocinuke/pkg/engine"
	"github.com/ocinuke/ocinuke/pkg/policy"
	"github.com/ocinuke/ocinuke/pkg/providers/oci"
	"github.com/ocinuke/ocinuke/pkg/stores"
	"github.com/ocinuke/ocinuke/pkg/telemetry"
)

// defaultStorePath is where run history lands when the config names no path.
const defaultStorePath = "ocinuke.db"

// runOverrides holds the flag values the plan and nuke commands share.
// Only flags the user actually set are merged over the file config.
type runOverrides struct {
	compartmentID     string
	regions           []string
	concurrency       int
	maxAttempts       int
	deleteTimeout     time.Duration
	waitTimeout       time.Duration
	skipWait          bool
	dryRun            bool
	deleteCompartment bool
	forceCompartment  bool
	excludedStates    []string
	includeTypes      []string
	excludeTypes      []string
}

// addRunFlags registers the shared run flags. The dry-run flag is not
// registered here; plan forces it on and nuke adds it explicitly.
func addRunFlags(cmd *cobra.Command, o *runOverrides) {
	cmd.Flags().StringVar(&o.compartmentID, "compartment", "", "compartment OCID to tear down")
	cmd.Flags().StringSliceVar(&o.regions, "region", nil, "region to run in (repeatable, default: all subscribed)")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 0, "parallel deletions per group")
	cmd.Flags().IntVar(&o.maxAttempts, "max-attempts", 0, "delete attempts per resource")
	cmd.Flags().DurationVar(&o.deleteTimeout, "delete-timeout", 0, "timeout for one delete call")
	cmd.Flags().DurationVar(&o.waitTimeout, "wait-timeout", 0, "timeout waiting for a resource to reach a terminal state")
	cmd.Flags().BoolVar(&o.skipWait, "skip-wait", false, "do not wait for terminal states after deletes")
	cmd.Flags().BoolVar(&o.deleteCompartment, "delete-compartment", false, "delete the compartment after a clean run")
	cmd.Flags().BoolVar(&o.forceCompartment, "force-compartment", false, "attempt compartment deletion even when failures remain")
	cmd.Flags().StringSliceVar(&o.excludedStates, "excluded-state", nil, "lifecycle state to exclude from discovery (repeatable)")
	cmd.Flags().StringSliceVar(&o.includeTypes, "include-type", nil, "resource type to keep in scope (repeatable)")
	cmd.Flags().StringSliceVar(&o.excludeTypes, "exclude-type", nil, "resource type to drop from scope (repeatable)")
}

// apply merges the flags the user changed over the file configuration.
func (o *runOverrides) apply(cmd *cobra.Command, rc *config.RunConfig) {
	flags := cmd.Flags()

	if flags.Changed("compartment") {
		rc.CompartmentID = o.compartmentID
	}
	if flags.Changed("region") {
		rc.Regions = o.regions
	}
	if flags.Changed("concurrency") {
		rc.Execution.Concurrency = o.concurrency
	}
	if flags.Changed("max-attempts") {
		rc.Execution.MaxAttempts = o.maxAttempts
	}
	if flags.Changed("delete-timeout") {
		rc.Execution.DeleteTimeout = o.deleteTimeout.String()
	}
	if flags.Changed("wait-timeout") {
		rc.Execution.WaitTimeout = o.waitTimeout.String()
	}
	if flags.Changed("skip-wait") {
		rc.Execution.SkipWait = o.skipWait
	}
	if flags.Changed("dry-run") {
		rc.Execution.DryRun = o.dryRun
	}
	if flags.Changed("delete-compartment") {
		rc.Execution.DeleteCompartment = o.deleteCompartment
	}
	if flags.Changed("force-compartment") {
		rc.Execution.ForceCompartment = o.forceCompartment
	}
	if flags.Changed("excluded-state") {
		rc.Execution.ExcludedStates = o.excludedStates
	}
	if flags.Changed("include-type") {
		rc.Types.Include = o.includeTypes
	}
	if flags.Changed("exclude-type") {
		rc.Types.Exclude = o.excludeTypes
	}
}

// loadRunConfig parses the configured file, or returns an empty config when
// no file was given so flags alone can describe a run.
func loadRunConfig(ctx context.Context, parser *config.CUEParser) (*config.RunConfig, error) {
	if configPath == "" {
		return &config.RunConfig{}, nil
	}

	parsed, err := parser.Parse(ctx, []string{configPath})
	if err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", config.FormatErrors(parsed.Errors))
	}

	return &parsed.Run, nil
}

// buildTelemetry assembles the telemetry bundle: defaults, then the config
// file's overrides, then the command-line flags on top.
func buildTelemetry(rc *config.RunConfig) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = buildVersion
	rc.ApplyTelemetry(cfg)

	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	return telemetry.NewTelemetry(cfg)
}

// openStore opens, initializes, and migrates the run history store. Returns
// nil when history is disabled for this run.
func openStore(ctx context.Context, rc *config.RunConfig) (*stores.SQLiteStore, error) {
	if !rc.Store.IsEnabled() {
		return nil, nil
	}

	path := rc.Store.Path
	if path == "" {
		path = defaultStorePath
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open run history store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize run history store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate run history store: %w", err)
	}

	return store, nil
}

// buildProtection assembles the policy engine for a run, or nil when
// protection is disabled. With watch enabled, rule files are hot-reloaded
// for as long as the context lives.
func buildProtection(ctx context.Context, rc *config.RunConfig, logger zerolog.Logger) (*policy.Engine, error) {
	if !rc.Protection.IsEnabled() {
		return nil, nil
	}

	gate, err := policy.NewEngine(logger)
	if err != nil {
		return nil, err
	}

	for _, name := range rc.Protection.DisableBuiltins {
		if err := gate.DisableRule(name); err != nil {
			return nil, fmt.Errorf("cannot disable built-in rule: %w", err)
		}
	}

	if len(rc.Protection.Paths) > 0 {
		if err := gate.LoadRules(ctx, rc.Protection.Paths); err != nil {
			return nil, err
		}
	}

	if rc.Protection.Watch && len(rc.Protection.Paths) > 0 {
		loader := policy.NewLoader(logger)
		err := loader.Watch(ctx, rc.Protection.Paths, func(rules []policy.Rule) error {
			if err := gate.ReloadRules(ctx); err != nil {
				return err
			}
			for _, name := range rc.Protection.DisableBuiltins {
				if err := gate.DisableRule(name); err != nil {
					return err
				}
			}
			for i := range rules {
				if err := gate.AddRule(ctx, &rules[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to watch rule paths: %w", err)
		}
	}

	return gate, nil
}

// buildDriver constructs the OCI driver from the local SDK configuration,
// honoring the --profile flag.
func buildDriver(logger zerolog.Logger) (*oci.Driver, error) {
	provider := common.DefaultConfigProvider()
	if ociProfile != "" {
		provider = common.CustomProfileConfigProvider("", ociProfile)
	}

	return oci.NewDriver(provider, oci.WithLogger(logger))
}

// engineOptions assembles the engine wiring from whichever collaborators
// this command built. Nil collaborators are left out entirely.
func engineOptions(tel *telemetry.Telemetry, gate *policy.Engine, filter engine.RecordFilter, recorder *stores.Recorder) []engine.EngineOption {
	opts := []engine.EngineOption{
		engine.WithLogger(tel.Logger.Zerolog()),
		engine.WithEventSink(tel.Events),
		engine.WithExecutionMetrics(tel.Metrics),
	}

	if gate != nil {
		opts = append(opts, engine.WithProtectionGate(gate))
	}
	if filter != nil {
		opts = append(opts, engine.WithRecordFilter(filter))
	}
	if recorder != nil {
		opts = append(opts, engine.WithRunRecorder(recorder))
	}

	return opts
}

// runUser names the operator recorded on the run.
func runUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
