package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ocinuke/ocinuke/pkg/engine"
	"github.com/ocinuke/ocinuke/pkg/telemetry"
)

// RunConfig is a full run configuration as parsed from CUE. Command-line
// flags are merged over file values before the config is turned into an
// engine request.
type RunConfig struct {
	// CompartmentID is the compartment to tear down.
	CompartmentID string `json:"compartment_id" validate:"required,startswith=ocid1."`

	// Regions restricts the run to a subset of subscribed regions. Empty
	// means all subscriptions in Ready status.
	Regions []string `json:"regions,omitempty" validate:"omitempty,dive,min=1"`

	// Execution tunes the deletion pass.
	Execution ExecutionConfig `json:"execution,omitempty"`

	// Types selects which discovered resource types are in scope.
	Types TypeRules `json:"types,omitempty"`

	// Protection configures policy-based deletion guards.
	Protection ProtectionConfig `json:"protection,omitempty"`

	// Filters are Starlark record filters, applied in order.
	Filters []FilterConfig `json:"filters,omitempty" validate:"omitempty,dive"`

	// Telemetry overrides logging, metrics, and tracing settings.
	Telemetry TelemetrySettings `json:"telemetry,omitempty"`

	// Store configures run-history persistence.
	Store StoreSettings `json:"store,omitempty"`
}

// ExecutionConfig tunes the deletion pass. Zero values fall back to the
// engine defaults.
type ExecutionConfig struct {
	// Concurrency is the worker pool width within a deletion group.
	Concurrency int `json:"concurrency,omitempty" validate:"omitempty,min=1,max=64"`

	// MaxAttempts bounds delete attempts per resource, including the first.
	MaxAttempts int `json:"max_attempts,omitempty" validate:"omitempty,min=1,max=10"`

	// DeleteTimeout bounds one delete call (Go duration string, e.g. "2m").
	DeleteTimeout string `json:"delete_timeout,omitempty" validate:"omitempty,duration"`

	// WaitTimeout bounds waiting for a terminal state after a delete.
	WaitTimeout string `json:"wait_timeout,omitempty" validate:"omitempty,duration"`

	// SkipWait disables waiting even for types that support it.
	SkipWait bool `json:"skip_wait,omitempty"`

	// DryRun plans and reports without issuing any delete call.
	DryRun bool `json:"dry_run,omitempty"`

	// DeleteCompartment requests the finalizer step after a clean run.
	DeleteCompartment bool `json:"delete_compartment,omitempty"`

	// ForceCompartment attempts compartment deletion even when failures remain.
	ForceCompartment bool `json:"force_compartment,omitempty"`

	// ExcludedStates overrides the lifecycle states excluded from discovery.
	ExcludedStates []string `json:"excluded_states,omitempty" validate:"omitempty,dive,min=1"`
}

// TypeRules scopes a run to a subset of resource types. Matching is
// case-insensitive against the search service's type labels.
type TypeRules struct {
	// Include keeps only the listed resource types. Empty means all types.
	Include []string `json:"include,omitempty" validate:"omitempty,dive,min=1"`

	// Exclude drops the listed resource types. Applied after Include.
	Exclude []string `json:"exclude,omitempty" validate:"omitempty,dive,min=1"`
}

// ProtectionConfig configures the policy engine for a run.
type ProtectionConfig struct {
	// Enabled turns policy evaluation on. Omitted means on.
	Enabled *bool `json:"enabled,omitempty"`

	// Paths lists rule files or directories loaded into the policy engine.
	Paths []string `json:"paths,omitempty" validate:"omitempty,dive,min=1"`

	// DisableBuiltins names built-in rules to switch off.
	DisableBuiltins []string `json:"disable_builtins,omitempty" validate:"omitempty,dive,min=1"`

	// Watch hot-reloads rule files on change.
	Watch bool `json:"watch,omitempty"`
}

// IsEnabled reports whether policy evaluation is on for this run.
func (p *ProtectionConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// FilterConfig declares one Starlark record filter. Exactly one of Path
// and Script must be set.
type FilterConfig struct {
	// Name identifies the filter in logs and events.
	Name string `json:"name" validate:"required"`

	// Path is a Starlark script file.
	Path string `json:"path,omitempty" validate:"required_without=Script,excluded_with=Script"`

	// Script is inline Starlark source.
	Script string `json:"script,omitempty"`

	// Timeout bounds one evaluation (Go duration string).
	Timeout string `json:"timeout,omitempty" validate:"omitempty,duration"`
}

// TelemetrySettings overrides parts of the process telemetry configuration.
// Unset fields keep their base values.
type TelemetrySettings struct {
	Logging LoggingSettings `json:"logging,omitempty"`
	Metrics MetricsSettings `json:"metrics,omitempty"`
	Tracing TracingSettings `json:"tracing,omitempty"`
}

// LoggingSettings overrides structured logging settings.
type LoggingSettings struct {
	// Level is the minimum level emitted.
	Level string `json:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// Format is console or json.
	Format string `json:"format,omitempty" validate:"omitempty,oneof=console json"`

	// Output is stdout, stderr, or a file path.
	Output string `json:"output,omitempty"`
}

// MetricsSettings overrides Prometheus metrics settings.
type MetricsSettings struct {
	// Enabled turns the metrics endpoint on or off.
	Enabled *bool `json:"enabled,omitempty"`

	// ListenAddress is the metrics HTTP listen address.
	ListenAddress string `json:"listen_address,omitempty"`
}

// TracingSettings overrides distributed tracing settings.
type TracingSettings struct {
	// Enabled turns span production on or off.
	Enabled *bool `json:"enabled,omitempty"`

	// Exporter is otlp, stdout, or none.
	Exporter string `json:"exporter,omitempty" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `json:"endpoint,omitempty"`

	// SamplingRate is the trace sampling rate, 0.0 to 1.0.
	SamplingRate *float64 `json:"sampling_rate,omitempty" validate:"omitempty,min=0,max=1"`
}

// StoreSettings configures run-history persistence.
type StoreSettings struct {
	// Enabled turns run-history persistence on. Omitted means on.
	Enabled *bool `json:"enabled,omitempty"`

	// Path is the SQLite database file.
	Path string `json:"path,omitempty"`

	// KeepRuns prunes history to the most recent N runs after each run.
	KeepRuns int `json:"keep_runs,omitempty" validate:"omitempty,min=1"`
}

// IsEnabled reports whether run history is persisted for this run.
func (s *StoreSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ParsedConfig is the result of parsing one or more CUE sources.
type ParsedConfig struct {
	// Run is the decoded run configuration.
	Run RunConfig `json:"run"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any parse or validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is a parse or validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the configuration path to the error (e.g., "execution.concurrency").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning).
	Severity string `json:"severity"`
}

// String renders the error with its location when known.
func (e ValidationError) String() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// FormatErrors renders validation errors on one line for CLI output.
func FormatErrors(errs []ValidationError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.String()
	}
	return strings.Join(lines, "; ")
}

// StarlarkResult is the result of one Starlark evaluation.
type StarlarkResult struct {
	// Output holds the script's exported globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}

// ToRunRequest converts the configuration to an engine request. Zero
// values are left for the engine to default; the caller merges flag
// overrides before handing the request to the engine.
func (rc *RunConfig) ToRunRequest() *engine.RunRequest {
	req := &engine.RunRequest{
		CompartmentID:     rc.CompartmentID,
		Regions:           append([]string(nil), rc.Regions...),
		Concurrency:       rc.Execution.Concurrency,
		MaxAttempts:       rc.Execution.MaxAttempts,
		SkipWait:          rc.Execution.SkipWait,
		DryRun:            rc.Execution.DryRun,
		DeleteCompartment: rc.Execution.DeleteCompartment,
		ForceCompartment:  rc.Execution.ForceCompartment,
		ExcludedStates:    append([]string(nil), rc.Execution.ExcludedStates...),
	}

	if d, err := time.ParseDuration(rc.Execution.DeleteTimeout); err == nil {
		req.DeleteTimeout = d
	}
	if d, err := time.ParseDuration(rc.Execution.WaitTimeout); err == nil {
		req.WaitTimeout = d
	}

	return req
}

// ApplyTelemetry overlays the file's telemetry settings onto a base
// telemetry configuration, leaving unset fields at their base values.
func (rc *RunConfig) ApplyTelemetry(cfg *telemetry.Config) {
	if cfg == nil {
		return
	}

	if v := rc.Telemetry.Logging.Level; v != "" {
		cfg.Logging.Level = v
	}
	if v := rc.Telemetry.Logging.Format; v != "" {
		cfg.Logging.Format = v
	}
	if v := rc.Telemetry.Logging.Output; v != "" {
		cfg.Logging.Output = v
	}

	if rc.Telemetry.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *rc.Telemetry.Metrics.Enabled
	}
	if v := rc.Telemetry.Metrics.ListenAddress; v != "" {
		cfg.Metrics.ListenAddress = v
	}

	if rc.Telemetry.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *rc.Telemetry.Tracing.Enabled
	}
	if v := rc.Telemetry.Tracing.Exporter; v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := rc.Telemetry.Tracing.Endpoint; v != "" {
		cfg.Tracing.Endpoint = v
	}
	if rc.Telemetry.Tracing.SamplingRate != nil {
		cfg.Tracing.SamplingRate = *rc.Telemetry.Tracing.SamplingRate
	}
}
