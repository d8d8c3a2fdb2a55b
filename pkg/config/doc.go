// Package config parses CUE run-configuration files and builds the record
// filters a run uses.
//
// # Overview
//
// A run is described by one or more CUE documents (conventionally
// ocinuke.cue). The parser unifies them, checks them against a closed CUE
// schema, decodes them into RunConfig, and validates the result with
// struct tags. Command-line flags are merged over file values by the CLI
// before the config becomes an engine request.
//
// # Components
//
// CUEParser: parses files, directories, and inline content; collects
// errors with source positions instead of stopping at the first one.
//
// SchemaRegistry: compiles the built-in CUE schemas (run, execution,
// types, protection, filter, telemetry, store) and validates values
// against them. The run schema is closed, so a misspelled field is a
// parse error, not a silently ignored setting.
//
// StarlarkEvaluator: sandboxed Starlark execution with timeout
// enforcement, used by ScriptFilter and by the validate command to
// dry-check configured scripts.
//
// TypeFilter, ScriptFilter, FilterChain: engine.RecordFilter
// implementations built from the types and filters sections.
//
// # Configuration structure
//
//	compartment_id: "ocid1.compartment.oc1..aaaaexample"
//	regions: ["us-ashburn-1", "eu-frankfurt-1"]
//
//	execution: {
//		concurrency:        8
//		max_attempts:       3
//		delete_compartment: true
//	}
//
//	types: {
//		exclude: ["Bucket"]
//	}
//
//	protection: {
//		paths: ["./policies"]
//	}
//
//	filters: [{
//		name:   "keep-tagged"
//		script: """
//			keep = resource.get("freeform_tags", {}).get("owner") != "platform-team"
//			"""
//	}]
//
//	store: {
//		path: "~/.ocinuke/history.db"
//	}
//
// # Filter scripts
//
// A filter script receives a `resource` dict with the record's
// resource_type, identifier, compartment_id, region, lifecycle_state,
// display_name, time_created (RFC 3339 string), freeform_tags, and
// defined_tags. It must assign a boolean `keep`. A script that errors,
// times out, or leaves `keep` unset fails the check and the record is
// skipped, never deleted.
//
// # Usage
//
//	parser := config.NewCUEParser()
//	parsed, err := parser.Parse(ctx, []string{"ocinuke.cue"})
//	if err != nil {
//		return err
//	}
//	if len(parsed.Errors) > 0 {
//		return fmt.Errorf("%s", config.FormatErrors(parsed.Errors))
//	}
//
//	req := parsed.Run.ToRunRequest()
//	filter, err := parsed.Run.BuildFilter()
//
// # Security
//
// Starlark execution is sandboxed: no filesystem or network access, print
// suppressed, and a per-evaluation timeout. A runaway script is cancelled
// through the interpreter, not abandoned.
//
// # Thread safety
//
// All types in this package are safe for concurrent use.
package config
