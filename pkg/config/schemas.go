package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for run configuration validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a registry with its own CUE context and the
// built-in schemas registered.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

// newSchemaRegistry creates a registry sharing the given context. The
// parser uses this so schema values can be unified with parsed documents.
func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

// registerBuiltInSchemas registers all built-in schemas. The run schema
// concatenates the section schemas so its references resolve.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("run", builtinRunSchema+
		builtinExecutionSchema+
		builtinTypesSchema+
		builtinProtectionSchema+
		builtinFilterSchema+
		builtinTelemetrySchema+
		builtinStoreSchema)

	sr.RegisterSchema("execution", builtinExecutionSchema)
	sr.RegisterSchema("types", builtinTypesSchema)
	sr.RegisterSchema("protection", builtinProtectionSchema)
	sr.RegisterSchema("filter", builtinFilterSchema)
	sr.RegisterSchema("telemetry", builtinTelemetrySchema)
	sr.RegisterSchema("store", builtinStoreSchema)
}

// RegisterSchema compiles and registers a CUE schema under the given name.
// When the schema declares a definition matching the name ("run" declares
// #Run), the definition itself is stored so validation unifies against it.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	if def := val.LookupPath(cue.ParsePath(definitionLabel(name))); def.Exists() {
		val = def
	}

	sr.schemas[name] = val
	return nil
}

// definitionLabel maps a schema name to its definition label ("run" -> "#Run").
func definitionLabel(name string) string {
	if name == "" {
		return name
	}
	return "#" + strings.ToUpper(name[:1]) + name[1:]
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions

const builtinRunSchema = `
// Run schema for a full run configuration document
#Run: {
	// compartment_id is the compartment to tear down
	compartment_id: string & =~"^ocid1\\.(compartment|tenancy)\\."

	// regions restricts the run to a subset of subscribed regions
	regions?: [...string & =~"^[a-z]{2}(-[a-z]+)+-[0-9]+$"]

	// execution tunes the deletion pass
	execution?: #Execution

	// types selects which discovered resource types are in scope
	types?: #Types

	// protection configures policy-based deletion guards
	protection?: #Protection

	// filters are Starlark record filters, applied in order
	filters?: [...#Filter]

	// telemetry overrides logging, metrics, and tracing settings
	telemetry?: #Telemetry

	// store configures run-history persistence
	store?: #Store
}
`

const builtinExecutionSchema = `
// Execution schema for deletion pass tuning
#Execution: {
	// concurrency is the worker pool width within a deletion group
	concurrency?: int & >=1 & <=64

	// max_attempts bounds delete attempts per resource, including the first
	max_attempts?: int & >=1 & <=10

	// delete_timeout bounds one delete call (Go duration string)
	delete_timeout?: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"

	// wait_timeout bounds waiting for a terminal state after a delete
	wait_timeout?: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"

	// skip_wait disables waiting even for types that support it
	skip_wait?: bool

	// dry_run plans and reports without issuing any delete call
	dry_run?: bool

	// delete_compartment requests the finalizer step after a clean run
	delete_compartment?: bool

	// force_compartment attempts compartment deletion even when failures remain
	force_compartment?: bool

	// excluded_states overrides the lifecycle states excluded from discovery
	excluded_states?: [...string & =~"^[A-Z_]+$"]
}
`

const builtinTypesSchema = `
// Types schema for resource type scoping
#Types: {
	// include keeps only the listed resource types
	include?: [...string & !=""]

	// exclude drops the listed resource types, after include
	exclude?: [...string & !=""]
}
`

const builtinProtectionSchema = `
// Protection schema for policy-based deletion guards
#Protection: {
	// enabled turns policy evaluation on; omitted means on
	enabled?: bool

	// paths lists rule files or directories loaded into the policy engine
	paths?: [...string & !=""]

	// disable_builtins names built-in rules to switch off
	disable_builtins?: [...string & !=""]

	// watch hot-reloads rule files on change
	watch?: bool
}
`

const builtinFilterSchema = `
// Filter schema for Starlark record filters
#Filter: {
	// name identifies the filter in logs and events
	name: string & =~"^[a-z0-9][a-z0-9_-]*$"

	// path is a Starlark script file
	path?: string & !=""

	// script is inline Starlark source
	script?: string & !=""

	// timeout bounds one evaluation (Go duration string)
	timeout?: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"
}
`

const builtinTelemetrySchema = `
// Telemetry schema for logging, metrics, and tracing overrides
#Telemetry: {
	logging?: {
		// level is the minimum level emitted
		level?: "trace" | "debug" | "info" | "warn" | "error" | "fatal"

		// format is console or json
		format?: "console" | "json"

		// output is stdout, stderr, or a file path
		output?: string & !=""
	}

	metrics?: {
		// enabled turns the metrics endpoint on or off
		enabled?: bool

		// listen_address is the metrics HTTP listen address
		listen_address?: string & !=""
	}

	tracing?: {
		// enabled turns span production on or off
		enabled?: bool

		// exporter is otlp, stdout, or none
		exporter?: "otlp" | "stdout" | "none"

		// endpoint is the OTLP collector endpoint
		endpoint?: string & !=""

		// sampling_rate is the trace sampling rate
		sampling_rate?: number & >=0 & <=1
	}
}
`

const builtinStoreSchema = `
// Store schema for run-history persistence
#Store: {
	// enabled turns run-history persistence on; omitted means on
	enabled?: bool

	// path is the SQLite database file
	path?: string & !=""

	// keep_runs prunes history to the most recent N runs
	keep_runs?: int & >=1
}
`

// ValidateRun validates a run configuration against the run schema.
func (sr *SchemaRegistry) ValidateRun(ctx context.Context, run RunConfig) error {
	return sr.ValidateAgainstSchema(ctx, "run", run)
}

// ValidateExecution validates execution tuning against the execution schema.
func (sr *SchemaRegistry) ValidateExecution(ctx context.Context, execution ExecutionConfig) error {
	return sr.ValidateAgainstSchema(ctx, "execution", execution)
}

// ValidateProtection validates protection settings against the protection schema.
func (sr *SchemaRegistry) ValidateProtection(ctx context.Context, protection ProtectionConfig) error {
	return sr.ValidateAgainstSchema(ctx, "protection", protection)
}

// ValidateFilter validates one filter declaration against the filter schema.
func (sr *SchemaRegistry) ValidateFilter(ctx context.Context, filter FilterConfig) error {
	return sr.ValidateAgainstSchema(ctx, "filter", filter)
}

// ValidateStore validates store settings against the store schema.
func (sr *SchemaRegistry) ValidateStore(ctx context.Context, store StoreSettings) error {
	return sr.ValidateAgainstSchema(ctx, "store", store)
}
