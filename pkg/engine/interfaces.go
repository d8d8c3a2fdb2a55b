package engine

import (
	"context"
	"time"
)

// Deleter deletes one resource. Implementations wrap a cloud API call and
// map its error into an *EngineError so the executor can classify it.
//
// Types needing multi-step teardown (empty-then-delete, clear-then-delete)
// implement this same interface; the executor treats all deleters alike.
type Deleter interface {
	Delete(ctx context.Context, record *ResourceRecord) error
}

// DeleterFunc adapts a function to the Deleter interface.
type DeleterFunc func(ctx context.Context, record *ResourceRecord) error

// Delete implements Deleter.
func (f DeleterFunc) Delete(ctx context.Context, record *ResourceRecord) error {
	return f(ctx, record)
}

// Waiter blocks until a resource reaches a terminal lifecycle state after a
// delete has been accepted. Implementations return nil once the resource is
// terminal or absent, and an error on timeout or poll failure.
type Waiter interface {
	AwaitDeletion(ctx context.Context, record *ResourceRecord) error
}

// WaiterFunc adapts a function to the Waiter interface.
type WaiterFunc func(ctx context.Context, record *ResourceRecord) error

// AwaitDeletion implements Waiter.
func (f WaiterFunc) AwaitDeletion(ctx context.Context, record *ResourceRecord) error {
	return f(ctx, record)
}

// Discoverer returns every active resource in a compartment for one region.
// Implementations must issue a single search query (paginated as needed),
// never a per-type enumeration.
type Discoverer interface {
	Discover(ctx context.Context, compartmentID string, excludedStates []string) ([]*ResourceRecord, error)
}

// Session is the per-region capability bundle a driver hands the engine.
type Session struct {
	// Region is the region this session talks to.
	Region string

	// Discoverer issues the region's search query.
	Discoverer Discoverer

	// Registry holds the region's type descriptors.
	Registry *TypeRegistry
}

// Driver binds the engine to a concrete cloud backend. The engine holds an
// already-authenticated driver and performs no credential acquisition.
type Driver interface {
	// Regions resolves the regions a run covers. An empty request means all
	// subscribed regions.
	Regions(ctx context.Context, requested []string) ([]string, error)

	// Session builds the capability bundle for one region.
	Session(ctx context.Context, region string) (*Session, error)

	// Compartments returns the client used by the finalizer. The finalizer
	// operates in the home region regardless of the run's region set.
	Compartments() CompartmentClient
}

// CompartmentClient supports the compartment finalizer.
type CompartmentClient interface {
	// CompartmentState returns the compartment's lifecycle state.
	CompartmentState(ctx context.Context, compartmentID string) (string, error)

	// DeleteCompartment requests deletion of the compartment itself.
	DeleteCompartment(ctx context.Context, compartmentID string) error
}

// ProtectionGate vetoes deletion of individual records before planning.
// A non-empty reason marks the record Skipped; the run continues. A gate
// error fails closed: the record is skipped with the error as reason.
type ProtectionGate interface {
	Check(ctx context.Context, record *ResourceRecord) (reason string, err error)
}

// ProtectionGateFunc adapts a function to the ProtectionGate interface.
type ProtectionGateFunc func(ctx context.Context, record *ResourceRecord) (string, error)

// Check implements ProtectionGate.
func (f ProtectionGateFunc) Check(ctx context.Context, record *ResourceRecord) (string, error) {
	return f(ctx, record)
}

// RecordFilter excludes individual records from a plan, e.g. via a scripted
// rule. Keep returns false to drop the record. Errors fail closed: the
// record is excluded from deletion and reported as skipped.
type RecordFilter interface {
	Keep(ctx context.Context, record *ResourceRecord) (bool, error)
}

// RecordFilterFunc adapts a function to the RecordFilter interface.
type RecordFilterFunc func(ctx context.Context, record *ResourceRecord) (bool, error)

// Keep implements RecordFilter.
func (f RecordFilterFunc) Keep(ctx context.Context, record *ResourceRecord) (bool, error) {
	return f(ctx, record)
}

// EventSink receives engine progress events. Publishing must not block the
// executor; slow sinks drop or buffer on their side.
type EventSink interface {
	Publish(ctx context.Context, event *Event) error
}

// ExecutionMetrics receives executor state transitions for instrumentation.
// Parameters are plain strings so implementations need no engine types.
// All methods must be safe for concurrent use.
type ExecutionMetrics interface {
	// PhaseChanged fires when a record moves between phases. An empty from
	// means the record just entered the executor.
	PhaseChanged(resourceType, from, to string)

	// OutcomeObserved fires once per terminal outcome.
	OutcomeObserved(resourceType, status string, attempts int, elapsed time.Duration)
}

// RunRecorder persists run progress. Recording is best-effort: errors are
// logged by the caller and never fail the run.
type RunRecorder interface {
	// RunStarted is called once the run id and region set are known.
	RunStarted(ctx context.Context, run *Run) error

	// OutcomeRecorded is called for every terminal outcome.
	OutcomeRecorded(ctx context.Context, runID string, outcome *DeletionOutcome) error

	// RunCompleted is called with the finished run.
	RunCompleted(ctx context.Context, run *Run) error
}
