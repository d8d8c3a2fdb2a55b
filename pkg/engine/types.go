package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults applied by RunRequest.Normalize.
const (
	// DefaultConcurrency is the worker pool width within one deletion group.
	DefaultConcurrency = 10

	// DefaultMaxAttempts bounds delete attempts per resource, including the first.
	DefaultMaxAttempts = 3

	// DefaultDeleteTimeout bounds a single delete call.
	DefaultDeleteTimeout = 5 * time.Minute

	// DefaultWaitTimeout bounds waiting for a terminal lifecycle state after
	// an accepted delete.
	DefaultWaitTimeout = 15 * time.Minute
)

// DefaultExcludedStates returns the lifecycle states excluded from discovery.
// Resources in these states are already gone or on their way out.
func DefaultExcludedStates() []string {
	return []string{"TERMINATED", "DELETED", "DELETING", "TERMINATING"}
}

// Skip reasons recorded on Skipped outcomes.
const (
	SkipReasonNoDescriptor = "no descriptor registered"
	SkipReasonProtected    = "protected by policy"
	SkipReasonFiltered     = "excluded by filter"
	SkipReasonDryRun       = "dry run"
	SkipReasonCancelled    = "run cancelled"
)

// ResourceRecord is one discovered resource. Records are produced by
// discovery and never mutated afterwards; outcomes reference them.
type ResourceRecord struct {
	// ResourceType is the search service's type label (e.g., "Instance", "Vcn").
	ResourceType string `json:"resource_type"`

	// Identifier is the resource OCID.
	Identifier string `json:"identifier"`

	// CompartmentID is the compartment the resource lives in.
	CompartmentID string `json:"compartment_id"`

	// Region is the region the resource was discovered in.
	Region string `json:"region"`

	// LifecycleState is the state reported by the search index.
	LifecycleState string `json:"lifecycle_state"`

	// DisplayName is the human-readable name, when the type has one.
	DisplayName string `json:"display_name,omitempty"`

	// TimeCreated is when the resource was created, when reported.
	TimeCreated time.Time `json:"time_created,omitempty"`

	// FreeformTags are the resource's freeform tags. Consumed by protection
	// rules only; the executor never reads them.
	FreeformTags map[string]string `json:"freeform_tags,omitempty"`

	// DefinedTags are the resource's defined tags, by namespace.
	DefinedTags map[string]map[string]interface{} `json:"defined_tags,omitempty"`
}

// Validate checks the record has the fields every downstream component needs.
func (r *ResourceRecord) Validate() error {
	if r.ResourceType == "" {
		return NewConfigurationError("resource record has empty type", nil)
	}
	if r.Identifier == "" {
		return NewConfigurationError(
			fmt.Sprintf("resource record of type %s has empty identifier", r.ResourceType), nil)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *ResourceRecord) Clone() *ResourceRecord {
	clone := *r
	if r.FreeformTags != nil {
		clone.FreeformTags = make(map[string]string, len(r.FreeformTags))
		for k, v := range r.FreeformTags {
			clone.FreeformTags[k] = v
		}
	}
	if r.DefinedTags != nil {
		clone.DefinedTags = make(map[string]map[string]interface{}, len(r.DefinedTags))
		for ns, tags := range r.DefinedTags {
			inner := make(map[string]interface{}, len(tags))
			for k, v := range tags {
				inner[k] = v
			}
			clone.DefinedTags[ns] = inner
		}
	}
	return &clone
}

// TypeDescriptor describes how one resource type is torn down. Descriptors
// are immutable after registration and safe for concurrent reads.
//
// Special teardown logic (empty a bucket before deleting it, clear route
// rules before deleting a route table) is expressed as an alternative
// Deleter implementation, so the executor never branches on type identity.
type TypeDescriptor struct {
	// TypeName is the unique type key, matching the search service's label.
	TypeName string `json:"type_name"`

	// Deleter deletes one resource of this type.
	Deleter Deleter `json:"-"`

	// Waiter, when non-nil, blocks until the resource reaches a terminal
	// lifecycle state after an accepted delete.
	Waiter Waiter `json:"-"`

	// TerminalStates are the lifecycle states considered gone.
	TerminalStates []string `json:"terminal_states,omitempty"`

	// Predecessors are type names that must be fully deleted before this
	// type is attempted.
	Predecessors []string `json:"predecessors,omitempty"`
}

// Validate checks the descriptor is usable.
func (d *TypeDescriptor) Validate() error {
	if d.TypeName == "" {
		return NewConfigurationError("type descriptor has empty type name", nil)
	}
	if d.Deleter == nil {
		return NewConfigurationError(
			fmt.Sprintf("type descriptor %s has no deleter", d.TypeName), nil)
	}
	for _, pred := range d.Predecessors {
		if pred == d.TypeName {
			return NewConfigurationError(
				fmt.Sprintf("type descriptor %s lists itself as predecessor", d.TypeName), nil)
		}
	}
	return nil
}

// HasWaiter reports whether the type supports waiting for deletion.
func (d *TypeDescriptor) HasWaiter() bool {
	return d.Waiter != nil
}

// DeletionGroup is one step of the execution order: all discovered records
// of a single resource type. Groups are produced once by the planner and
// consumed once by the executor.
type DeletionGroup struct {
	// Index is the group's position in the plan, starting at 0.
	Index int `json:"index"`

	// ResourceType is the single type this group contains.
	ResourceType string `json:"resource_type"`

	// Records are the resources to delete, sorted by identifier.
	Records []*ResourceRecord `json:"records"`
}

// DeletionPlan is the ordered output of the planner for one region.
type DeletionPlan struct {
	// ID is the unique plan identifier.
	ID string `json:"id"`

	// CompartmentID is the target compartment.
	CompartmentID string `json:"compartment_id"`

	// Region is the region this plan covers.
	Region string `json:"region"`

	// Groups are the deletion steps in execution order.
	Groups []DeletionGroup `json:"groups"`

	// Skipped holds outcomes decided at planning time: unregistered types,
	// protected records, filtered records.
	Skipped []*DeletionOutcome `json:"skipped,omitempty"`

	// Graph is the dependency graph the group order was derived from.
	Graph *TypeGraph `json:"graph,omitempty"`

	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
}

// RecordCount returns the number of records across all groups.
func (p *DeletionPlan) RecordCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Records)
	}
	return n
}

// DeletionOutcome is the terminal result for one record. Every record fed
// into the executor yields exactly one outcome.
type DeletionOutcome struct {
	// ID is the unique outcome identifier.
	ID string `json:"id"`

	// Record is the resource this outcome belongs to.
	Record *ResourceRecord `json:"record"`

	// Status is the terminal status.
	Status OutcomeStatus `json:"status"`

	// Attempts is the number of delete calls issued (0 for Skipped).
	Attempts int `json:"attempts"`

	// LastError is the final error observed, if any.
	LastError *EngineError `json:"last_error,omitempty"`

	// SkipReason explains a Skipped status.
	SkipReason string `json:"skip_reason,omitempty"`

	// StartedAt is when the executor picked the record up.
	StartedAt time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the terminal status was recorded.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Elapsed is the wall-clock time spent on this record.
	Elapsed time.Duration `json:"elapsed"`
}

// NewSkippedOutcome builds the terminal outcome for a record that was never
// attempted. Skips still produce outcomes so every discovered record is
// accounted for exactly once.
func NewSkippedOutcome(record *ResourceRecord, reason string) *DeletionOutcome {
	now := time.Now()
	return &DeletionOutcome{
		ID:          uuid.New().String(),
		Record:      record,
		Status:      OutcomeSkipped,
		SkipReason:  reason,
		StartedAt:   now,
		CompletedAt: now,
	}
}

// TypeSummary is the per-type slice of a run summary. The counting rule is
// the same at both levels: Succeeded includes AlreadyGone, and
// Discovered = Succeeded + Failed + Skipped.
type TypeSummary struct {
	// Discovered is the number of records of this type fed into the run.
	Discovered int `json:"discovered"`

	// Succeeded is the number of resources confirmed absent.
	Succeeded int `json:"succeeded"`

	// AlreadyGone is the subset of Succeeded that was absent on arrival.
	AlreadyGone int `json:"already_gone"`

	// Failed counts terminal failures.
	Failed int `json:"failed"`

	// Skipped counts records never attempted.
	Skipped int `json:"skipped"`

	// LastError is the most recent failure message for this type, so an
	// operator can act on the specific blocking condition.
	LastError string `json:"last_error,omitempty"`
}

// RunSummary is the aggregate result of a run. Immutable once returned.
// Succeeded includes AlreadyGone: in both cases the resource is absent.
type RunSummary struct {
	// Discovered is the total number of records fed into execution.
	Discovered int `json:"discovered"`

	// Succeeded is the number of resources confirmed absent (clean delete
	// or already gone).
	Succeeded int `json:"succeeded"`

	// AlreadyGone is the subset of Succeeded that was absent on arrival.
	AlreadyGone int `json:"already_gone"`

	// Failed is the number of terminal failures.
	Failed int `json:"failed"`

	// Skipped is the number of records never attempted.
	Skipped int `json:"skipped"`

	// ByType breaks the counts down per resource type.
	ByType map[string]*TypeSummary `json:"by_type"`

	// Elapsed is the wall-clock duration from first dispatch to last completion.
	Elapsed time.Duration `json:"elapsed"`
}

// Clean reports whether the run left no failures behind.
func (s *RunSummary) Clean() bool {
	return s.Failed == 0
}

// FinalizeOutcome is the result of the optional compartment deletion step.
type FinalizeOutcome struct {
	// Attempted reports whether a delete call was issued at all.
	Attempted bool `json:"attempted"`

	// Deleted reports whether the compartment deletion was accepted.
	Deleted bool `json:"deleted"`

	// Attempts is the number of delete calls issued.
	Attempts int `json:"attempts"`

	// Reason explains why the finalizer did not attempt or did not succeed.
	Reason string `json:"reason,omitempty"`

	// LastError is the final error observed, if any.
	LastError *EngineError `json:"last_error,omitempty"`

	// Elapsed is the time spent finalizing.
	Elapsed time.Duration `json:"elapsed"`
}

// Run is the complete record of one teardown invocation.
type Run struct {
	// ID is the unique run identifier.
	ID string `json:"id"`

	// CompartmentID is the target compartment.
	CompartmentID string `json:"compartment_id"`

	// Regions are the regions the run covered, in execution order.
	Regions []string `json:"regions"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`

	// DryRun reports whether deletion was suppressed.
	DryRun bool `json:"dry_run"`

	// User is the operator identity supplied by the caller.
	User string `json:"user,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Outcomes holds one entry per discovered record.
	Outcomes []*DeletionOutcome `json:"outcomes,omitempty"`

	// Summary is the aggregate result.
	Summary *RunSummary `json:"summary,omitempty"`

	// Compartment is the finalizer result, when compartment deletion was requested.
	Compartment *FinalizeOutcome `json:"compartment,omitempty"`

	// Error is the fatal error for failed runs.
	Error *EngineError `json:"error,omitempty"`
}

// RunRequest is the caller's input to Engine.Run. The zero value is not
// usable; Normalize applies defaults and Validate rejects the rest.
type RunRequest struct {
	// CompartmentID is the compartment to tear down. Required.
	CompartmentID string `json:"compartment_id"`

	// Regions restricts the run to a subset of regions. Empty means all
	// subscribed regions, resolved by the driver.
	Regions []string `json:"regions,omitempty"`

	// Concurrency is the worker pool width within a group.
	Concurrency int `json:"concurrency"`

	// MaxAttempts bounds delete attempts per resource.
	MaxAttempts int `json:"max_attempts"`

	// DeleteTimeout bounds one delete call.
	DeleteTimeout time.Duration `json:"delete_timeout"`

	// WaitTimeout bounds waiting for a terminal state after a delete.
	WaitTimeout time.Duration `json:"wait_timeout"`

	// SkipWait disables waiting even for types that support it.
	SkipWait bool `json:"skip_wait"`

	// DryRun plans and reports without issuing any delete call.
	DryRun bool `json:"dry_run"`

	// DeleteCompartment requests the finalizer step after a clean run.
	DeleteCompartment bool `json:"delete_compartment"`

	// ForceCompartment attempts compartment deletion even when failures remain.
	ForceCompartment bool `json:"force_compartment"`

	// ExcludedStates overrides the lifecycle states excluded from discovery.
	ExcludedStates []string `json:"excluded_states,omitempty"`

	// User is the operator identity recorded on the run.
	User string `json:"user,omitempty"`
}

// Normalize fills unset fields with defaults.
func (r *RunRequest) Normalize() {
	if r.Concurrency <= 0 {
		r.Concurrency = DefaultConcurrency
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.DeleteTimeout <= 0 {
		r.DeleteTimeout = DefaultDeleteTimeout
	}
	if r.WaitTimeout <= 0 {
		r.WaitTimeout = DefaultWaitTimeout
	}
	if len(r.ExcludedStates) == 0 {
		r.ExcludedStates = DefaultExcludedStates()
	}
}

// Validate rejects requests the engine cannot execute.
func (r *RunRequest) Validate() error {
	if r.CompartmentID == "" {
		return NewConfigurationError("compartment id is required", nil)
	}
	if r.Concurrency < 0 {
		return NewConfigurationError("concurrency must not be negative", nil)
	}
	if r.MaxAttempts < 0 {
		return NewConfigurationError("max attempts must not be negative", nil)
	}
	return nil
}
