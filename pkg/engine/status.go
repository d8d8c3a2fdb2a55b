package engine

import (
	"fmt"
)

// OutcomeStatus is the terminal status of one resource deletion.
type OutcomeStatus string

const (
	// OutcomeSucceeded means the delete call (and wait, when enabled) completed.
	OutcomeSucceeded OutcomeStatus = "succeeded"

	// OutcomeAlreadyGone means the cloud API reported the resource absent.
	// Counted as success.
	OutcomeAlreadyGone OutcomeStatus = "already_gone"

	// OutcomeFailed means deletion failed permanently or retries were exhausted.
	OutcomeFailed OutcomeStatus = "failed"

	// OutcomeSkipped means the resource was never attempted: no descriptor
	// registered, protected by policy, filtered, dry run, or run cancelled.
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Validate checks that the status is a known value.
func (s OutcomeStatus) Validate() error {
	switch s {
	case OutcomeSucceeded, OutcomeAlreadyGone, OutcomeFailed, OutcomeSkipped:
		return nil
	default:
		return NewConfigurationError(fmt.Sprintf("invalid outcome status: %s", s), nil)
	}
}

// IsSuccess reports whether the status counts toward the succeeded total.
// AlreadyGone is success: the goal state (resource absent) holds.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeSucceeded || s == OutcomeAlreadyGone
}

// ResourcePhase is the in-flight state of a resource inside the executor.
// Phases appear in events and logs; the terminal result is an OutcomeStatus.
type ResourcePhase string

const (
	// PhasePending means the resource has not been dispatched yet.
	PhasePending ResourcePhase = "pending"

	// PhaseDeleting means a delete call is in flight.
	PhaseDeleting ResourcePhase = "deleting"

	// PhaseWaiting means the delete was accepted and the executor is polling
	// for a terminal lifecycle state.
	PhaseWaiting ResourcePhase = "waiting"

	// PhaseRetrying means a transient failure was observed and a backoff
	// sleep is in progress before the next attempt.
	PhaseRetrying ResourcePhase = "retrying"

	// PhaseDone means a terminal outcome has been recorded.
	PhaseDone ResourcePhase = "done"
)

// Validate checks that the phase is a known value.
func (p ResourcePhase) Validate() error {
	switch p {
	case PhasePending, PhaseDeleting, PhaseWaiting, PhaseRetrying, PhaseDone:
		return nil
	default:
		return NewConfigurationError(fmt.Sprintf("invalid resource phase: %s", p), nil)
	}
}

// IsTerminal reports whether the phase is final.
func (p ResourcePhase) IsTerminal() bool {
	return p == PhaseDone
}

// RunStatus is the overall status of a teardown run.
type RunStatus string

const (
	// RunStatusPending means the run has been created but not started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning means discovery or deletion is in progress.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded means every attempted resource succeeded or was
	// already gone.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartiallyFailed means the run completed but some resources
	// could not be deleted.
	RunStatusPartiallyFailed RunStatus = "partially_failed"

	// RunStatusFailed means a fatal configuration or discovery error aborted
	// the run before deletion completed.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled means the caller cancelled the run.
	RunStatusCancelled RunStatus = "cancelled"
)

// Validate checks that the status is a known value.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusPartiallyFailed, RunStatusFailed, RunStatusCancelled:
		return nil
	default:
		return NewConfigurationError(fmt.Sprintf("invalid run status: %s", s), nil)
	}
}

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusPartiallyFailed, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}
