// Package engine implements the compartment teardown pipeline: discover
// every resource in a cloud compartment, order the resource types by their
// dependencies, delete them in parallel within each step, and optionally
// delete the emptied compartment itself.
//
// # Pipeline
//
// A run moves through four stages:
//
//  1. Discover - One structured search query enumerates every active
//     resource in the compartment (DiscoveryService)
//  2. Plan - Records are partitioned by resource type and the types are
//     ordered by their dependency graph; each step holds exactly one type
//     (Planner, GraphBuilder)
//  3. Execute - Groups run in order; records within a group are deleted by
//     a bounded worker pool with classified retries (GroupExecutor)
//  4. Finalize - With no failures left behind, the compartment itself is
//     deleted (Finalizer)
//
// The Engine type drives the stages across one or more regions and produces
// a Run record with one DeletionOutcome per discovered resource.
//
// # Capability Model
//
// The engine never branches on resource type identity. Everything
// type-specific lives in a TypeDescriptor registered with a TypeRegistry:
//
//   - Deleter: issues the delete call, including any multi-step teardown
//     such as emptying a bucket first
//   - Waiter: optionally polls until the resource reaches a terminal state
//   - Predecessors: type names that must be deleted first
//
// Records whose type has no descriptor are reported Skipped, never dropped
// and never fatal.
//
// # Error Classification
//
// Delete errors are classified to drive the retry loop:
//
//   - Transient: temporary failures, retried with backoff
//   - Throttled: rate limiting, retried with a longer backoff
//   - Conflict: the resource is still referenced, retried
//   - Permanent: retrying cannot help, failed immediately
//
// A "not found" response is not a failure: the goal state (resource absent)
// already holds and the outcome is AlreadyGone. Only configuration and
// discovery errors abort a run; per-resource failures are collected and the
// remaining groups still execute.
//
// # Accounting
//
// Every record fed into a run yields exactly one outcome: Succeeded,
// AlreadyGone, Failed, or Skipped. Summaries are pure aggregations of the
// outcomes, so Discovered = Succeeded + Failed + Skipped always holds, with
// AlreadyGone counted inside Succeeded.
package engine
