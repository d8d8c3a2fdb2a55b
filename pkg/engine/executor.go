package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutorConfig carries the per-run knobs for group execution.
type ExecutorConfig struct {
	// RunID is stamped on every event the executor emits.
	RunID string

	// Concurrency is the worker pool width within one group.
	Concurrency int

	// MaxAttempts bounds delete calls per record, including the first.
	MaxAttempts int

	// DeleteTimeout bounds a single delete call.
	DeleteTimeout time.Duration

	// WaitTimeout bounds waiting for a terminal state after a delete.
	WaitTimeout time.Duration

	// SkipWait disables waiting even for types that support it.
	SkipWait bool

	// Events receives progress events. May be nil.
	Events EventSink

	// Recorder persists outcomes as they land. May be nil.
	Recorder RunRecorder

	// Metrics receives phase transitions and outcomes. May be nil.
	Metrics ExecutionMetrics
}

// normalize fills unset fields with defaults.
func (c *ExecutorConfig) normalize() {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = DefaultDeleteTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
}

// GroupExecutor runs the deletion groups of a plan in order. Within a group
// records are deleted by a bounded worker pool; a group must fully settle
// before the next group is released. Failures never cascade: a failed group
// does not block later groups from being attempted.
type GroupExecutor struct {
	registry *TypeRegistry
	cfg      ExecutorConfig
	backoff  func(retry int, err error) time.Duration
}

// NewGroupExecutor creates an executor over the given registry.
func NewGroupExecutor(registry *TypeRegistry, cfg ExecutorConfig) *GroupExecutor {
	cfg.normalize()
	return &GroupExecutor{
		registry: registry,
		cfg:      cfg,
		backoff:  calculateBackoff,
	}
}

// Execute runs every group of the plan and returns exactly one outcome per
// record. Per-resource failures are reported in the outcomes, never as an
// error. Cancellation is honored at group boundaries and between retry
// attempts; records not yet dispatched when the context is cancelled are
// reported Skipped rather than silently dropped.
func (e *GroupExecutor) Execute(ctx context.Context, plan *DeletionPlan) []*DeletionOutcome {
	outcomes := make([]*DeletionOutcome, 0, plan.RecordCount())

	for i := range plan.Groups {
		group := &plan.Groups[i]

		if ctx.Err() != nil {
			for j := i; j < len(plan.Groups); j++ {
				outcomes = append(outcomes, e.skipGroup(ctx, &plan.Groups[j], SkipReasonCancelled)...)
			}
			break
		}

		e.publish(ctx, NewEvent(EventGroupStarted,
			fmt.Sprintf("deleting %d %s resources (group %d/%d)",
				len(group.Records), group.ResourceType, group.Index+1, len(plan.Groups))).
			WithRun(e.cfg.RunID).
			WithRegion(plan.Region).
			WithResource(group.ResourceType, "").
			WithDetail("record_count", len(group.Records)))

		groupOutcomes := e.executeGroup(ctx, group)
		outcomes = append(outcomes, groupOutcomes...)

		var succeeded, failed, skipped int
		for _, o := range groupOutcomes {
			switch {
			case o.Status.IsSuccess():
				succeeded++
			case o.Status == OutcomeFailed:
				failed++
			case o.Status == OutcomeSkipped:
				skipped++
			}
		}

		e.publish(ctx, NewEvent(EventGroupCompleted,
			fmt.Sprintf("group %s settled: %d succeeded, %d failed, %d skipped",
				group.ResourceType, succeeded, failed, skipped)).
			WithRun(e.cfg.RunID).
			WithRegion(plan.Region).
			WithResource(group.ResourceType, "").
			WithDetail("succeeded", succeeded).
			WithDetail("failed", failed).
			WithDetail("skipped", skipped))
	}

	return outcomes
}

// executeGroup deletes every record of one group with a bounded worker pool
// and blocks until all of them are terminal.
func (e *GroupExecutor) executeGroup(ctx context.Context, group *DeletionGroup) []*DeletionOutcome {
	desc, ok := e.registry.Lookup(group.ResourceType)
	if !ok {
		// The planner only emits groups for registered types.
		return e.skipGroup(ctx, group, SkipReasonNoDescriptor)
	}

	workers := e.cfg.Concurrency
	if len(group.Records) < workers {
		workers = len(group.Records)
	}

	queue := make(chan *ResourceRecord, len(group.Records))
	for _, record := range group.Records {
		e.phase(record.ResourceType, "", PhasePending)
		queue <- record
	}
	close(queue)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make([]*DeletionOutcome, 0, len(group.Records))
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for record := range queue {
				var outcome *DeletionOutcome
				if ctx.Err() != nil {
					outcome = e.skipRecord(ctx, record, SkipReasonCancelled)
				} else {
					outcome = e.executeRecord(ctx, desc, record)
				}

				e.record(ctx, outcome)

				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return outcomes
}

// executeRecord drives one record through the attempt loop until a terminal
// outcome: delete, classify the error, retry transient failures with backoff
// up to the attempt cap, wait for the terminal state when the type supports
// it. A "not found" response at any point means the goal state already holds.
func (e *GroupExecutor) executeRecord(ctx context.Context, desc *TypeDescriptor, record *ResourceRecord) *DeletionOutcome {
	outcome := &DeletionOutcome{
		ID:        uuid.New().String(),
		Record:    record,
		StartedAt: time.Now(),
	}

	e.publish(ctx, NewEvent(EventDeleteStarted,
		fmt.Sprintf("deleting %s %s", record.ResourceType, record.Identifier)).
		WithRun(e.cfg.RunID).
		WithRegion(record.Region).
		WithResource(record.ResourceType, record.Identifier))

	var lastErr *EngineError
	cur := PhasePending

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := e.backoff(attempt-1, lastErr)
			e.phase(record.ResourceType, string(cur), PhaseRetrying)
			cur = PhaseRetrying

			e.publish(ctx, NewEvent(EventDeleteRetried,
				fmt.Sprintf("retrying %s in %s (attempt %d/%d)",
					record.Identifier, backoff.Round(time.Millisecond), attempt, e.cfg.MaxAttempts)).
				WithRun(e.cfg.RunID).
				WithRegion(record.Region).
				WithResource(record.ResourceType, record.Identifier).
				WithAttempt(attempt).
				WithDetail("backoff", backoff.String()).
				WithDetail("error", lastErr.Error()))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				// Cancelled between attempts. The record was attempted, so
				// it gets its real last error rather than a skip.
				return e.finish(ctx, record, outcome, OutcomeFailed, lastErr, cur)
			}
		}

		e.phase(record.ResourceType, string(cur), PhaseDeleting)
		cur = PhaseDeleting

		outcome.Attempts = attempt

		deleteCtx, cancel := context.WithTimeout(ctx, e.cfg.DeleteTimeout)
		err := desc.Deleter.Delete(deleteCtx, record)
		cancel()

		if err == nil {
			if desc.HasWaiter() && !e.cfg.SkipWait {
				e.phase(record.ResourceType, string(cur), PhaseWaiting)
				cur = PhaseWaiting
				if werr := e.await(ctx, desc, record); werr != nil {
					return e.finish(ctx, record, outcome, OutcomeFailed, werr, cur)
				}
			}
			return e.finish(ctx, record, outcome, OutcomeSucceeded, nil, cur)
		}

		engErr := AsEngineError(err)
		if engErr.Resource == "" {
			engErr = engErr.WithResource(record.Identifier)
		}
		if engErr.Operation == "" {
			engErr = engErr.WithOperation("delete")
		}

		if IsAlreadyGone(engErr) {
			return e.finish(ctx, record, outcome, OutcomeAlreadyGone, nil, cur)
		}
		if !IsRetryable(engErr) {
			return e.finish(ctx, record, outcome, OutcomeFailed, engErr, cur)
		}
		lastErr = engErr
	}

	return e.finish(ctx, record, outcome, OutcomeFailed, lastErr, cur)
}

// await polls for the terminal lifecycle state after an accepted delete.
func (e *GroupExecutor) await(ctx context.Context, desc *TypeDescriptor, record *ResourceRecord) *EngineError {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.WaitTimeout)
	defer cancel()

	err := desc.Waiter.AwaitDeletion(waitCtx, record)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewPermanentError(
			fmt.Sprintf("timed out after %s waiting for %s to reach a terminal state",
				e.cfg.WaitTimeout, record.Identifier), err).
			WithCode(ErrCodeWaitTimeout).
			WithResource(record.Identifier).
			WithOperation("wait")
	}
	if errors.Is(err, context.Canceled) {
		return NewPermanentError(
			fmt.Sprintf("wait for %s interrupted by cancellation", record.Identifier), err).
			WithCode(ErrCodeCancelled).
			WithResource(record.Identifier).
			WithOperation("wait")
	}

	engErr := AsEngineError(err)
	if engErr.Resource == "" {
		engErr = engErr.WithResource(record.Identifier)
	}
	if engErr.Operation == "" {
		engErr = engErr.WithOperation("wait")
	}
	return engErr
}

// finish stamps the terminal fields on an outcome and emits the matching
// event and metrics.
func (e *GroupExecutor) finish(ctx context.Context, record *ResourceRecord, outcome *DeletionOutcome, status OutcomeStatus, lastErr *EngineError, from ResourcePhase) *DeletionOutcome {
	outcome.Status = status
	outcome.LastError = lastErr
	outcome.CompletedAt = time.Now()
	outcome.Elapsed = outcome.CompletedAt.Sub(outcome.StartedAt)

	e.phase(record.ResourceType, string(from), PhaseDone)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.OutcomeObserved(record.ResourceType, string(status), outcome.Attempts, outcome.Elapsed)
	}

	switch status {
	case OutcomeSucceeded:
		e.publish(ctx, NewEvent(EventDeleteSucceeded,
			fmt.Sprintf("deleted %s %s", record.ResourceType, record.Identifier)).
			WithRun(e.cfg.RunID).
			WithRegion(record.Region).
			WithResource(record.ResourceType, record.Identifier).
			WithAttempt(outcome.Attempts))
	case OutcomeAlreadyGone:
		e.publish(ctx, NewEvent(EventDeleteSucceeded,
			fmt.Sprintf("%s %s already gone", record.ResourceType, record.Identifier)).
			WithRun(e.cfg.RunID).
			WithRegion(record.Region).
			WithResource(record.ResourceType, record.Identifier).
			WithAttempt(outcome.Attempts).
			WithDetail("already_gone", true))
	case OutcomeFailed:
		msg := fmt.Sprintf("failed to delete %s %s", record.ResourceType, record.Identifier)
		if lastErr != nil {
			msg = fmt.Sprintf("%s: %s", msg, lastErr.Message)
		}
		e.publish(ctx, NewEvent(EventDeleteFailed, msg).
			WithRun(e.cfg.RunID).
			WithRegion(record.Region).
			WithResource(record.ResourceType, record.Identifier).
			WithAttempt(outcome.Attempts))
	}

	return outcome
}

// skipGroup produces Skipped outcomes for every record in a group.
func (e *GroupExecutor) skipGroup(ctx context.Context, group *DeletionGroup, reason string) []*DeletionOutcome {
	outcomes := make([]*DeletionOutcome, 0, len(group.Records))
	for _, record := range group.Records {
		outcome := e.skipRecord(ctx, record, reason)
		e.record(ctx, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// skipRecord produces one Skipped outcome and emits the event.
func (e *GroupExecutor) skipRecord(ctx context.Context, record *ResourceRecord, reason string) *DeletionOutcome {
	e.publish(ctx, NewEvent(EventResourceSkipped,
		fmt.Sprintf("skipping %s %s: %s", record.ResourceType, record.Identifier, reason)).
		WithRun(e.cfg.RunID).
		WithRegion(record.Region).
		WithResource(record.ResourceType, record.Identifier).
		WithDetail("reason", reason))

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.OutcomeObserved(record.ResourceType, string(OutcomeSkipped), 0, 0)
	}

	return NewSkippedOutcome(record, reason)
}

// publish sends an event to the sink, when one is configured.
func (e *GroupExecutor) publish(ctx context.Context, event *Event) {
	if e.cfg.Events == nil || event == nil {
		return
	}
	_ = e.cfg.Events.Publish(ctx, event)
}

// record persists an outcome, best-effort. The write uses a detached context
// so outcomes landing during a cancelled run still reach the store.
func (e *GroupExecutor) record(ctx context.Context, outcome *DeletionOutcome) {
	if e.cfg.Recorder == nil {
		return
	}
	_ = e.cfg.Recorder.OutcomeRecorded(context.WithoutCancel(ctx), e.cfg.RunID, outcome)
}

// phase reports a phase transition to the metrics hook.
func (e *GroupExecutor) phase(resourceType, from string, to ResourcePhase) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.PhaseChanged(resourceType, from, string(to))
}

// calculateBackoff returns the sleep before the next attempt: the class base
// delay for the first retry, doubled each retry after that, capped at one
// minute, with 25% jitter so parallel retries against the same service
// spread out.
func calculateBackoff(retry int, err error) time.Duration {
	baseDelay := 1 * time.Second
	if IsThrottled(err) {
		baseDelay = 5 * time.Second
	} else if IsConflict(err) {
		baseDelay = 2 * time.Second
	}

	delay := baseDelay * time.Duration(math.Pow(2, float64(retry-1)))

	if delay > time.Minute {
		delay = time.Minute
	}

	jitter := time.Duration((rand.Float64() - 0.5) * 0.5 * float64(delay))
	return delay + jitter
}
