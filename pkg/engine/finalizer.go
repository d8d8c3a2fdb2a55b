package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Finalizer retry schedule. Compartment deletion races the eventual
// consistency of the resources deleted moments earlier, so the delays are
// much longer than the per-resource schedule.
const (
	// FinalizerMaxAttempts bounds compartment delete calls.
	FinalizerMaxAttempts = 5

	// FinalizerBaseDelay is the first retry delay.
	FinalizerBaseDelay = 10 * time.Second

	// FinalizerMaxDelay caps the retry delay.
	FinalizerMaxDelay = 2 * time.Minute
)

// Compartment lifecycle states reported by the identity service.
const (
	CompartmentStateActive   = "ACTIVE"
	CompartmentStateDeleting = "DELETING"
	CompartmentStateDeleted  = "DELETED"
)

// Finalizer deletes the compartment itself after its contents are gone.
// The step only runs when the run left no failures behind, unless the
// caller explicitly forces it. "Compartment not empty" responses are
// retried: resources deleted seconds earlier may still be settling.
type Finalizer struct {
	client      CompartmentClient
	events      EventSink
	runID       string
	maxAttempts int
	backoff     func(retry int) time.Duration
}

// NewFinalizer creates a finalizer. The event sink may be nil.
func NewFinalizer(client CompartmentClient, events EventSink, runID string) *Finalizer {
	return &Finalizer{
		client:      client,
		events:      events,
		runID:       runID,
		maxAttempts: FinalizerMaxAttempts,
		backoff:     finalizerBackoff,
	}
}

// Finalize attempts to delete the compartment. The summary gates the step:
// with failures present and force unset, no delete call is issued and the
// outcome explains why. The returned outcome is never nil.
func (f *Finalizer) Finalize(ctx context.Context, compartmentID string, summary *RunSummary, force bool) *FinalizeOutcome {
	start := time.Now()
	outcome := &FinalizeOutcome{}

	if f.client == nil {
		outcome.Reason = "no compartment client configured"
		return outcome
	}

	if summary != nil && !summary.Clean() && !force {
		outcome.Reason = fmt.Sprintf(
			"%d resources failed to delete; compartment left in place", summary.Failed)
		outcome.Elapsed = time.Since(start)
		return outcome
	}

	// The compartment may already be on its way out from a previous run.
	if state, err := f.client.CompartmentState(ctx, compartmentID); err == nil {
		switch strings.ToUpper(state) {
		case CompartmentStateDeleting, CompartmentStateDeleted:
			outcome.Deleted = true
			outcome.Reason = fmt.Sprintf("compartment already %s", strings.ToLower(state))
			outcome.Elapsed = time.Since(start)
			return outcome
		}
	} else if IsAlreadyGone(err) {
		outcome.Deleted = true
		outcome.Reason = "compartment not found"
		outcome.Elapsed = time.Since(start)
		return outcome
	}

	outcome.Attempted = true

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff(attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				outcome.Reason = "cancelled while retrying compartment deletion"
				outcome.Elapsed = time.Since(start)
				return outcome
			}
		}

		outcome.Attempts = attempt

		f.publish(ctx, NewEvent(EventCompartmentDelete,
			fmt.Sprintf("deleting compartment %s (attempt %d/%d)", compartmentID, attempt, f.maxAttempts)).
			WithRun(f.runID).
			WithAttempt(attempt).
			WithDetail("compartment_id", compartmentID))

		err := f.client.DeleteCompartment(ctx, compartmentID)
		if err == nil {
			outcome.Deleted = true
			break
		}

		engErr := AsEngineError(err)
		if engErr.Resource == "" {
			engErr = engErr.WithResource(compartmentID)
		}

		if IsAlreadyGone(engErr) {
			outcome.Deleted = true
			outcome.Reason = "compartment not found"
			break
		}

		outcome.LastError = engErr
		if !IsRetryable(engErr) {
			break
		}
	}

	outcome.Elapsed = time.Since(start)

	if outcome.Deleted {
		outcome.LastError = nil
		f.publish(ctx, NewEvent(EventCompartmentDeleted,
			fmt.Sprintf("compartment %s deletion accepted", compartmentID)).
			WithRun(f.runID).
			WithDetail("compartment_id", compartmentID))
	} else {
		msg := fmt.Sprintf("compartment %s could not be deleted", compartmentID)
		if outcome.LastError != nil {
			msg = fmt.Sprintf("%s: %s", msg, outcome.LastError.Message)
		}
		f.publish(ctx, NewEvent(EventCompartmentDeleteFailed, msg).
			WithRun(f.runID).
			WithDetail("compartment_id", compartmentID))
	}

	return outcome
}

func (f *Finalizer) publish(ctx context.Context, event *Event) {
	if f.events == nil || event == nil {
		return
	}
	_ = f.events.Publish(ctx, event)
}

// finalizerBackoff doubles the base delay each retry up to the cap, with
// 25% jitter.
func finalizerBackoff(retry int) time.Duration {
	delay := FinalizerBaseDelay * time.Duration(math.Pow(2, float64(retry-1)))
	if delay > FinalizerMaxDelay {
		delay = FinalizerMaxDelay
	}
	jitter := time.Duration((rand.Float64() - 0.5) * 0.5 * float64(delay))
	return delay + jitter
}
