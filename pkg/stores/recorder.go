package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Recorder persists engine runs through a Store. It implements
// engine.RunRecorder, so handing it to the engine is enough to get a full
// queryable history of every run, outcome by outcome.
type Recorder struct {
	store Store
}

var _ engine.RunRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder over an initialized store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// RunStarted implements engine.RunRecorder.
func (r *Recorder) RunStarted(ctx context.Context, run *engine.Run) error {
	regions, err := json.Marshal(run.Regions)
	if err != nil {
		return fmt.Errorf("failed to marshal regions: %w", err)
	}

	now := time.Now()
	return r.store.CreateRun(ctx, &RunRow{
		ID:            run.ID,
		CompartmentID: run.CompartmentID,
		Regions:       string(regions),
		Status:        string(run.Status),
		DryRun:        run.DryRun,
		User:          run.User,
		StartedAt:     run.StartedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// OutcomeRecorded implements engine.RunRecorder.
func (r *Recorder) OutcomeRecorded(ctx context.Context, runID string, outcome *engine.DeletionOutcome) error {
	if outcome == nil || outcome.Record == nil {
		return nil
	}

	row := &OutcomeRow{
		RunID:        runID,
		ResourceType: outcome.Record.ResourceType,
		ResourceID:   outcome.Record.Identifier,
		Region:       outcome.Record.Region,
		Status:       string(outcome.Status),
		Attempts:     outcome.Attempts,
		ElapsedMS:    outcome.Elapsed.Milliseconds(),
	}

	if outcome.SkipReason != "" {
		reason := outcome.SkipReason
		row.SkipReason = &reason
	}
	if outcome.LastError != nil {
		blob, err := json.Marshal(outcome.LastError)
		if err != nil {
			return fmt.Errorf("failed to marshal outcome error: %w", err)
		}
		encoded := string(blob)
		row.Error = &encoded
	}
	if !outcome.StartedAt.IsZero() {
		started := outcome.StartedAt
		row.StartedAt = &started
	}
	if !outcome.CompletedAt.IsZero() {
		completed := outcome.CompletedAt
		row.CompletedAt = &completed
	}

	return r.store.AppendOutcome(ctx, row)
}

// RunCompleted implements engine.RunRecorder.
func (r *Recorder) RunCompleted(ctx context.Context, run *engine.Run) error {
	var errMsg *string
	if run.Error != nil {
		msg := run.Error.Error()
		errMsg = &msg
	}

	var summary *string
	if run.Summary != nil {
		blob, err := json.Marshal(run.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		encoded := string(blob)
		summary = &encoded
	}

	return r.store.FinishRun(ctx, run.ID, string(run.Status), errMsg, summary)
}

// RecordEvent persists one progress event. Wire it as an event subscriber to
// keep the full event feed alongside the outcomes.
func (r *Recorder) RecordEvent(ctx context.Context, event *engine.Event) error {
	if event == nil || event.RunID == "" {
		return nil
	}

	row := &EventRow{
		RunID:     event.RunID,
		Type:      string(event.Type),
		Message:   event.Message,
		Timestamp: event.Timestamp,
	}

	if event.ResourceType != "" {
		resourceType := event.ResourceType
		row.ResourceType = &resourceType
	}
	if event.ResourceID != "" {
		resourceID := event.ResourceID
		row.ResourceID = &resourceID
	}
	if len(event.Details) > 0 {
		blob, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
		encoded := string(blob)
		row.Details = &encoded
	}

	return r.store.AppendEvent(ctx, row)
}

// LoadSummary unmarshals a persisted run summary, or nil when none was
// stored.
func LoadSummary(row *RunRow) (*engine.RunSummary, error) {
	if row == nil || row.Summary == nil {
		return nil, nil
	}

	summary := &engine.RunSummary{}
	if err := json.Unmarshal([]byte(*row.Summary), summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return summary, nil
}

// LoadRegions unmarshals a persisted region list.
func LoadRegions(row *RunRow) ([]string, error) {
	if row == nil || row.Regions == "" {
		return nil, nil
	}

	var regions []string
	if err := json.Unmarshal([]byte(row.Regions), &regions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal regions: %w", err)
	}
	return regions, nil
}
