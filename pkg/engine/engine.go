package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine ties discovery, planning, execution, and finalization together for
// one compartment teardown. It is stateless across runs: every Run call
// discovers, plans, and executes from scratch, and all persistence happens
// through the optional RunRecorder.
type Engine struct {
	driver   Driver
	gate     ProtectionGate
	filter   RecordFilter
	events   EventSink
	recorder RunRecorder
	metrics  ExecutionMetrics
	logger   zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithProtectionGate installs the gate consulted before any record is planned
// for deletion.
func WithProtectionGate(gate ProtectionGate) EngineOption {
	return func(e *Engine) {
		e.gate = gate
	}
}

// WithRecordFilter installs the record filter.
func WithRecordFilter(filter RecordFilter) EngineOption {
	return func(e *Engine) {
		e.filter = filter
	}
}

// WithEventSink installs the progress event sink.
func WithEventSink(events EventSink) EngineOption {
	return func(e *Engine) {
		e.events = events
	}
}

// WithRunRecorder installs the run history recorder.
func WithRunRecorder(recorder RunRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithExecutionMetrics installs the metrics hook.
func WithExecutionMetrics(metrics ExecutionMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithLogger installs the logger. The engine never touches global logger
// state; without this option it logs nowhere.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine bound to a driver. The driver must already be
// authenticated; the engine performs no credential acquisition.
func NewEngine(driver Driver, opts ...EngineOption) *Engine {
	e := &Engine{
		driver: driver,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one teardown. Fatal configuration and discovery errors return
// a non-nil error alongside the partially filled run record; per-resource
// failures never do, they are reported through the outcomes and summary.
// A cancelled context finishes the run with status Cancelled and a nil error.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Run, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.driver == nil {
		return nil, NewConfigurationError("engine requires a driver", nil)
	}

	run := &Run{
		ID:            uuid.New().String(),
		CompartmentID: req.CompartmentID,
		Status:        RunStatusRunning,
		DryRun:        req.DryRun,
		User:          req.User,
		StartedAt:     time.Now(),
	}

	logger := e.logger.With().
		Str("run_id", run.ID).
		Str("compartment_id", req.CompartmentID).
		Logger()

	regions, err := e.driver.Regions(ctx, req.Regions)
	if err != nil {
		return e.fail(ctx, run, NewConfigurationError("could not resolve regions", err))
	}
	if len(regions) == 0 {
		return e.fail(ctx, run, NewConfigurationError("no regions to run in", nil))
	}
	run.Regions = regions

	logger.Info().
		Strs("regions", regions).
		Bool("dry_run", req.DryRun).
		Msg("run started")

	e.publish(ctx, NewEvent(EventRunStarted,
		fmt.Sprintf("tearing down compartment %s across %d regions", req.CompartmentID, len(regions))).
		WithRun(run.ID).
		WithDetail("regions", regions).
		WithDetail("dry_run", req.DryRun))

	if e.recorder != nil {
		if rerr := e.recorder.RunStarted(ctx, run); rerr != nil {
			logger.Warn().Err(rerr).Msg("could not record run start")
		}
	}

	var summaries []*RunSummary
	for _, region := range regions {
		if ctx.Err() != nil {
			break
		}

		outcomes, summary, rerr := e.runRegion(ctx, logger, run, region, req)
		if rerr != nil {
			run.Outcomes = append(run.Outcomes, outcomes...)
			run.Summary = MergeSummaries(append(summaries, Summarize(outcomes, 0))...)
			return e.fail(ctx, run, AsEngineError(rerr))
		}

		run.Outcomes = append(run.Outcomes, outcomes...)
		summaries = append(summaries, summary)
	}

	run.Summary = MergeSummaries(summaries...)

	if req.DeleteCompartment {
		if req.DryRun {
			run.Compartment = &FinalizeOutcome{Reason: SkipReasonDryRun}
		} else {
			finalizer := NewFinalizer(e.driver.Compartments(), e.events, run.ID)
			run.Compartment = finalizer.Finalize(ctx, req.CompartmentID, run.Summary, req.ForceCompartment)
		}
	}

	switch {
	case ctx.Err() != nil:
		run.Status = RunStatusCancelled
	case run.Summary.Failed > 0:
		run.Status = RunStatusPartiallyFailed
	default:
		run.Status = RunStatusSucceeded
	}

	now := time.Now()
	run.CompletedAt = &now

	logger.Info().
		Str("status", string(run.Status)).
		Int("discovered", run.Summary.Discovered).
		Int("succeeded", run.Summary.Succeeded).
		Int("failed", run.Summary.Failed).
		Int("skipped", run.Summary.Skipped).
		Dur("elapsed", run.Summary.Elapsed).
		Msg("run completed")

	e.publish(ctx, NewEvent(EventRunCompleted,
		fmt.Sprintf("run %s: %d succeeded, %d failed, %d skipped",
			run.Status, run.Summary.Succeeded, run.Summary.Failed, run.Summary.Skipped)).
		WithRun(run.ID).
		WithDetail("status", string(run.Status)))

	e.recordCompleted(ctx, logger, run)

	return run, nil
}

// runRegion executes the full pipeline for one region. The returned error is
// fatal for the whole run; per-resource failures live in the outcomes.
func (e *Engine) runRegion(ctx context.Context, logger zerolog.Logger, run *Run, region string, req RunRequest) ([]*DeletionOutcome, *RunSummary, error) {
	start := time.Now()
	regionLogger := logger.With().Str("region", region).Logger()

	session, err := e.driver.Session(ctx, region)
	if err != nil {
		return nil, nil, NewConfigurationError(
			fmt.Sprintf("could not open session for region %s", region), err)
	}

	discovery := NewDiscoveryService(session.Discoverer, e.events)
	result, err := discovery.Discover(ctx, req.CompartmentID, region, req.ExcludedStates)
	if err != nil {
		return nil, nil, err
	}

	regionLogger.Info().
		Int("resources", len(result.Records)).
		Int("types", len(result.CountsByType)).
		Msg("discovery complete")

	planner := NewPlanner(session.Registry,
		WithPlannerGate(e.gate),
		WithPlannerFilter(e.filter),
		WithPlannerEvents(e.events))

	plan, err := planner.CreatePlan(ctx, result)
	if err != nil {
		return nil, nil, err
	}

	regionLogger.Debug().
		Int("groups", len(plan.Groups)).
		Int("planned", plan.RecordCount()).
		Int("skipped", len(plan.Skipped)).
		Msg("plan created")

	outcomes := make([]*DeletionOutcome, 0, plan.RecordCount()+len(plan.Skipped))
	outcomes = append(outcomes, plan.Skipped...)
	for _, skipped := range plan.Skipped {
		e.recordOutcome(ctx, regionLogger, run.ID, skipped)
	}

	if req.DryRun {
		for _, group := range plan.Groups {
			for _, record := range group.Records {
				outcome := NewSkippedOutcome(record, SkipReasonDryRun)
				e.publish(ctx, NewEvent(EventResourceSkipped,
					fmt.Sprintf("would delete %s %s", record.ResourceType, record.Identifier)).
					WithRun(run.ID).
					WithRegion(region).
					WithResource(record.ResourceType, record.Identifier).
					WithDetail("reason", SkipReasonDryRun))
				e.recordOutcome(ctx, regionLogger, run.ID, outcome)
				outcomes = append(outcomes, outcome)
			}
		}
	} else {
		executor := NewGroupExecutor(session.Registry, ExecutorConfig{
			RunID:         run.ID,
			Concurrency:   req.Concurrency,
			MaxAttempts:   req.MaxAttempts,
			DeleteTimeout: req.DeleteTimeout,
			WaitTimeout:   req.WaitTimeout,
			SkipWait:      req.SkipWait,
			Events:        e.events,
			Recorder:      e.recorder,
			Metrics:       e.metrics,
		})
		outcomes = append(outcomes, executor.Execute(ctx, plan)...)
	}

	return outcomes, Summarize(outcomes, time.Since(start)), nil
}

// fail finishes the run with a fatal error.
func (e *Engine) fail(ctx context.Context, run *Run, err *EngineError) (*Run, error) {
	run.Status = RunStatusFailed
	run.Error = err
	now := time.Now()
	run.CompletedAt = &now
	if run.Summary == nil {
		run.Summary = Summarize(run.Outcomes, 0)
	}

	e.logger.Error().
		Str("run_id", run.ID).
		Err(err).
		Msg("run failed")

	e.publish(ctx, NewEvent(EventRunCompleted,
		fmt.Sprintf("run failed: %s", err.Message)).
		WithRun(run.ID).
		WithDetail("status", string(run.Status)))

	e.recordCompleted(ctx, e.logger, run)

	return run, err
}

// History writes use a detached context so a cancelled run still lands in
// the store with its final status and outcomes.

func (e *Engine) recordOutcome(ctx context.Context, logger zerolog.Logger, runID string, outcome *DeletionOutcome) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.OutcomeRecorded(context.WithoutCancel(ctx), runID, outcome); err != nil {
		logger.Warn().Err(err).Msg("could not record outcome")
	}
}

func (e *Engine) recordCompleted(ctx context.Context, logger zerolog.Logger, run *Run) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RunCompleted(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Msg("could not record run completion")
	}
}

func (e *Engine) publish(ctx context.Context, event *Event) {
	if e.events == nil || event == nil {
		return
	}
	_ = e.events.Publish(ctx, event)
}
