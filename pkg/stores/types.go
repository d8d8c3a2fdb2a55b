package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunRow is one teardown run as persisted. Regions and Summary are JSON
// blobs; the engine types they mirror live in pkg/engine.
type RunRow struct {
	ID            string     `json:"id"`
	CompartmentID string     `json:"compartment_id"`
	Regions       string     `json:"regions"` // JSON array
	Status        string     `json:"status"`
	DryRun        bool       `json:"dry_run"`
	User          string     `json:"user"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         *string    `json:"error,omitempty"`
	Summary       *string    `json:"summary,omitempty"` // JSON blob
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutcomeRow is one per-resource outcome as persisted.
type OutcomeRow struct {
	ID           int64      `json:"id"`
	RunID        string     `json:"run_id"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Region       string     `json:"region"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	SkipReason   *string    `json:"skip_reason,omitempty"`
	Error        *string    `json:"error,omitempty"` // JSON blob
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ElapsedMS    int64      `json:"elapsed_ms"`
}

// EventRow is one progress event as persisted. Events are append-only.
type EventRow struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Type         string    `json:"type"`
	ResourceType *string   `json:"resource_type,omitempty"`
	ResourceID   *string   `json:"resource_id,omitempty"`
	Message      string    `json:"message"`
	Details      *string   `json:"details,omitempty"` // JSON blob
	Timestamp    time.Time `json:"timestamp"`
}

// Store is the persistence layer for run history.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Run operations
	CreateRun(ctx context.Context, run *RunRow) error
	GetRun(ctx context.Context, id string) (*RunRow, error)
	FinishRun(ctx context.Context, id, status string, errMsg, summary *string) error
	ListRuns(ctx context.Context, compartmentID string, limit, offset int) ([]*RunRow, error)
	DeleteRun(ctx context.Context, id string) error
	PruneRuns(ctx context.Context, keep int) (int64, error)

	// Outcome operations
	AppendOutcome(ctx context.Context, outcome *OutcomeRow) error
	ListOutcomesByRun(ctx context.Context, runID string) ([]*OutcomeRow, error)
	ListOutcomesByStatus(ctx context.Context, runID, status string) ([]*OutcomeRow, error)

	// Event operations
	AppendEvent(ctx context.Context, event *EventRow) error
	ListEventsByRun(ctx context.Context, runID string, limit, offset int) ([]*EventRow, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
