package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a store instance. Init must be called before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init opens the database and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction.
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CreateRun inserts a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *RunRow) error {
	query := `
		INSERT INTO runs (id, compartment_id, regions, status, dry_run, user, started_at, completed_at, error, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.CompartmentID,
		run.Regions,
		run.Status,
		run.DryRun,
		run.User,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		run.Summary,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRow, error) {
	query := `
		SELECT id, compartment_id, regions, status, dry_run, user, started_at, completed_at, error, summary, created_at, updated_at
		FROM runs
		WHERE id = ?
	`

	run := &RunRow{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.CompartmentID,
		&run.Regions,
		&run.Status,
		&run.DryRun,
		&run.User,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.Summary,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// FinishRun stamps a run's terminal status, error, and summary.
func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string, errMsg, summary *string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, summary = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	result, err := s.db.ExecContext(ctx, query, status, errMsg, summary, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs newest first. An empty compartmentID lists runs for
// every compartment.
func (s *SQLiteStore) ListRuns(ctx context.Context, compartmentID string, limit, offset int) ([]*RunRow, error) {
	query := `
		SELECT id, compartment_id, regions, status, dry_run, user, started_at, completed_at, error, summary, created_at, updated_at
		FROM runs
		WHERE (? = '' OR compartment_id = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, compartmentID, compartmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunRow{}
	for rows.Next() {
		run := &RunRow{}
		err := rows.Scan(
			&run.ID,
			&run.CompartmentID,
			&run.Regions,
			&run.Status,
			&run.DryRun,
			&run.User,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&run.Summary,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run along with its outcomes and events. Outcomes go
// through the foreign key cascade; events carry no foreign key and are
// removed explicitly.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run events: %w", err)
	}

	return tx.Commit()
}

// PruneRuns deletes all but the newest keep runs, returning how many runs
// were removed. Events belonging to pruned runs are removed in the same
// transaction.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const keepQuery = `SELECT id FROM runs ORDER BY started_at DESC LIMIT ?`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE run_id NOT IN (`+keepQuery+`)`, keep); err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (`+keepQuery+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	return rows, nil
}

// AppendOutcome inserts one per-resource outcome.
func (s *SQLiteStore) AppendOutcome(ctx context.Context, outcome *OutcomeRow) error {
	query := `
		INSERT INTO outcomes (run_id, resource_type, resource_id, region, status, attempts, skip_reason, error, started_at, completed_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		outcome.RunID,
		outcome.ResourceType,
		outcome.ResourceID,
		outcome.Region,
		outcome.Status,
		outcome.Attempts,
		outcome.SkipReason,
		outcome.Error,
		outcome.StartedAt,
		outcome.CompletedAt,
		outcome.ElapsedMS,
	)

	if err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get outcome ID: %w", err)
	}

	outcome.ID = id
	return nil
}

// ListOutcomesByRun lists all outcomes for a run in insertion order.
func (s *SQLiteStore) ListOutcomesByRun(ctx context.Context, runID string) ([]*OutcomeRow, error) {
	query := `
		SELECT id, run_id, resource_type, resource_id, region, status, attempts, skip_reason, error, started_at, completed_at, elapsed_ms
		FROM outcomes
		WHERE run_id = ?
		ORDER BY id ASC
	`

	return s.queryOutcomes(ctx, query, runID)
}

// ListOutcomesByStatus lists a run's outcomes with one status.
func (s *SQLiteStore) ListOutcomesByStatus(ctx context.Context, runID, status string) ([]*OutcomeRow, error) {
	query := `
		SELECT id, run_id, resource_type, resource_id, region, status, attempts, skip_reason, error, started_at, completed_at, elapsed_ms
		FROM outcomes
		WHERE run_id = ? AND status = ?
		ORDER BY id ASC
	`

	return s.queryOutcomes(ctx, query, runID, status)
}

func (s *SQLiteStore) queryOutcomes(ctx context.Context, query string, args ...interface{}) ([]*OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []*OutcomeRow{}
	for rows.Next() {
		outcome := &OutcomeRow{}
		err := rows.Scan(
			&outcome.ID,
			&outcome.RunID,
			&outcome.ResourceType,
			&outcome.ResourceID,
			&outcome.Region,
			&outcome.Status,
			&outcome.Attempts,
			&outcome.SkipReason,
			&outcome.Error,
			&outcome.StartedAt,
			&outcome.CompletedAt,
			&outcome.ElapsedMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return outcomes, nil
}

// AppendEvent appends one progress event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *EventRow) error {
	query := `
		INSERT INTO events (run_id, type, resource_type, resource_id, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.RunID,
		event.Type,
		event.ResourceType,
		event.ResourceID,
		event.Message,
		event.Details,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// ListEventsByRun lists a run's events oldest first.
func (s *SQLiteStore) ListEventsByRun(ctx context.Context, runID string, limit, offset int) ([]*EventRow, error) {
	query := `
		SELECT id, run_id, type, resource_type, resource_id, message, details, timestamp
		FROM events
		WHERE run_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*EventRow{}
	for rows.Next() {
		event := &EventRow{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Type,
			&event.ResourceType,
			&event.ResourceID,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
