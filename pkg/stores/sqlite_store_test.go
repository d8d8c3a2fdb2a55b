package stores

import (
	"context"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func testRunRow(id string) *RunRow {
	now := time.Now()
	return &RunRow{
		ID:            id,
		CompartmentID: "ocid1.compartment.oc1..testcompartment",
		Regions:       `["us-ashburn-1"]`,
		Status:        "running",
		User:          "ops@example.com",
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	tables := []string{"runs", "outcomes", "events"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunCRUD tests run create, read, finish, and delete
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := testRunRow("run-001")

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
	if retrieved.CompartmentID != run.CompartmentID {
		t.Errorf("expected compartment %s, got %s", run.CompartmentID, retrieved.CompartmentID)
	}
	if retrieved.Status != "running" {
		t.Errorf("expected status running, got %s", retrieved.Status)
	}
	if retrieved.CompletedAt != nil {
		t.Error("expected no completion timestamp on a running run")
	}

	summary := `{"discovered":5,"succeeded":5}`
	if err := store.FinishRun(ctx, run.ID, "succeeded", nil, &summary); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	finished, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get finished run: %v", err)
	}
	if finished.Status != "succeeded" {
		t.Errorf("expected status succeeded, got %s", finished.Status)
	}
	if finished.CompletedAt == nil {
		t.Error("expected a completion timestamp")
	}
	if finished.Summary == nil || *finished.Summary != summary {
		t.Errorf("expected the summary persisted, got %v", finished.Summary)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	if _, err := store.GetRun(ctx, run.ID); err == nil {
		t.Error("expected an error getting a deleted run")
	}
}

// TestFinishRun_NotFound tests finishing a missing run
func TestFinishRun_NotFound(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.FinishRun(context.Background(), "missing", "succeeded", nil, nil)
	if err == nil {
		t.Error("expected an error for a missing run")
	}
}

// TestListRuns tests listing order, compartment filter, and pagination
func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := testRunRow(id)
		run.StartedAt = time.Now().Add(time.Duration(i) * time.Minute)
		if id == "run-c" {
			run.CompartmentID = "ocid1.compartment.oc1..other"
		}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	// Newest first.
	if runs[0].ID != "run-c" || runs[2].ID != "run-a" {
		t.Errorf("unexpected order: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	filtered, err := store.ListRuns(ctx, "ocid1.compartment.oc1..other", 10, 0)
	if err != nil {
		t.Fatalf("failed to list filtered runs: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "run-c" {
		t.Errorf("expected only run-c for the other compartment, got %d", len(filtered))
	}

	page, err := store.ListRuns(ctx, "", 1, 1)
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "run-b" {
		t.Errorf("expected run-b on page 2, got %v", page)
	}
}

// TestPruneRuns tests retention pruning
func TestPruneRuns(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := testRunRow(string(rune('a' + i)))
		run.StartedAt = time.Now().Add(time.Duration(i) * time.Minute)
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run %d: %v", i, err)
		}
	}

	pruned, err := store.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("failed to prune runs: %v", err)
	}
	if pruned != 3 {
		t.Errorf("expected 3 runs pruned, got %d", pruned)
	}

	remaining, err := store.ListRuns(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("expected 2 runs remaining, got %d", len(remaining))
	}
}

// TestOutcomes tests appending and listing outcomes
func TestOutcomes(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateRun(ctx, testRunRow("run-001")); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	reason := "protected by policy"
	outcomes := []*OutcomeRow{
		{RunID: "run-001", ResourceType: "Instance", ResourceID: "ocid1.instance.oc1..i0",
			Region: "us-ashburn-1", Status: "succeeded", Attempts: 1, ElapsedMS: 1500},
		{RunID: "run-001", ResourceType: "Volume", ResourceID: "ocid1.volume.oc1..v0",
			Region: "us-ashburn-1", Status: "failed", Attempts: 3, ElapsedMS: 9000},
		{RunID: "run-001", ResourceType: "Bucket", ResourceID: "ocid1.bucket.oc1..b0",
			Region: "us-ashburn-1", Status: "skipped", SkipReason: &reason},
	}
	for _, o := range outcomes {
		if err := store.AppendOutcome(ctx, o); err != nil {
			t.Fatalf("failed to append outcome: %v", err)
		}
		if o.ID == 0 {
			t.Error("expected the generated outcome id set")
		}
	}

	all, err := store.ListOutcomesByRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to list outcomes: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(all))
	}
	// Insertion order.
	if all[0].ResourceType != "Instance" || all[2].ResourceType != "Bucket" {
		t.Errorf("unexpected order: %s, %s, %s",
			all[0].ResourceType, all[1].ResourceType, all[2].ResourceType)
	}

	failed, err := store.ListOutcomesByStatus(ctx, "run-001", "failed")
	if err != nil {
		t.Fatalf("failed to list failed outcomes: %v", err)
	}
	if len(failed) != 1 || failed[0].ResourceID != "ocid1.volume.oc1..v0" {
		t.Errorf("expected only the volume failure, got %d", len(failed))
	}

	skipped, err := store.ListOutcomesByStatus(ctx, "run-001", "skipped")
	if err != nil {
		t.Fatalf("failed to list skipped outcomes: %v", err)
	}
	if len(skipped) != 1 || skipped[0].SkipReason == nil || *skipped[0].SkipReason != reason {
		t.Errorf("expected the skip reason persisted, got %v", skipped)
	}
}

// TestDeleteRunCleanup tests that deleting a run removes its outcomes and events
func TestDeleteRunCleanup(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateRun(ctx, testRunRow("run-001")); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	outcome := &OutcomeRow{
		RunID: "run-001", ResourceType: "Instance",
		ResourceID: "ocid1.instance.oc1..i0", Status: "succeeded", Attempts: 1,
	}
	if err := store.AppendOutcome(ctx, outcome); err != nil {
		t.Fatalf("failed to append outcome: %v", err)
	}
	event := &EventRow{
		RunID: "run-001", Type: "run.started", Message: "tearing down", Timestamp: time.Now(),
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	if err := store.DeleteRun(ctx, "run-001"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	remaining, err := store.ListOutcomesByRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to list outcomes: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected outcomes removed with the run, got %d", len(remaining))
	}

	events, err := store.ListEventsByRun(ctx, "run-001", 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected events removed with the run, got %d", len(events))
	}
}

// TestEvents tests the append-only event log
func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	resourceType := "Instance"
	resourceID := "ocid1.instance.oc1..i0"
	details := `{"attempt":2}`

	events := []*EventRow{
		{RunID: "run-001", Type: "run.started", Message: "tearing down", Timestamp: time.Now()},
		{RunID: "run-001", Type: "delete.retried", ResourceType: &resourceType,
			ResourceID: &resourceID, Message: "retrying", Details: &details, Timestamp: time.Now()},
		{RunID: "run-002", Type: "run.started", Message: "other run", Timestamp: time.Now()},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	listed, err := store.ListEventsByRun(ctx, "run-001", 10, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 events for run-001, got %d", len(listed))
	}
	// Oldest first.
	if listed[0].Type != "run.started" || listed[1].Type != "delete.retried" {
		t.Errorf("unexpected order: %s, %s", listed[0].Type, listed[1].Type)
	}
	if listed[1].Details == nil || *listed[1].Details != details {
		t.Errorf("expected the details blob persisted, got %v", listed[1].Details)
	}
}
