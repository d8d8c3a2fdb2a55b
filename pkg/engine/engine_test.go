package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// mockDriver serves canned regions and sessions.
type mockDriver struct {
	regions      []string
	regionsErr   error
	sessions     map[string]*Session
	sessionErr   error
	compartments *mockCompartmentClient
}

func (m *mockDriver) Regions(ctx context.Context, requested []string) ([]string, error) {
	if m.regionsErr != nil {
		return nil, m.regionsErr
	}
	if len(requested) > 0 {
		return requested, nil
	}
	return m.regions, nil
}

func (m *mockDriver) Session(ctx context.Context, region string) (*Session, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	session, ok := m.sessions[region]
	if !ok {
		return nil, fmt.Errorf("no session for region %s", region)
	}
	return session, nil
}

func (m *mockDriver) Compartments() CompartmentClient {
	if m.compartments == nil {
		return nil
	}
	return m.compartments
}

// mockRecorder counts recorder callbacks.
type mockRecorder struct {
	mu        sync.Mutex
	err       error
	started   []*Run
	outcomes  []*DeletionOutcome
	completed []*Run
}

func (m *mockRecorder) RunStarted(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, run)
	return m.err
}

func (m *mockRecorder) OutcomeRecorded(ctx context.Context, runID string, outcome *DeletionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return m.err
}

func (m *mockRecorder) RunCompleted(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, run)
	return m.err
}

// testDriver builds a single-region driver with Instance and Volume
// descriptors sharing one deleter, Volume depending on Instance.
func testDriver(t *testing.T, deleter *mockDeleter, records ...*ResourceRecord) *mockDriver {
	t.Helper()
	instance := testDescriptor("Instance")
	instance.Deleter = deleter
	volume := testDescriptor("Volume", "Instance")
	volume.Deleter = deleter
	registry := testRegistry(t, instance, volume)

	return &mockDriver{
		regions: []string{"us-ashburn-1"},
		sessions: map[string]*Session{
			"us-ashburn-1": {
				Region:     "us-ashburn-1",
				Discoverer: &mockDiscoverer{records: records},
				Registry:   registry,
			},
		},
		compartments: &mockCompartmentClient{},
	}
}

func testRequest() RunRequest {
	return RunRequest{CompartmentID: "ocid1.compartment.oc1..c0"}
}

func TestEngine_Run_Succeeds(t *testing.T) {
	deleter := newMockDeleter()
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..i0"),
		testRecord("Instance", "ocid1.instance.oc1..i1"),
		testRecord("Volume", "ocid1.volume.oc1..v0"))

	run, err := NewEngine(driver).Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != RunStatusSucceeded {
		t.Errorf("Expected status succeeded, got %s", run.Status)
	}
	if run.Summary.Discovered != 3 || run.Summary.Succeeded != 3 {
		t.Errorf("Expected 3 discovered and 3 succeeded, got %+v", run.Summary)
	}
	if len(run.Outcomes) != 3 {
		t.Errorf("Expected 3 outcomes, got %d", len(run.Outcomes))
	}
	if run.CompletedAt == nil {
		t.Error("Expected a completion timestamp")
	}
	if len(run.Regions) != 1 || run.Regions[0] != "us-ashburn-1" {
		t.Errorf("Unexpected region set: %v", run.Regions)
	}

	// Volumes depend on instances, so instances finish first.
	if deleter.lastEnd["Instance"].After(deleter.firstStart["Volume"]) {
		t.Error("Expected all instances deleted before any volume")
	}
}

func TestEngine_Run_PartialFailure(t *testing.T) {
	deleter := newMockDeleter()
	deleter.fail("ocid1.volume.oc1..stuck",
		NewPermanentError("volume is in a volume group", nil))
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..i0"),
		testRecord("Volume", "ocid1.volume.oc1..stuck"))

	run, err := NewEngine(driver).Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Per-resource failures must not fail the run: %v", err)
	}

	if run.Status != RunStatusPartiallyFailed {
		t.Errorf("Expected status partially_failed, got %s", run.Status)
	}
	if run.Summary.Succeeded != 1 || run.Summary.Failed != 1 {
		t.Errorf("Expected 1 succeeded and 1 failed, got %+v", run.Summary)
	}
	total := run.Summary.Succeeded + run.Summary.Failed + run.Summary.Skipped
	if run.Summary.Discovered != total {
		t.Errorf("Conservation broken: discovered %d, accounted %d",
			run.Summary.Discovered, total)
	}
}

func TestEngine_Run_DryRun(t *testing.T) {
	deleter := newMockDeleter()
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..i0"),
		testRecord("Volume", "ocid1.volume.oc1..v0"))

	req := testRequest()
	req.DryRun = true
	req.DeleteCompartment = true

	run, err := NewEngine(driver).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != RunStatusSucceeded {
		t.Errorf("Expected status succeeded, got %s", run.Status)
	}
	if run.Summary.Skipped != 2 || run.Summary.Succeeded != 0 {
		t.Errorf("Expected every record skipped, got %+v", run.Summary)
	}
	for _, outcome := range run.Outcomes {
		if outcome.Status != OutcomeSkipped || outcome.SkipReason != SkipReasonDryRun {
			t.Errorf("%s: expected a dry-run skip, got %s/%s",
				outcome.Record.Identifier, outcome.Status, outcome.SkipReason)
		}
	}
	if deleter.callCount("ocid1.instance.oc1..i0") != 0 {
		t.Error("Dry run must not issue delete calls")
	}
	if run.Compartment == nil || run.Compartment.Attempted || run.Compartment.Reason != SkipReasonDryRun {
		t.Errorf("Expected the compartment step skipped as dry run, got %+v", run.Compartment)
	}
	if driver.compartments.callCount() != 0 {
		t.Error("Dry run must not delete the compartment")
	}
}

func TestEngine_Run_DiscoveryFailureIsFatal(t *testing.T) {
	driver := testDriver(t, newMockDeleter())
	driver.sessions["us-ashburn-1"].Discoverer = &mockDiscoverer{
		err: errors.New("search service returned 502"),
	}

	run, err := NewEngine(driver).Run(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected a fatal error from failed discovery")
	}
	if !IsDiscoveryFailure(err) {
		t.Errorf("Expected a discovery error, got %v", err)
	}
	if run == nil || run.Status != RunStatusFailed {
		t.Fatalf("Expected status failed, got %+v", run)
	}
	if run.Error == nil {
		t.Error("Expected the fatal error on the run record")
	}
	if run.CompletedAt == nil {
		t.Error("Expected a completion timestamp on a failed run")
	}
}

func TestEngine_Run_ValidatesRequest(t *testing.T) {
	driver := testDriver(t, newMockDeleter())

	_, err := NewEngine(driver).Run(context.Background(), RunRequest{})
	if err == nil {
		t.Fatal("Expected an error for a missing compartment id")
	}
	if !IsConfiguration(err) {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestEngine_Run_NilDriver(t *testing.T) {
	_, err := NewEngine(nil).Run(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected an error without a driver")
	}
	if !IsConfiguration(err) {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestEngine_Run_NoRegions(t *testing.T) {
	driver := testDriver(t, newMockDeleter())
	driver.regions = nil

	run, err := NewEngine(driver).Run(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected an error with no regions to run in")
	}
	if run == nil || run.Status != RunStatusFailed {
		t.Fatalf("Expected status failed, got %+v", run)
	}
}

func TestEngine_Run_Cancelled(t *testing.T) {
	deleter := newMockDeleter()
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..i0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewEngine(driver).Run(ctx, testRequest())
	if err != nil {
		t.Fatalf("Cancellation must not be a fatal error: %v", err)
	}
	if run.Status != RunStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", run.Status)
	}
	if deleter.callCount("ocid1.instance.oc1..i0") != 0 {
		t.Error("Expected no delete calls after cancellation")
	}
}

func TestEngine_Run_RecorderInvoked(t *testing.T) {
	recorder := &mockRecorder{}
	driver := testDriver(t, newMockDeleter(),
		testRecord("Instance", "ocid1.instance.oc1..i0"),
		testRecord("Volume", "ocid1.volume.oc1..v0"))

	run, err := NewEngine(driver, WithRunRecorder(recorder)).
		Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(recorder.started) != 1 {
		t.Errorf("Expected one RunStarted call, got %d", len(recorder.started))
	}
	if len(recorder.outcomes) != 2 {
		t.Errorf("Expected one OutcomeRecorded call per record, got %d", len(recorder.outcomes))
	}
	if len(recorder.completed) != 1 {
		t.Fatalf("Expected one RunCompleted call, got %d", len(recorder.completed))
	}
	if recorder.completed[0].Status != run.Status {
		t.Errorf("Expected the finished status recorded, got %s", recorder.completed[0].Status)
	}
}

func TestEngine_Run_RecorderErrorsTolerated(t *testing.T) {
	recorder := &mockRecorder{err: errors.New("database is locked")}
	driver := testDriver(t, newMockDeleter(),
		testRecord("Instance", "ocid1.instance.oc1..i0"))

	run, err := NewEngine(driver, WithRunRecorder(recorder)).
		Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Recorder errors must not fail the run: %v", err)
	}
	if run.Status != RunStatusSucceeded {
		t.Errorf("Expected status succeeded, got %s", run.Status)
	}
}

func TestEngine_Run_MultiRegion(t *testing.T) {
	deleter := newMockDeleter()
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..ashburn"))

	frankfurt := testRecord("Instance", "ocid1.instance.oc1..frankfurt")
	frankfurt.Region = "eu-frankfurt-1"
	instance := testDescriptor("Instance")
	instance.Deleter = deleter
	driver.regions = []string{"us-ashburn-1", "eu-frankfurt-1"}
	driver.sessions["eu-frankfurt-1"] = &Session{
		Region:     "eu-frankfurt-1",
		Discoverer: &mockDiscoverer{records: []*ResourceRecord{frankfurt}},
		Registry:   testRegistry(t, instance),
	}

	run, err := NewEngine(driver).Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Summary.Discovered != 2 || run.Summary.Succeeded != 2 {
		t.Errorf("Expected both regions' records merged, got %+v", run.Summary)
	}
	if deleter.callCount("ocid1.instance.oc1..ashburn") != 1 ||
		deleter.callCount("ocid1.instance.oc1..frankfurt") != 1 {
		t.Error("Expected one delete per region's record")
	}
}

func TestEngine_Run_RequestedRegionSubset(t *testing.T) {
	driver := testDriver(t, newMockDeleter(),
		testRecord("Instance", "ocid1.instance.oc1..i0"))

	req := testRequest()
	req.Regions = []string{"us-ashburn-1"}

	run, err := NewEngine(driver).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(run.Regions) != 1 || run.Regions[0] != "us-ashburn-1" {
		t.Errorf("Expected the requested region honored, got %v", run.Regions)
	}
}

func TestEngine_Run_DeleteCompartment(t *testing.T) {
	driver := testDriver(t, newMockDeleter(),
		testRecord("Instance", "ocid1.instance.oc1..i0"))

	req := testRequest()
	req.DeleteCompartment = true

	run, err := NewEngine(driver).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Compartment == nil || !run.Compartment.Deleted {
		t.Errorf("Expected the compartment deleted after a clean run, got %+v", run.Compartment)
	}
	if driver.compartments.callCount() != 1 {
		t.Errorf("Expected one compartment delete call, got %d", driver.compartments.callCount())
	}
}

func TestEngine_Run_CompartmentGatedOnFailure(t *testing.T) {
	deleter := newMockDeleter()
	deleter.fail("ocid1.instance.oc1..denied",
		NewPermanentError("not authorized", nil).WithCode(ErrCodeUnauthorized))
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..denied"))

	req := testRequest()
	req.DeleteCompartment = true

	run, err := NewEngine(driver).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != RunStatusPartiallyFailed {
		t.Errorf("Expected status partially_failed, got %s", run.Status)
	}
	if run.Compartment == nil || run.Compartment.Attempted {
		t.Errorf("Expected the compartment step gated, got %+v", run.Compartment)
	}
	if driver.compartments.callCount() != 0 {
		t.Error("Expected no compartment delete call after failures")
	}
}

func TestEngine_Run_UnregisteredTypeSkipped(t *testing.T) {
	driver := testDriver(t, newMockDeleter(),
		testRecord("Instance", "ocid1.instance.oc1..i0"),
		testRecord("QuantumWidget", "ocid1.quantumwidget.oc1..q0"))

	run, err := NewEngine(driver).Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != RunStatusSucceeded {
		t.Errorf("Skips alone must not fail the run, got %s", run.Status)
	}
	if run.Summary.Discovered != 2 || run.Summary.Succeeded != 1 || run.Summary.Skipped != 1 {
		t.Errorf("Expected 1 succeeded and 1 skipped of 2, got %+v", run.Summary)
	}
	outcome := outcomeFor(t, run.Outcomes, "ocid1.quantumwidget.oc1..q0")
	if outcome.SkipReason != SkipReasonNoDescriptor {
		t.Errorf("Expected the no-descriptor skip reason, got %q", outcome.SkipReason)
	}
}

func TestEngine_Run_EventsEmitted(t *testing.T) {
	sink := &mockEventSink{}
	driver := testDriver(t, newMockDeleter(),
		testRecord("Instance", "ocid1.instance.oc1..i0"))

	run, err := NewEngine(driver, WithEventSink(sink)).
		Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.byType(EventRunStarted)) != 1 {
		t.Error("Expected a run.started event")
	}
	if len(sink.byType(EventDiscoveryCompleted)) != 1 {
		t.Error("Expected a discovery.completed event")
	}
	completed := sink.byType(EventRunCompleted)
	if len(completed) != 1 {
		t.Fatal("Expected a run.completed event")
	}
	if completed[0].RunID != run.ID {
		t.Errorf("Expected the run id on events, got %q", completed[0].RunID)
	}
}

func TestEngine_Run_ProtectionGateApplied(t *testing.T) {
	deleter := newMockDeleter()
	driver := testDriver(t, deleter,
		testRecord("Instance", "ocid1.instance.oc1..keep"),
		testRecord("Instance", "ocid1.instance.oc1..gone"))

	gate := ProtectionGateFunc(func(ctx context.Context, record *ResourceRecord) (string, error) {
		if record.Identifier == "ocid1.instance.oc1..keep" {
			return "protected by policy bundle", nil
		}
		return "", nil
	})

	run, err := NewEngine(driver, WithProtectionGate(gate)).
		Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Summary.Skipped != 1 || run.Summary.Succeeded != 1 {
		t.Errorf("Expected 1 protected and 1 deleted, got %+v", run.Summary)
	}
	if deleter.callCount("ocid1.instance.oc1..keep") != 0 {
		t.Error("A protected record must never reach its deleter")
	}
	outcome := outcomeFor(t, run.Outcomes, "ocid1.instance.oc1..keep")
	if outcome.SkipReason != "protected by policy bundle" {
		t.Errorf("Expected the gate's reason verbatim, got %q", outcome.SkipReason)
	}
}
