package engine_test

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Example_teardown runs the full pipeline against an in-memory driver: one
// region, three discovered resources, and descriptors that order instances
// before the VCN they live in.
func Example_teardown() {
	noop := engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
		return nil
	})

	registry := engine.NewTypeRegistry()
	if err := registry.Register(&engine.TypeDescriptor{TypeName: "Instance", Deleter: noop}); err != nil {
		log.Fatal(err)
	}
	if err := registry.Register(&engine.TypeDescriptor{TypeName: "Vcn", Deleter: noop, Predecessors: []string{"Instance"}}); err != nil {
		log.Fatal(err)
	}

	driver := &staticDriver{
		region:   "us-ashburn-1",
		registry: registry,
		records: []*engine.ResourceRecord{
			{ResourceType: "Instance", Identifier: "ocid1.instance.oc1..aaa", Region: "us-ashburn-1", LifecycleState: "RUNNING"},
			{ResourceType: "Instance", Identifier: "ocid1.instance.oc1..bbb", Region: "us-ashburn-1", LifecycleState: "RUNNING"},
			{ResourceType: "Vcn", Identifier: "ocid1.vcn.oc1..ccc", Region: "us-ashburn-1", LifecycleState: "AVAILABLE"},
		},
	}

	eng := engine.NewEngine(driver)
	run, err := eng.Run(context.Background(), engine.RunRequest{
		CompartmentID: "ocid1.compartment.oc1..example",
		Concurrency:   2,
	})
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	fmt.Printf("status: %s\n", run.Status)
	fmt.Printf("deleted %d of %d resources\n", run.Summary.Succeeded, run.Summary.Discovered)

	types := make([]string, 0, len(run.Summary.ByType))
	for name := range run.Summary.ByType {
		types = append(types, name)
	}
	sort.Strings(types)
	for _, name := range types {
		fmt.Printf("%s: %d\n", name, run.Summary.ByType[name].Succeeded)
	}

	// Output:
	// status: succeeded
	// deleted 3 of 3 resources
	// Instance: 2
	// Vcn: 1
}

// Example_protectionGate shows how a gate keeps individual resources out of
// a run without stopping it.
func Example_protectionGate() {
	gate := engine.ProtectionGateFunc(func(ctx context.Context, record *engine.ResourceRecord) (string, error) {
		if record.FreeformTags["protected"] == "true" {
			return "tagged protected=true", nil
		}
		return "", nil
	})

	record := &engine.ResourceRecord{
		ResourceType: "Bucket",
		Identifier:   "ocid1.bucket.oc1..aaa",
		FreeformTags: map[string]string{"protected": "true"},
	}

	reason, err := gate.Check(context.Background(), record)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("skip reason: %s\n", reason)

	// Output:
	// skip reason: tagged protected=true
}

// Example_errorClassification demonstrates how delete errors drive retry
// decisions in the executor.
func Example_errorClassification() {
	conflict := engine.NewConflictError("vcn has dependent resources", nil).
		WithResource("ocid1.vcn.oc1..aaa").
		WithOperation("delete")
	throttled := engine.NewThrottledError("too many requests", nil)
	gone := engine.NewAlreadyGoneError("instance not found", nil)
	fatal := engine.NewPermanentError("not authorized to delete", nil).
		WithCode(engine.ErrCodeUnauthorized)

	fmt.Printf("conflict retryable: %v\n", engine.IsRetryable(conflict))
	fmt.Printf("throttled retryable: %v\n", engine.IsRetryable(throttled))
	fmt.Printf("already gone counts as success: %v\n", engine.IsAlreadyGone(gone))
	fmt.Printf("permanent retryable: %v\n", engine.IsRetryable(fatal))

	// Output:
	// conflict retryable: true
	// throttled retryable: true
	// already gone counts as success: true
	// permanent retryable: false
}

// staticDriver serves one region from a fixed record set. Real deployments
// use the OCI driver; tests and examples stay in memory.
type staticDriver struct {
	region   string
	registry *engine.TypeRegistry
	records  []*engine.ResourceRecord
}

func (d *staticDriver) Regions(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	return []string{d.region}, nil
}

func (d *staticDriver) Session(ctx context.Context, region string) (*engine.Session, error) {
	return &engine.Session{
		Region:     region,
		Discoverer: d,
		Registry:   d.registry,
	}, nil
}

func (d *staticDriver) Compartments() engine.CompartmentClient {
	return nil
}

func (d *staticDriver) Discover(ctx context.Context, compartmentID string, excludedStates []string) ([]*engine.ResourceRecord, error) {
	return d.records, nil
}
