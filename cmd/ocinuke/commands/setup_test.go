package commands

import (
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/config"
)

func TestRunOverridesApply(t *testing.T) {
	o := &runOverrides{}
	cmd := &cobra.Command{}
	addRunFlags(cmd, o)

	err := cmd.Flags().Parse([]string{
		"--compartment", "ocid1.compartment.oc1..bbbb",
		"--region", "eu-frankfurt-1",
		"--concurrency", "4",
		"--delete-timeout", "90s",
		"--exclude-type", "Bucket",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rc := &config.RunConfig{
		CompartmentID: "ocid1.compartment.oc1..aaaa",
		Regions:       []string{"us-phoenix-1"},
		Execution: config.ExecutionConfig{
			Concurrency: 10,
			MaxAttempts: 5,
		},
	}
	o.apply(cmd, rc)

	if rc.CompartmentID != "ocid1.compartment.oc1..bbbb" {
		t.Errorf("CompartmentID = %q, flag should win", rc.CompartmentID)
	}
	if len(rc.Regions) != 1 || rc.Regions[0] != "eu-frankfurt-1" {
		t.Errorf("Regions = %v, flag should win", rc.Regions)
	}
	if rc.Execution.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", rc.Execution.Concurrency)
	}
	if rc.Execution.DeleteTimeout != "1m30s" {
		t.Errorf("DeleteTimeout = %q, want 1m30s", rc.Execution.DeleteTimeout)
	}
	if len(rc.Types.Exclude) != 1 || rc.Types.Exclude[0] != "Bucket" {
		t.Errorf("Types.Exclude = %v, want [Bucket]", rc.Types.Exclude)
	}

	// Flags the user never touched keep the file values.
	if rc.Execution.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, untouched flag must not override", rc.Execution.MaxAttempts)
	}
}

func TestRunOverridesApply_NoFlags(t *testing.T) {
	o := &runOverrides{}
	cmd := &cobra.Command{}
	addRunFlags(cmd, o)

	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rc := &config.RunConfig{
		CompartmentID: "ocid1.compartment.oc1..aaaa",
		Execution:     config.ExecutionConfig{SkipWait: true},
	}
	o.apply(cmd, rc)

	if rc.CompartmentID != "ocid1.compartment.oc1..aaaa" {
		t.Errorf("CompartmentID changed without any flag set")
	}
	if !rc.Execution.SkipWait {
		t.Errorf("SkipWait cleared by zero-valued flag")
	}
}

func TestResolveStorePath(t *testing.T) {
	ctx := context.Background()

	got, err := resolveStorePath(ctx, "custom.db")
	if err != nil {
		t.Fatalf("resolveStorePath: %v", err)
	}
	if got != "custom.db" {
		t.Errorf("path = %q, flag should win", got)
	}

	old := configPath
	configPath = ""
	defer func() { configPath = old }()

	got, err = resolveStorePath(ctx, "")
	if err != nil {
		t.Fatalf("resolveStorePath: %v", err)
	}
	if got != defaultStorePath {
		t.Errorf("path = %q, want default %q", got, defaultStorePath)
	}
}
