package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#Custom: {
	field1: string
	field2: int
}
`

	err := sr.RegisterSchema("custom", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	builtins := []string{
		"run",
		"execution",
		"types",
		"protection",
		"filter",
		"telemetry",
		"store",
	}

	for _, name := range builtins {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}

			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistry_ValidateRun(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		run     RunConfig
		wantErr bool
	}{
		{
			name: "valid run",
			run: RunConfig{
				CompartmentID: "ocid1.compartment.oc1..aaaaexample",
				Regions:       []string{"us-ashburn-1", "uk-gov-london-1"},
				Execution: ExecutionConfig{
					Concurrency: 8,
					MaxAttempts: 3,
				},
			},
			wantErr: false,
		},
		{
			name: "tenancy root accepted",
			run: RunConfig{
				CompartmentID: "ocid1.tenancy.oc1..aaaaroot",
			},
			wantErr: false,
		},
		{
			name: "invalid run - not an ocid",
			run: RunConfig{
				CompartmentID: "scratch-compartment",
			},
			wantErr: true,
		},
		{
			name: "invalid run - malformed region",
			run: RunConfig{
				CompartmentID: "ocid1.compartment.oc1..aaaaexample",
				Regions:       []string{"Ashburn"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateRun(ctx, tt.run)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidateExecution(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name      string
		execution ExecutionConfig
		wantErr   bool
	}{
		{
			name: "valid execution",
			execution: ExecutionConfig{
				Concurrency:   16,
				MaxAttempts:   5,
				DeleteTimeout: "2m",
				WaitTimeout:   "1m30s",
			},
			wantErr: false,
		},
		{
			name:      "defaults pass",
			execution: ExecutionConfig{},
			wantErr:   false,
		},
		{
			name: "invalid execution - concurrency too high",
			execution: ExecutionConfig{
				Concurrency: 200,
			},
			wantErr: true,
		},
		{
			name: "invalid execution - too many attempts",
			execution: ExecutionConfig{
				MaxAttempts: 50,
			},
			wantErr: true,
		},
		{
			name: "invalid execution - not a duration",
			execution: ExecutionConfig{
				DeleteTimeout: "fortnight",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateExecution(ctx, tt.execution)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidateFilter(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		filter  FilterConfig
		wantErr bool
	}{
		{
			name: "valid filter with script",
			filter: FilterConfig{
				Name:   "keep-tagged",
				Script: "keep = True",
			},
			wantErr: false,
		},
		{
			name: "valid filter with path",
			filter: FilterConfig{
				Name: "keep_prod",
				Path: "./filters/prod.star",
			},
			wantErr: false,
		},
		{
			name: "invalid filter - empty name",
			filter: FilterConfig{
				Script: "keep = True",
			},
			wantErr: true,
		},
		{
			name: "invalid filter - name with spaces",
			filter: FilterConfig{
				Name:   "keep prod",
				Script: "keep = True",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateFilter(ctx, tt.filter)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidateStore(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		store   StoreSettings
		wantErr bool
	}{
		{
			name: "valid store",
			store: StoreSettings{
				Path:     "./history.db",
				KeepRuns: 50,
			},
			wantErr: false,
		},
		{
			name:    "defaults pass",
			store:   StoreSettings{},
			wantErr: false,
		},
		{
			name: "invalid store - negative keep_runs",
			store: StoreSettings{
				KeepRuns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateStore(ctx, tt.store)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ListSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	schemas := sr.ListSchemas()

	if len(schemas) < 7 {
		t.Errorf("expected at least 7 schemas, got %d", len(schemas))
	}

	expectedSchemas := map[string]bool{
		"run":        false,
		"execution":  false,
		"types":      false,
		"protection": false,
		"filter":     false,
		"telemetry":  false,
		"store":      false,
	}

	for _, schema := range schemas {
		if _, exists := expectedSchemas[schema]; exists {
			expectedSchemas[schema] = true
		}
	}

	for name, found := range expectedSchemas {
		if !found {
			t.Errorf("expected built-in schema %s not found", name)
		}
	}
}

func TestSchemaRegistry_InvalidSchema(t *testing.T) {
	sr := NewSchemaRegistry()

	invalidSchema := `
this is not valid CUE syntax
`

	err := sr.RegisterSchema("invalid", invalidSchema)
	if err == nil {
		t.Error("expected error when registering invalid schema")
	}
}

func TestSchemaRegistry_UnknownSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	err := sr.ValidateAgainstSchema(ctx, "nonexistent", RunConfig{})
	if err == nil {
		t.Error("expected error for unknown schema name")
	}
}
