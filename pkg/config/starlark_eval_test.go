package config

import (
	"context"
	"testing"
	"time"
)

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		script    string
		input     map[string]interface{}
		checkFunc func(*testing.T, *StarlarkResult)
		wantErr   bool
	}{
		{
			name: "simple arithmetic",
			script: `
result = 2 + 2
`,
			input: nil,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != int64(4) {
					t.Errorf("expected result=4, got %v", sr.Output["result"])
				}
			},
			wantErr: false,
		},
		{
			name: "use input variables",
			script: `
keep = resource["lifecycle_state"] != "TERMINATED"
`,
			input: map[string]interface{}{
				"resource": map[string]interface{}{
					"lifecycle_state": "RUNNING",
				},
			},
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["keep"] != true {
					t.Errorf("expected keep=true, got %v", sr.Output["keep"])
				}
			},
			wantErr: false,
		},
		{
			name: "build list with function",
			script: `
def guarded_prefixes(n):
    prefixes = []
    for i in range(n):
        prefixes.append("keep-" + str(i))
    return prefixes

output = guarded_prefixes(5)
`,
			input: nil,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				output, ok := sr.Output["output"].([]interface{})
				if !ok {
					t.Fatalf("expected output to be a list, got %T", sr.Output["output"])
				}
				if len(output) != 5 {
					t.Errorf("expected list of length 5, got %d", len(output))
				}
				if output[0] != "keep-0" || output[4] != "keep-4" {
					t.Errorf("unexpected list values: %v", output)
				}
			},
			wantErr: false,
		},
		{
			name: "build dict with function",
			script: `
def region_limits(regions):
    limits = {}
    for r in regions:
        limits[r] = {"concurrency": 4}
    return limits

result = region_limits(["us-ashburn-1", "eu-frankfurt-1"])
`,
			input: nil,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				result, ok := sr.Output["result"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected result to be a dict, got %T", sr.Output["result"])
				}
				if len(result) != 2 {
					t.Errorf("expected dict with 2 keys, got %d", len(result))
				}

				ashburn, ok := result["us-ashburn-1"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected us-ashburn-1 to be a dict")
				}
				if ashburn["concurrency"] != int64(4) {
					t.Errorf("expected concurrency=4, got %v", ashburn["concurrency"])
				}
			},
			wantErr: false,
		},
		{
			name: "list comprehension",
			script: `
states = ["RUNNING", "STOPPED", "TERMINATED"]
result = [s for s in states if s != "TERMINATED"]
`,
			input: nil,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				result, ok := sr.Output["result"].([]interface{})
				if !ok {
					t.Fatalf("expected result to be a list")
				}
				if len(result) != 2 {
					t.Errorf("expected list of length 2, got %d", len(result))
				}
			},
			wantErr: false,
		},
		{
			name: "dict comprehension",
			script: `
types = ["Instance", "Vcn", "Bucket"]
result = {t: True for t in types}
`,
			input: nil,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				result, ok := sr.Output["result"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected result to be a dict")
				}
				if len(result) != 3 {
					t.Errorf("expected dict with 3 keys, got %d", len(result))
				}
			},
			wantErr: false,
		},
		{
			name: "syntax error",
			script: `
invalid syntax here
`,
			input:   nil,
			wantErr: true,
		},
		{
			name: "runtime error",
			script: `
result = undefined_variable
`,
			input:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, tt.script, tt.input)

			if tt.wantErr {
				if err == nil && result.Error == "" {
					t.Errorf("expected error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.Error != "" {
					t.Errorf("unexpected result error: %s", result.Error)
				}
				if tt.checkFunc != nil {
					tt.checkFunc(t, result)
				}
			}

			if result != nil && result.ExecutionTime == 0 {
				t.Error("expected non-zero execution time")
			}
		})
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(100 * time.Millisecond)
	ctx := context.Background()

	script := `
def slow_function():
    result = 0
    for i in range(100000000):
        result = result + i
    return result

output = slow_function()
`

	result, err := evaluator.Evaluate(ctx, script, nil)
	if err == nil {
		t.Error("expected timeout error")
	}

	if result != nil && result.Error == "" {
		t.Error("expected timeout error in result")
	}
}

func TestStarlarkEvaluator_CancelledContext(t *testing.T) {
	evaluator := NewStarlarkEvaluator(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	script := `
def spin():
    total = 0
    for i in range(100000000):
        total = total + i
    return total

output = spin()
`

	if _, err := evaluator.Evaluate(ctx, script, nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestStarlarkEvaluator_TypeConversion(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     map[string]interface{}
		script    string
		checkFunc func(*testing.T, *StarlarkResult)
	}{
		{
			name: "bool conversion",
			input: map[string]interface{}{
				"enabled": true,
			},
			script: `
result = enabled and True
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != true {
					t.Errorf("expected result=true, got %v", sr.Output["result"])
				}
			},
		},
		{
			name: "int conversion",
			input: map[string]interface{}{
				"count": 42,
			},
			script: `
result = count + 8
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != int64(50) {
					t.Errorf("expected result=50, got %v", sr.Output["result"])
				}
			},
		},
		{
			name: "float conversion",
			input: map[string]interface{}{
				"rate": 0.25,
			},
			script: `
result = rate * 2
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				result, ok := sr.Output["result"].(float64)
				if !ok {
					t.Fatalf("expected result to be float64")
				}
				if result != 0.5 {
					t.Errorf("expected result=0.5, got %v", result)
				}
			},
		},
		{
			name: "string conversion",
			input: map[string]interface{}{
				"name": "build-agent",
			},
			script: `
result = name + "-7"
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != "build-agent-7" {
					t.Errorf("expected result='build-agent-7', got %v", sr.Output["result"])
				}
			},
		},
		{
			name: "string list conversion",
			input: map[string]interface{}{
				"regions": []string{"us-ashburn-1", "eu-frankfurt-1"},
			},
			script: `
result = len(regions)
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != int64(2) {
					t.Errorf("expected result=2, got %v", sr.Output["result"])
				}
			},
		},
		{
			name: "string map conversion",
			input: map[string]interface{}{
				"tags": map[string]string{
					"team": "platform",
					"env":  "staging",
				},
			},
			script: `
result = tags["team"]
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != "platform" {
					t.Errorf("expected result='platform', got %v", sr.Output["result"])
				}
			},
		},
		{
			name: "time conversion",
			input: map[string]interface{}{
				"created": time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
			},
			script: `
result = created
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != "2024-03-15T10:00:00Z" {
					t.Errorf("expected RFC 3339 string, got %v", sr.Output["result"])
				}
			},
		},
		{
			name: "dict conversion",
			input: map[string]interface{}{
				"resource": map[string]interface{}{
					"resource_type": "Instance",
					"region":        "us-ashburn-1",
				},
			},
			script: `
result = resource["resource_type"] + "/" + resource["region"]
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != "Instance/us-ashburn-1" {
					t.Errorf("expected result='Instance/us-ashburn-1', got %v", sr.Output["result"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, tt.script, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Error != "" {
				t.Fatalf("unexpected result error: %s", result.Error)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, result)
			}
		})
	}
}

func TestStarlarkEvaluator_PrintSuppressed(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	script := `
print("this should not appear")
result = "done"
`

	result, err := evaluator.Evaluate(ctx, script, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Output["result"] != "done" {
		t.Errorf("expected result='done', got %v", result.Output["result"])
	}
}

func TestStarlarkEvaluator_InternalGlobalsSkipped(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	script := `
_scratch = ["a", "b"]
keep = len(_scratch) == 2
`

	result, err := evaluator.Evaluate(ctx, script, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Output["keep"] != true {
		t.Errorf("expected keep=true, got %v", result.Output["keep"])
	}
	if _, ok := result.Output["_scratch"]; ok {
		t.Error("expected underscore-prefixed global to be omitted")
	}
}
