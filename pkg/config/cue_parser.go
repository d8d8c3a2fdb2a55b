package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
	"github.com/ocinuke/ocinuke/pkg/engine"
)

// CUEParser parses and validates run configuration files.
type CUEParser struct {
	ctx               *cue.Context
	schemaRegistry    *SchemaRegistry
	starlarkEvaluator *StarlarkEvaluator
	validator         *validator.Validate
}

// NewCUEParser creates a new parser with the built-in schemas registered.
func NewCUEParser() *CUEParser {
	ctx := cuecontext.New()

	v := validator.New()
	_ = v.RegisterValidation("duration", validateDuration)

	return &CUEParser{
		ctx:               ctx,
		schemaRegistry:    newSchemaRegistry(ctx),
		starlarkEvaluator: NewStarlarkEvaluator(30 * time.Second),
		validator:         v,
	}
}

// validateDuration accepts positive Go duration strings like "90s" or "2m".
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Evaluate parses run configuration sources and returns the engine request
// they describe. Any parse or validation error aborts the evaluation.
func (cp *CUEParser) Evaluate(ctx context.Context, sources []string) (*engine.RunRequest, error) {
	parsed, err := cp.Parse(ctx, sources)
	if err != nil {
		return nil, err
	}

	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", FormatErrors(parsed.Errors))
	}

	req := parsed.Run.ToRunRequest()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate runs struct validation over an assembled run configuration.
// The nuke and validate commands call this after flag overrides are merged.
func (cp *CUEParser) Validate(ctx context.Context, run *RunConfig) error {
	if err := cp.validator.Struct(run); err != nil {
		return fmt.Errorf("run configuration invalid: %w", err)
	}
	return nil
}

// EvaluateStarlark executes a Starlark script with the given input. The
// validate command uses this to dry-check configured filter scripts.
func (cp *CUEParser) EvaluateStarlark(ctx context.Context, script string, input map[string]interface{}) (map[string]interface{}, error) {
	result, err := cp.starlarkEvaluator.Evaluate(ctx, script, input)
	if err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, fmt.Errorf("starlark error: %s", result.Error)
	}

	return result.Output, nil
}

// Parse parses run configuration from the given sources. Later sources are
// unified over earlier ones, so overlay files can extend a base config.
// Parse errors are collected on the result rather than returned.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		if info.IsDir() {
			val, files, errs := cp.loadDirectory(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs := cp.loadFile(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, source)
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(cueValue, sourceFiles), nil
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	val := cp.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(val, []string{"inline"}), nil
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// extractConfig checks the document against the run schema, then decodes
// it section by section and runs struct validation over the result.
func (cp *CUEParser) extractConfig(val cue.Value, sourceFiles []string) *ParsedConfig {
	parsed := &ParsedConfig{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	// The run schema is closed, so unknown fields and constraint
	// violations surface here with source positions.
	if schema, ok := cp.schemaRegistry.GetSchema("run"); ok {
		if err := schema.Unify(val).Validate(); err != nil {
			parsed.Errors = append(parsed.Errors, cp.convertCUEErrors(err)...)
			return parsed
		}
	}

	if v := val.LookupPath(cue.ParsePath("compartment_id")); v.Exists() {
		s, err := v.String()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "compartment_id",
				Message:  fmt.Sprintf("failed to decode compartment_id: %v", err),
				Severity: "error",
			})
		} else {
			parsed.Run.CompartmentID = s
		}
	}

	if v := val.LookupPath(cue.ParsePath("regions")); v.Exists() {
		if err := v.Decode(&parsed.Run.Regions); err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "regions",
				Message:  fmt.Sprintf("failed to decode regions: %v", err),
				Severity: "error",
			})
		}
	}

	cp.decodeSection(val, "execution", &parsed.Run.Execution, parsed)
	cp.decodeSection(val, "types", &parsed.Run.Types, parsed)
	cp.decodeSection(val, "protection", &parsed.Run.Protection, parsed)
	cp.decodeSection(val, "filters", &parsed.Run.Filters, parsed)
	cp.decodeSection(val, "telemetry", &parsed.Run.Telemetry, parsed)
	cp.decodeSection(val, "store", &parsed.Run.Store, parsed)

	if len(parsed.Errors) == 0 {
		cp.validateRun(&parsed.Run, parsed)
	}

	return parsed
}

// decodeSection decodes one named section into out, collecting any error.
// A missing section leaves out at its zero value.
func (cp *CUEParser) decodeSection(val cue.Value, path string, out interface{}, parsed *ParsedConfig) {
	v := val.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return
	}

	if err := v.Decode(out); err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			Path:     path,
			Message:  fmt.Sprintf("failed to decode %s: %v", path, err),
			Severity: "error",
		})
	}
}

// validateRun runs struct validation and converts field errors.
func (cp *CUEParser) validateRun(run *RunConfig, parsed *ParsedConfig) {
	err := cp.validator.Struct(run)
	if err == nil {
		return
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     fe.Namespace(),
				Message:  fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()),
				Severity: "error",
			})
		}
		return
	}

	parsed.Errors = append(parsed.Errors, ValidationError{
		Message:  err.Error(),
		Severity: "error",
	})
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// ValidateWithSchema validates a value against a registered schema.
func (cp *CUEParser) ValidateWithSchema(ctx context.Context, data interface{}, schemaName string) error {
	return cp.schemaRegistry.ValidateAgainstSchema(ctx, schemaName, data)
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// ExtractValue extracts a specific path from a CUE configuration.
func (cp *CUEParser) ExtractValue(val cue.Value, path string) (interface{}, error) {
	v := val.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return nil, fmt.Errorf("path %s not found", path)
	}

	var result interface{}
	if err := v.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode value at %s: %w", path, err)
	}

	return result, nil
}

// MergeValues unifies two CUE values.
func (cp *CUEParser) MergeValues(val1, val2 cue.Value) (cue.Value, error) {
	merged := val1.Unify(val2)
	if err := merged.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to merge values: %w", err)
	}
	return merged, nil
}

// ExportJSON exports a CUE value to indented JSON.
func (cp *CUEParser) ExportJSON(val cue.Value) ([]byte, error) {
	var data interface{}
	if err := val.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}

	return json.MarshalIndent(data, "", "  ")
}

// LoadFromDirectory lists all CUE files under a directory.
func (cp *CUEParser) LoadFromDirectory(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}
