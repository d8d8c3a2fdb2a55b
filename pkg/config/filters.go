package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// DefaultFilterTimeout bounds one filter script evaluation. Filters run
// once per discovered record.
const DefaultFilterTimeout = 5 * time.Second

// TypeFilter keeps records whose resource type passes the include and
// exclude lists. Matching is case-insensitive.
type TypeFilter struct {
	include map[string]bool
	exclude map[string]bool
}

var _ engine.RecordFilter = (*TypeFilter)(nil)

// NewTypeFilter builds a filter from the configured type rules.
func NewTypeFilter(rules TypeRules) *TypeFilter {
	f := &TypeFilter{
		include: make(map[string]bool, len(rules.Include)),
		exclude: make(map[string]bool, len(rules.Exclude)),
	}
	for _, t := range rules.Include {
		f.include[strings.ToLower(t)] = true
	}
	for _, t := range rules.Exclude {
		f.exclude[strings.ToLower(t)] = true
	}
	return f
}

// Keep reports whether the record's type is in scope.
func (f *TypeFilter) Keep(ctx context.Context, record *engine.ResourceRecord) (bool, error) {
	name := strings.ToLower(record.ResourceType)
	if len(f.include) > 0 && !f.include[name] {
		return false, nil
	}
	if f.exclude[name] {
		return false, nil
	}
	return true, nil
}

// ScriptFilter evaluates a Starlark script per record. The script sees a
// `resource` dict and must assign a boolean `keep`.
type ScriptFilter struct {
	name      string
	script    string
	evaluator *StarlarkEvaluator
}

var _ engine.RecordFilter = (*ScriptFilter)(nil)

// NewScriptFilter builds a filter from one declaration, reading the script
// from disk when a path is configured.
func NewScriptFilter(cfg FilterConfig) (*ScriptFilter, error) {
	script := cfg.Script
	if cfg.Path != "" {
		content, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read filter script %s: %w", cfg.Path, err)
		}
		script = string(content)
	}
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("filter %s has no script", cfg.Name)
	}

	timeout := DefaultFilterTimeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("filter %s has invalid timeout %q: %w", cfg.Name, cfg.Timeout, err)
		}
		timeout = d
	}

	return &ScriptFilter{
		name:      cfg.Name,
		script:    script,
		evaluator: NewStarlarkEvaluator(timeout),
	}, nil
}

// Name returns the configured filter name.
func (f *ScriptFilter) Name() string {
	return f.name
}

// Keep evaluates the script for one record. A script that errors, times
// out, or does not assign a boolean `keep` fails the check; the engine
// skips the record rather than deleting on an undecided filter.
func (f *ScriptFilter) Keep(ctx context.Context, record *engine.ResourceRecord) (bool, error) {
	result, err := f.evaluator.Evaluate(ctx, f.script, map[string]interface{}{
		"resource": recordInput(record),
	})
	if err != nil {
		return false, fmt.Errorf("filter %s: %w", f.name, err)
	}

	keep, ok := result.Output["keep"]
	if !ok {
		return false, fmt.Errorf("filter %s did not assign keep", f.name)
	}

	decision, ok := keep.(bool)
	if !ok {
		return false, fmt.Errorf("filter %s assigned non-boolean keep (%T)", f.name, keep)
	}

	return decision, nil
}

// recordInput flattens a record into the dict filter scripts receive.
func recordInput(record *engine.ResourceRecord) map[string]interface{} {
	input := map[string]interface{}{
		"resource_type":   record.ResourceType,
		"identifier":      record.Identifier,
		"compartment_id":  record.CompartmentID,
		"region":          record.Region,
		"lifecycle_state": record.LifecycleState,
		"display_name":    record.DisplayName,
	}

	if !record.TimeCreated.IsZero() {
		input["time_created"] = record.TimeCreated.Format(time.RFC3339)
	}
	if len(record.FreeformTags) > 0 {
		input["freeform_tags"] = record.FreeformTags
	}
	if len(record.DefinedTags) > 0 {
		namespaces := make(map[string]interface{}, len(record.DefinedTags))
		for ns, kv := range record.DefinedTags {
			inner := make(map[string]interface{}, len(kv))
			for k, v := range kv {
				inner[k] = v
			}
			namespaces[ns] = inner
		}
		input["defined_tags"] = namespaces
	}

	return input
}

// FilterChain applies filters in order; the first filter that drops a
// record wins, and errors fail the whole check.
type FilterChain struct {
	filters []engine.RecordFilter
}

var _ engine.RecordFilter = (*FilterChain)(nil)

// NewFilterChain composes filters into one. Nil entries are dropped; an
// empty chain keeps everything.
func NewFilterChain(filters ...engine.RecordFilter) *FilterChain {
	chain := &FilterChain{}
	for _, f := range filters {
		if f != nil {
			chain.filters = append(chain.filters, f)
		}
	}
	return chain
}

// Keep consults each filter in order.
func (c *FilterChain) Keep(ctx context.Context, record *engine.ResourceRecord) (bool, error) {
	for _, f := range c.filters {
		keep, err := f.Keep(ctx, record)
		if err != nil {
			return false, err
		}
		if !keep {
			return false, nil
		}
	}
	return true, nil
}

// BuildFilter assembles the record filter for this run: the type rules
// first, then each Starlark filter in declaration order. Returns nil when
// nothing is configured so the engine skips filtering entirely.
func (rc *RunConfig) BuildFilter() (engine.RecordFilter, error) {
	var filters []engine.RecordFilter

	if len(rc.Types.Include) > 0 || len(rc.Types.Exclude) > 0 {
		filters = append(filters, NewTypeFilter(rc.Types))
	}

	for _, fc := range rc.Filters {
		sf, err := NewScriptFilter(fc)
		if err != nil {
			return nil, err
		}
		filters = append(filters, sf)
	}

	switch len(filters) {
	case 0:
		return nil, nil
	case 1:
		return filters[0], nil
	default:
		return NewFilterChain(filters...), nil
	}
}
