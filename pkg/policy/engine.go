package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Engine compiles protection rules and evaluates discovered records against
// them. It implements engine.ProtectionGate, so handing it to the run engine
// is all the wiring protection needs.
type Engine struct {
	mu           sync.RWMutex
	rules        map[string]*compiledRule
	store        storage.Store
	logger       zerolog.Logger
	builtinRules []Rule
}

var _ engine.ProtectionGate = (*Engine)(nil)

// compiledRule is a rule with its prepared deny query.
type compiledRule struct {
	rule     *Rule
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a protection engine with the built-in rules loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		rules:        make(map[string]*compiledRule),
		store:        inmem.New(),
		logger:       logger.With().Str("component", "policy-engine").Logger(),
		builtinRules: GetBuiltinRules(),
	}

	if err := e.loadBuiltinRules(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in rules: %w", err)
	}

	return e, nil
}

// EvaluateRecord evaluates every enabled rule against one record. Any
// violation marks the record protected. A rule evaluation error aborts the
// decision; the caller must treat the record as protected.
func (e *Engine) EvaluateRecord(ctx context.Context, record *engine.ResourceRecord) (*Decision, error) {
	startTime := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := &RuleInput{
		Resource: record,
		Context: &EvalContext{
			Operation: "delete",
			Timestamp: time.Now(),
		},
	}

	names := make([]string, 0, len(e.rules))
	for name := range e.rules {
		names = append(names, name)
	}
	sort.Strings(names)

	decision := &Decision{
		EvaluatedAt: startTime,
	}

	for _, name := range names {
		cr := e.rules[name]
		if !cr.rule.Enabled {
			continue
		}
		decision.EvaluatedRules = append(decision.EvaluatedRules, name)

		violations, err := e.evaluateRule(ctx, cr, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("rule", name).
				Str("resource", record.Identifier).
				Msg("Rule evaluation failed")
			return nil, fmt.Errorf("rule %s: %w", name, err)
		}

		decision.Violations = append(decision.Violations, violations...)
	}

	decision.Protected = len(decision.Violations) > 0
	decision.Duration = time.Since(startTime)

	e.logger.Debug().
		Str("resource_id", record.Identifier).
		Str("resource_type", record.ResourceType).
		Bool("protected", decision.Protected).
		Int("violations", len(decision.Violations)).
		Dur("duration", decision.Duration).
		Msg("Record evaluated")

	return decision, nil
}

// Check implements engine.ProtectionGate. A non-empty reason protects the
// record; an error fails closed in the planner.
func (e *Engine) Check(ctx context.Context, record *engine.ResourceRecord) (string, error) {
	decision, err := e.EvaluateRecord(ctx, record)
	if err != nil {
		return "", err
	}
	if !decision.Protected {
		return "", nil
	}

	v := decision.Violations[0]
	return fmt.Sprintf("protected by rule %s: %s", v.Rule, v.Message), nil
}

// LoadRules loads and compiles rule files from the given paths.
func (e *Engine) LoadRules(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	rules, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	for i := range rules {
		if err := e.compileAndStoreRule(ctx, &rules[i]); err != nil {
			e.logger.Error().Err(err).
				Str("rule", rules[i].Name).
				Msg("Failed to compile rule")
			return fmt.Errorf("failed to compile rule %s: %w", rules[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(rules)).
		Msg("Rules loaded")

	return nil
}

// AddRule compiles and registers a single rule.
func (e *Engine) AddRule(ctx context.Context, rule *Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.compileAndStoreRule(ctx, rule)
}

// evaluateRule runs one prepared deny query against the input.
func (e *Engine) evaluateRule(ctx context.Context, cr *compiledRule, input *RuleInput) ([]Violation, error) {
	results, err := cr.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("rule evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, e.makeViolation(cr.rule, d, input))
			}
		}
	}

	return violations, nil
}

// makeViolation builds a Violation from one deny result.
func (e *Engine) makeViolation(rule *Rule, result interface{}, input *RuleInput) Violation {
	violation := Violation{
		Rule:       rule.Name,
		DetectedAt: time.Now(),
	}

	if input.Resource != nil {
		violation.Resource = input.Resource.Identifier
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if res, ok := v["resource"].(string); ok {
			violation.Resource = res
		}
		if details, ok := v["details"].(map[string]interface{}); ok {
			violation.Details = details
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStoreRule parses a rule, prepares its deny query, and stores it.
func (e *Engine) compileAndStoreRule(ctx context.Context, rule *Rule) error {
	module, err := ast.ParseModule(rule.Name, rule.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse rule: %w", err)
	}

	// The deny set lives under the rule's own package.
	query := fmt.Sprintf("%s.deny", module.Package.Path.String())

	r := rego.New(
		rego.Module(rule.Name, rule.Rego),
		rego.Store(e.store),
		rego.Query(query),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.rules[rule.Name] = &compiledRule{
		rule:     rule,
		module:   module,
		query:    prepared,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("rule", rule.Name).
		Str("query", query).
		Msg("Rule compiled")

	return nil
}

// loadBuiltinRules compiles the built-in rules.
func (e *Engine) loadBuiltinRules(ctx context.Context) error {
	for i := range e.builtinRules {
		if err := e.compileAndStoreRule(ctx, &e.builtinRules[i]); err != nil {
			return fmt.Errorf("failed to compile built-in rule %s: %w", e.builtinRules[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(e.builtinRules)).
		Msg("Built-in rules loaded")

	return nil
}

// GetRule returns a rule by name.
func (e *Engine) GetRule(name string) (*Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cr, exists := e.rules[name]
	if !exists {
		return nil, fmt.Errorf("rule not found: %s", name)
	}

	return cr.rule, nil
}

// ListRules returns all loaded rules.
func (e *Engine) ListRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]Rule, 0, len(e.rules))
	for _, cr := range e.rules {
		rules = append(rules, *cr.rule)
	}

	return rules
}

// ReloadRules drops every loaded rule and restores the built-ins. Custom
// rules must be loaded again afterwards.
func (e *Engine) ReloadRules(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = make(map[string]*compiledRule)

	return e.loadBuiltinRules(ctx)
}

// EnableRule enables a rule by name.
func (e *Engine) EnableRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cr, exists := e.rules[name]
	if !exists {
		return fmt.Errorf("rule not found: %s", name)
	}

	cr.rule.Enabled = true
	e.logger.Info().Str("rule", name).Msg("Rule enabled")

	return nil
}

// DisableRule disables a rule by name.
func (e *Engine) DisableRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cr, exists := e.rules[name]
	if !exists {
		return fmt.Errorf("rule not found: %s", name)
	}

	cr.rule.Enabled = false
	e.logger.Info().Str("rule", name).Msg("Rule disabled")

	return nil
}
