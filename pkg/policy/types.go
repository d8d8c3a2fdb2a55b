package policy

import (
	"time"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Rule is one protection rule with its Rego source. A rule whose deny set is
// non-empty for a record protects that record from deletion.
type Rule struct {
	// Name is the unique name of the rule.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego source of the rule.
	Rego string `json:"rego"`

	// Enabled indicates if the rule is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing rules.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional rule metadata, e.g. the source path.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the rule was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the rule was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is a single protection violation. Any violation protects the
// record; there is no severity ladder that lets a deletion through anyway.
type Violation struct {
	// Rule is the name of the rule that fired.
	Rule string `json:"rule"`

	// Resource is the identifier of the protected resource.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// Details contains additional structured context from the rule.
	Details map[string]interface{} `json:"details,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Decision is the result of evaluating every enabled rule against one record.
type Decision struct {
	// Protected indicates the record must not be deleted.
	Protected bool `json:"protected"`

	// Violations lists the rules that fired and why.
	Violations []Violation `json:"violations,omitempty"`

	// EvaluatedRules lists the names of the rules that were evaluated,
	// in name order.
	EvaluatedRules []string `json:"evaluated_rules"`

	// EvaluatedAt is when the evaluation happened.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// RuleInput is the input document handed to Rego evaluation.
type RuleInput struct {
	// Resource is the discovered record being evaluated.
	Resource *engine.ResourceRecord `json:"resource,omitempty"`

	// Context provides additional evaluation context.
	Context *EvalContext `json:"context"`
}

// EvalContext provides context information for rule evaluation.
type EvalContext struct {
	// Operation is the operation being guarded. Always "delete" here.
	Operation string `json:"operation,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Bundle is a versioned collection of related rules, distributed as one
// JSON document.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rules are the rules in this bundle.
	Rules []Rule `json:"rules"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}

// RuleFile is the declarative YAML form of a protection rule. The loader
// compiles it into Rego so declarative and hand-written rules evaluate
// through the same engine.
type RuleFile struct {
	// Name is the rule name. Defaults to the file name.
	Name string `yaml:"name"`

	// Description provides a human-readable description.
	Description string `yaml:"description"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`

	// Protect declares what to protect.
	Protect ProtectSpec `yaml:"protect"`
}

// ProtectSpec declares the conditions under which a record is protected.
// All conditions are independent; any match protects.
type ProtectSpec struct {
	// Tags protects records whose freeform tag has the given value.
	// A value of "*" matches any value of that tag.
	Tags map[string]string `yaml:"tags,omitempty"`

	// NamePrefixes protects records whose display name starts with any of
	// the given prefixes.
	NamePrefixes []string `yaml:"name_prefixes,omitempty"`

	// ResourceTypes protects entire resource types.
	ResourceTypes []string `yaml:"resource_types,omitempty"`

	// MinimumAge protects records younger than this duration, e.g. "24h".
	MinimumAge string `yaml:"minimum_age,omitempty"`
}
