package policy

import (
	"time"
)

// GetBuiltinRules returns all built-in protection rules.
func GetBuiltinRules() []Rule {
	return []Rule{
		protectedTagRule(),
		namePrefixRule(),
		minimumAgeRule(),
	}
}

// protectedTagRule protects anything carrying an opt-out tag.
func protectedTagRule() Rule {
	return Rule{
		Name:        "protected-tag",
		Description: "Protects resources tagged ocinuke-protect or protected",
		Enabled:     true,
		Tags:        []string{"tags", "opt-out"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package ocinuke.protection.tags

import rego.v1

protect_values := {"true", "1", "yes"}

deny contains violation if {
	input.resource
	resource := input.resource
	value := resource.freeform_tags["ocinuke-protect"]
	lower(value) in protect_values
	violation := {
		"message": sprintf("resource %s carries the ocinuke-protect tag", [resource.identifier]),
		"resource": resource.identifier,
	}
}

deny contains violation if {
	input.resource
	resource := input.resource
	value := resource.freeform_tags["protected"]
	lower(value) in protect_values
	violation := {
		"message": sprintf("resource %s carries the protected tag", [resource.identifier]),
		"resource": resource.identifier,
	}
}`,
	}
}

// namePrefixRule protects names that signal intent to keep.
func namePrefixRule() Rule {
	return Rule{
		Name:        "name-prefix",
		Description: "Protects resources whose display name starts with do-not-delete or keep-",
		Enabled:     true,
		Tags:        []string{"naming", "opt-out"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package ocinuke.protection.names

import rego.v1

guarded_prefixes := ["do-not-delete", "keep-"]

deny contains violation if {
	input.resource
	resource := input.resource
	some prefix in guarded_prefixes
	startswith(lower(resource.display_name), prefix)
	violation := {
		"message": sprintf("resource name %q matches guarded prefix %q", [resource.display_name, prefix]),
		"resource": resource.identifier,
	}
}`,
	}
}

// minimumAgeRule protects resources created in the last 15 minutes, to avoid
// racing a deployment that is still settling. Disabled by default because
// create-then-nuke pipelines are a legitimate use; enable it for shared
// compartments, or set a custom threshold through a declarative rule file.
func minimumAgeRule() Rule {
	return Rule{
		Name:        "minimum-age",
		Description: "Protects resources younger than 15 minutes",
		Enabled:     false,
		Tags:        []string{"age", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package ocinuke.protection.age

import rego.v1

# 15 minutes in nanoseconds.
minimum_age_ns := 900000000000

deny contains violation if {
	input.resource
	resource := input.resource
	created := time.parse_rfc3339_ns(resource.time_created)
	time.now_ns() - created < minimum_age_ns
	violation := {
		"message": sprintf("resource %s is younger than the 15 minute minimum age", [resource.identifier]),
		"resource": resource.identifier,
	}
}`,
	}
}
