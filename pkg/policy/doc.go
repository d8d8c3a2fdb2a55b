// Package policy provides Open Policy Agent (OPA) protection rules that veto
// deletion of individual resources.
//
// Every discovered record is evaluated against the loaded rules before it is
// planned for deletion. Any violation protects the record: it is skipped and
// the run carries on without it. There is no severity ladder; a deletion tool
// either deletes a resource or it does not.
//
// # Architecture
//
// The package consists of four parts:
//
//  1. Engine - Compiles rules and evaluates records against their deny sets
//  2. Loader - Loads rules from .rego, .json, and declarative .yaml files
//  3. Types - Rules, violations, decisions, and the declarative file schema
//  4. Built-in rules - protected-tag, name-prefix, and minimum-age guards
//
// # Usage
//
// The Engine implements engine.ProtectionGate, so wiring it into a run is one
// option:
//
//	protection, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := protection.LoadRules(ctx, cfg.Protection.Paths); err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := engine.NewEngine(driver, engine.WithProtectionGate(protection))
//
// Evaluating a record directly:
//
//	decision, err := protection.EvaluateRecord(ctx, record)
//	if err != nil {
//	    // Fail closed: treat the record as protected.
//	}
//	if decision.Protected {
//	    for _, v := range decision.Violations {
//	        fmt.Printf("rule %s: %s\n", v.Rule, v.Message)
//	    }
//	}
//
// # Built-in rules
//
//  1. protected-tag - protects resources tagged ocinuke-protect or protected
//     with a value of true/1/yes (enabled by default)
//  2. name-prefix - protects display names starting with do-not-delete or
//     keep- (enabled by default)
//  3. minimum-age - protects resources created in the last 15 minutes
//     (disabled by default; create-then-nuke pipelines are legitimate)
//
// # Custom rules
//
// Hand-written rules live in .rego files. The deny set carries the violation:
//
//	package ocinuke.protection.frozen
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.resource.compartment_id == "ocid1.compartment.oc1..frozen"
//	    violation := {
//	        "message": "compartment is frozen",
//	        "resource": input.resource.identifier,
//	    }
//	}
//
// The input document has the record under input.resource, with the JSON
// field names of engine.ResourceRecord (identifier, display_name,
// freeform_tags, defined_tags, time_created, ...), and evaluation context
// under input.context.
//
// # Declarative rule files
//
// Teams that do not write Rego use the YAML form; the loader compiles it into
// Rego so both forms evaluate identically:
//
//	name: team-guards
//	description: Keep the shared network and anything tagged
//	protect:
//	  tags:
//	    team-keep: "yes"
//	    do-not-delete: "*"
//	  name_prefixes:
//	    - prod-
//	  resource_types:
//	    - Vcn
//	  minimum_age: 24h
//
// # Hot reload
//
// The loader watches rule paths and recompiles on change:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(rules []policy.Rule) error {
//	    return protection.LoadRules(ctx, paths)
//	})
//
// # Failure mode
//
// Rule evaluation errors fail closed. EvaluateRecord returns the error, the
// gate propagates it, and the planner skips the record with the error as the
// reason. A resource is never deleted on an unevaluated guard.
package policy
