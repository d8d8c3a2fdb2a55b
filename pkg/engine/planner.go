package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Planner turns a discovery result into an ordered deletion plan. It decides
// up front which records are skipped (unregistered type, filtered out,
// protected), partitions the rest by resource type, and orders the types by
// their dependency graph. Each group holds exactly one type.
type Planner struct {
	registry *TypeRegistry
	gate     ProtectionGate
	filter   RecordFilter
	events   EventSink
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerGate installs a gate consulted for every record before it
// enters a group.
func WithPlannerGate(gate ProtectionGate) PlannerOption {
	return func(p *Planner) {
		p.gate = gate
	}
}

// WithPlannerFilter installs a filter consulted for every record before the
// protection gate.
func WithPlannerFilter(filter RecordFilter) PlannerOption {
	return func(p *Planner) {
		p.filter = filter
	}
}

// WithPlannerEvents installs an event sink for skip notifications.
func WithPlannerEvents(events EventSink) PlannerOption {
	return func(p *Planner) {
		p.events = events
	}
}

// NewPlanner creates a planner over the given registry.
func NewPlanner(registry *TypeRegistry, opts ...PlannerOption) *Planner {
	p := &Planner{registry: registry}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreatePlan builds the deletion plan for one region's discovery result.
// Records that cannot or must not be deleted become Skipped outcomes on the
// plan; they are never silently dropped. A dependency cycle among the
// discovered types fails the whole plan.
func (p *Planner) CreatePlan(ctx context.Context, discovery *DiscoveryResult) (*DeletionPlan, error) {
	if p.registry == nil {
		return nil, NewConfigurationError("planner requires a registry", nil)
	}
	if discovery == nil {
		return nil, NewConfigurationError("planner requires a discovery result", nil)
	}

	plan := &DeletionPlan{
		ID:            uuid.New().String(),
		CompartmentID: discovery.CompartmentID,
		Region:        discovery.Region,
		CreatedAt:     time.Now(),
	}

	kept := p.triage(ctx, discovery.Records, plan)
	if len(kept) == 0 {
		return plan, nil
	}

	byType := make(map[string][]*ResourceRecord)
	for _, record := range kept {
		byType[record.ResourceType] = append(byType[record.ResourceType], record)
	}

	typeNames := make([]string, 0, len(byType))
	for name := range byType {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	graph, err := NewGraphBuilder().BuildGraph(typeNames, p.registry)
	if err != nil {
		return nil, err
	}
	plan.Graph = graph

	index := 0
	for _, level := range graph.Levels {
		for _, typeName := range level {
			records := byType[typeName]
			sort.Slice(records, func(i, j int) bool {
				return records[i].Identifier < records[j].Identifier
			})
			plan.Groups = append(plan.Groups, DeletionGroup{
				Index:        index,
				ResourceType: typeName,
				Records:      records,
			})
			index++
		}
	}

	return plan, nil
}

// triage splits records into kept and skipped. Skipped outcomes carry the
// reason; gate failures fail closed and skip the record.
func (p *Planner) triage(ctx context.Context, records []*ResourceRecord, plan *DeletionPlan) []*ResourceRecord {
	var kept []*ResourceRecord

	for _, record := range records {
		if _, ok := p.registry.Lookup(record.ResourceType); !ok {
			p.skip(ctx, plan, record, SkipReasonNoDescriptor, nil)
			continue
		}

		if p.filter != nil {
			keep, err := p.filter.Keep(ctx, record)
			if err != nil {
				p.skip(ctx, plan, record, SkipReasonFiltered,
					NewPermanentError(
						fmt.Sprintf("filter failed for %s", record.Identifier), err).
						WithResource(record.Identifier).
						WithCode(ErrCodeProtected))
				continue
			}
			if !keep {
				p.skip(ctx, plan, record, SkipReasonFiltered, nil)
				continue
			}
		}

		if p.gate != nil {
			reason, err := p.gate.Check(ctx, record)
			if err != nil {
				p.skip(ctx, plan, record, SkipReasonProtected,
					NewPermanentError(
						fmt.Sprintf("protection check failed for %s", record.Identifier), err).
						WithResource(record.Identifier).
						WithCode(ErrCodeProtected))
				continue
			}
			if reason != "" {
				p.skip(ctx, plan, record, reason, nil)
				continue
			}
		}

		kept = append(kept, record)
	}

	return kept
}

// skip records a Skipped outcome on the plan and emits an event.
func (p *Planner) skip(ctx context.Context, plan *DeletionPlan, record *ResourceRecord, reason string, cause *EngineError) {
	outcome := NewSkippedOutcome(record, reason)
	outcome.LastError = cause
	plan.Skipped = append(plan.Skipped, outcome)

	if p.events != nil {
		_ = p.events.Publish(ctx, NewEvent(EventResourceSkipped,
			fmt.Sprintf("skipping %s %s: %s", record.ResourceType, record.Identifier, reason)).
			WithRegion(record.Region).
			WithResource(record.ResourceType, record.Identifier).
			WithDetail("reason", reason))
	}
}
