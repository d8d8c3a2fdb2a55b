package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DiscoveryResult is the outcome of one discovery pass over a compartment.
type DiscoveryResult struct {
	// CompartmentID is the compartment that was searched.
	CompartmentID string `json:"compartment_id"`

	// Region is the region the search ran in.
	Region string `json:"region"`

	// Records are the discovered resources, sorted by type then identifier.
	Records []*ResourceRecord `json:"records"`

	// CountsByType maps resource type to the number of records found.
	CountsByType map[string]int `json:"counts_by_type"`
}

// DiscoveryService runs the discovery pass: a single structured query against
// the compartment, followed by normalization of the results. Any failure of
// the underlying query aborts the run; there is no per-type fallback listing.
type DiscoveryService struct {
	discoverer Discoverer
	events     EventSink
}

// NewDiscoveryService creates a discovery service. The event sink may be nil.
func NewDiscoveryService(discoverer Discoverer, events EventSink) *DiscoveryService {
	return &DiscoveryService{
		discoverer: discoverer,
		events:     events,
	}
}

// Discover enumerates every resource in the compartment, excluding records
// whose lifecycle state matches the exclusion list. Duplicate identifiers
// are collapsed to the first occurrence. An empty result is not an error.
func (s *DiscoveryService) Discover(ctx context.Context, compartmentID, region string, excludedStates []string) (*DiscoveryResult, error) {
	if s.discoverer == nil {
		return nil, NewConfigurationError("discovery service requires a discoverer", nil)
	}
	if compartmentID == "" {
		return nil, NewConfigurationError("compartment ID is required for discovery", nil)
	}

	s.publish(ctx, NewEvent(EventDiscoveryStarted,
		fmt.Sprintf("discovering resources in compartment %s", compartmentID)).
		WithRegion(region))

	records, err := s.discoverer.Discover(ctx, compartmentID, excludedStates)
	if err != nil {
		if IsConfiguration(err) {
			return nil, AsEngineError(err)
		}
		return nil, NewDiscoveryError(
			fmt.Sprintf("resource discovery failed for compartment %s", compartmentID), err)
	}

	result := &DiscoveryResult{
		CompartmentID: compartmentID,
		Region:        region,
		CountsByType:  make(map[string]int),
	}

	excluded := make(map[string]bool, len(excludedStates))
	for _, state := range excludedStates {
		excluded[strings.ToUpper(state)] = true
	}

	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if record == nil || record.Identifier == "" || record.ResourceType == "" {
			continue
		}
		if seen[record.Identifier] {
			continue
		}
		// The backing query already filters states, but discoverers that
		// page through stale results can still return them.
		if excluded[strings.ToUpper(record.LifecycleState)] {
			continue
		}
		seen[record.Identifier] = true
		result.Records = append(result.Records, record)
		result.CountsByType[record.ResourceType]++
	}

	sort.Slice(result.Records, func(i, j int) bool {
		if result.Records[i].ResourceType != result.Records[j].ResourceType {
			return result.Records[i].ResourceType < result.Records[j].ResourceType
		}
		return result.Records[i].Identifier < result.Records[j].Identifier
	})

	s.publish(ctx, NewEvent(EventDiscoveryCompleted,
		fmt.Sprintf("discovered %d resources across %d types", len(result.Records), len(result.CountsByType))).
		WithRegion(region).
		WithDetail("resource_count", len(result.Records)).
		WithDetail("type_count", len(result.CountsByType)))

	return result, nil
}

// Types returns the distinct resource types in the result, sorted.
func (r *DiscoveryResult) Types() []string {
	types := make([]string, 0, len(r.CountsByType))
	for name := range r.CountsByType {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

func (s *DiscoveryService) publish(ctx context.Context, event *Event) {
	if s.events == nil || event == nil {
		return
	}
	_ = s.events.Publish(ctx, event)
}
