package oci

import (
	"context"
	"fmt"
	"strings"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/resourcesearch"
	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// searchPageSize is the maximum page size the search service accepts.
const searchPageSize = 1000

// searchDiscoverer implements engine.Discoverer with one structured query
// against the search service, paginated. Resource types never need to be
// known up front: whatever the index returns is a candidate for deletion.
type searchDiscoverer struct {
	client resourcesearch.ResourceSearchClient
	region string
	logger zerolog.Logger
}

var _ engine.Discoverer = (*searchDiscoverer)(nil)

func newSearchDiscoverer(client resourcesearch.ResourceSearchClient, region string, logger zerolog.Logger) *searchDiscoverer {
	return &searchDiscoverer{
		client: client,
		region: region,
		logger: logger.With().Str("component", "discovery").Str("region", region).Logger(),
	}
}

// Discover runs the structured query and returns every matching resource.
func (d *searchDiscoverer) Discover(ctx context.Context, compartmentID string, excludedStates []string) ([]*engine.ResourceRecord, error) {
	query := buildSearchQuery(compartmentID, excludedStates)
	d.logger.Debug().Str("query", query).Msg("searching compartment")

	var (
		records []*engine.ResourceRecord
		page    *string
	)

	for {
		req := resourcesearch.SearchResourcesRequest{
			SearchDetails: resourcesearch.StructuredSearchDetails{
				Query:               common.String(query),
				MatchingContextType: resourcesearch.SearchDetailsMatchingContextTypeNone,
			},
			Limit: common.Int(searchPageSize),
			Page:  page,
		}

		resp, err := d.client.SearchResources(ctx, req)
		if err != nil {
			return nil, mapError(err, "search")
		}

		for _, item := range resp.Items {
			if record := recordFromSummary(item, d.region); record != nil {
				records = append(records, record)
			}
		}

		if resp.OpcNextPage == nil || *resp.OpcNextPage == "" {
			break
		}
		page = resp.OpcNextPage
	}

	d.logger.Debug().Int("count", len(records)).Msg("search complete")
	return records, nil
}

// buildSearchQuery renders the structured query for one compartment. Each
// excluded lifecycle state becomes a != predicate so resources already being
// deleted never enter the plan.
func buildSearchQuery(compartmentID string, excludedStates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "query all resources where compartmentId = '%s'", compartmentID)
	for _, state := range excludedStates {
		fmt.Fprintf(&b, " && lifecycleState != '%s'", strings.ToUpper(state))
	}
	return b.String()
}

// recordFromSummary converts one search result into a resource record.
// Summaries without a type or identifier are unusable and dropped.
func recordFromSummary(item resourcesearch.ResourceSummary, region string) *engine.ResourceRecord {
	if item.ResourceType == nil || item.Identifier == nil {
		return nil
	}

	record := &engine.ResourceRecord{
		ResourceType: *item.ResourceType,
		Identifier:   *item.Identifier,
		Region:       region,
		FreeformTags: item.FreeformTags,
		DefinedTags:  item.DefinedTags,
	}
	if item.CompartmentId != nil {
		record.CompartmentID = *item.CompartmentId
	}
	if item.LifecycleState != nil {
		record.LifecycleState = *item.LifecycleState
	}
	if item.DisplayName != nil {
		record.DisplayName = *item.DisplayName
	}
	if item.TimeCreated != nil {
		record.TimeCreated = item.TimeCreated.Time
	}
	return record
}
