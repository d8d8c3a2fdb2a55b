package oci

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Driver binds the engine to Oracle Cloud Infrastructure. Authentication
// comes from a common.ConfigurationProvider supplied by the caller; the
// driver performs no credential acquisition of its own. Per-region client
// bundles are built on demand in Session.
type Driver struct {
	provider  common.ConfigurationProvider
	tenancyID string
	identity  identity.IdentityClient
	logger    zerolog.Logger
	poll      time.Duration

	mu           sync.Mutex
	subscribed   []string
	homeRegion   string
	homeIdentity *identity.IdentityClient
}

var _ engine.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used by the driver and everything it builds.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithPollInterval overrides how often waiters poll lifecycle state.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval > 0 {
			d.poll = interval
		}
	}
}

// NewDriver builds a Driver from an authenticated configuration provider.
// The provider's tenancy is the tenancy every run operates in.
func NewDriver(provider common.ConfigurationProvider, opts ...Option) (*Driver, error) {
	tenancyID, err := provider.TenancyOCID()
	if err != nil {
		return nil, engine.NewConfigurationError("reading tenancy from configuration provider", err)
	}
	idClient, err := identity.NewIdentityClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, engine.NewConfigurationError("building identity client", err)
	}

	d := &Driver{
		provider:  provider,
		tenancyID: tenancyID,
		identity:  idClient,
		logger:    zerolog.Nop(),
		poll:      defaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// TenancyID returns the tenancy OCID the driver authenticates against.
func (d *Driver) TenancyID() string {
	return d.tenancyID
}

// Regions resolves the regions a run covers. An empty request means every
// subscribed region; otherwise each requested region must appear in the
// tenancy's subscription list. The result is sorted and de-duplicated.
func (d *Driver) Regions(ctx context.Context, requested []string) ([]string, error) {
	subscribed, _, err := d.subscriptions(ctx)
	if err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		out := make([]string, len(subscribed))
		copy(out, subscribed)
		return out, nil
	}

	known := make(map[string]struct{}, len(subscribed))
	for _, name := range subscribed {
		known[name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, raw := range requested {
		region := strings.ToLower(strings.TrimSpace(raw))
		if region == "" {
			continue
		}
		if _, ok := known[region]; !ok {
			return nil, engine.NewConfigurationError(
				fmt.Sprintf("region %q is not subscribed by this tenancy", region), nil)
		}
		if _, dup := seen[region]; dup {
			continue
		}
		seen[region] = struct{}{}
		out = append(out, region)
	}
	sort.Strings(out)
	return out, nil
}

// Session builds the capability bundle for one region.
func (d *Driver) Session(ctx context.Context, region string) (*engine.Session, error) {
	clients, err := newRegionClients(d.provider, region)
	if err != nil {
		return nil, engine.NewConfigurationError(
			fmt.Sprintf("building clients for region %s", region), err)
	}
	registry, err := newCatalog(clients, d.poll, d.logger).registry()
	if err != nil {
		return nil, engine.NewConfigurationError(
			fmt.Sprintf("building type registry for region %s", region), err)
	}

	return &engine.Session{
		Region:     region,
		Discoverer: newSearchDiscoverer(clients.search, region, d.logger),
		Registry:   registry,
	}, nil
}

// Compartments returns the client the finalizer uses.
func (d *Driver) Compartments() engine.CompartmentClient {
	return &compartmentClient{driver: d}
}

// subscriptions returns the tenancy's ready region subscriptions and its
// home region, listing them once and caching the result.
func (d *Driver) subscriptions(ctx context.Context) ([]string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.loadSubscriptionsLocked(ctx); err != nil {
		return nil, "", err
	}
	return d.subscribed, d.homeRegion, nil
}

func (d *Driver) loadSubscriptionsLocked(ctx context.Context) error {
	if d.subscribed != nil {
		return nil
	}

	resp, err := d.identity.ListRegionSubscriptions(ctx, identity.ListRegionSubscriptionsRequest{
		TenancyId: common.String(d.tenancyID),
	})
	if err != nil {
		return mapError(err, "list region subscriptions")
	}

	names := make([]string, 0, len(resp.Items))
	home := ""
	for _, sub := range resp.Items {
		if sub.RegionName == nil || sub.Status != identity.RegionSubscriptionStatusReady {
			continue
		}
		names = append(names, *sub.RegionName)
		if sub.IsHomeRegion != nil && *sub.IsHomeRegion {
			home = *sub.RegionName
		}
	}
	sort.Strings(names)

	d.subscribed = names
	d.homeRegion = home
	d.logger.Debug().
		Strs("regions", names).
		Str("home_region", home).
		Msg("resolved region subscriptions")
	return nil
}

// homeIdentityClient returns an identity client pinned to the tenancy's home
// region. Compartment mutations only succeed there, so the finalizer cannot
// reuse the per-region session clients.
func (d *Driver) homeIdentityClient(ctx context.Context) (*identity.IdentityClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.homeIdentity != nil {
		return d.homeIdentity, nil
	}

	if err := d.loadSubscriptionsLocked(ctx); err != nil {
		return nil, err
	}
	if d.homeRegion == "" {
		return nil, engine.NewConfigurationError("tenancy reports no home region", nil)
	}

	client, err := identity.NewIdentityClientWithConfigurationProvider(d.provider)
	if err != nil {
		return nil, engine.NewConfigurationError("building home region identity client", err)
	}
	client.SetRegion(d.homeRegion)
	d.homeIdentity = &client
	return d.homeIdentity, nil
}
