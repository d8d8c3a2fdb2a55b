package oci

import (
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// testRegistry builds the full catalog over zero-value clients. Descriptor
// construction never touches the API, so this exercises the real wiring.
func testRegistry(t *testing.T) *engine.TypeRegistry {
	t.Helper()
	registry, err := newCatalog(&regionClients{}, 0, zerolog.Nop()).registry()
	if err != nil {
		t.Fatalf("registry() error: %v", err)
	}
	return registry
}

func TestCatalogRegistry_AllFamilies(t *testing.T) {
	registry := testRegistry(t)

	want := []string{
		TypeApplication, TypeAutonomousDatabase, TypeBootVolume, TypeBucket,
		TypeCluster, TypeContainerRepo, TypeDbSystem, TypeDhcpOptions, TypeDrg,
		TypeDrgAttachment, TypeFileSystem, TypeFunction, TypeFunctionsApplication,
		TypeFunctionsFunction, TypeInstance, TypeInstanceConfig,
		TypeInstancePool, TypeInternetGateway,
		TypeLoadBalancer, TypeLocalPeeringGateway, TypeMountTarget,
		TypeNatGateway, TypeNetworkSecurityGroup, TypeNodePool, TypePublicIp,
		TypeRouteTable, TypeSecurityList, TypeServiceGateway, TypeSubnet,
		TypeVcn, TypeVolume, TypeVolumeAttachment,
	}
	sort.Strings(want)

	got := registry.Types()
	if len(got) != len(want) {
		t.Fatalf("registry holds %d types, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCatalogRegistry_DescriptorsComplete(t *testing.T) {
	registry := testRegistry(t)

	for _, desc := range registry.Descriptors() {
		if err := desc.Validate(); err != nil {
			t.Errorf("%s descriptor invalid: %v", desc.TypeName, err)
		}
		if desc.HasWaiter() && len(desc.TerminalStates) == 0 {
			t.Errorf("%s has a waiter but no terminal states", desc.TypeName)
		}
	}

	if err := registry.Validate(); err != nil {
		t.Errorf("catalog predecessors do not close: %v", err)
	}
}

func TestCatalogRegistry_VcnPredecessors(t *testing.T) {
	registry := testRegistry(t)

	desc, ok := registry.Lookup(TypeVcn)
	if !ok {
		t.Fatal("Vcn descriptor missing")
	}

	want := map[string]bool{
		TypeSubnet: true, TypeInternetGateway: true, TypeNatGateway: true,
		TypeServiceGateway: true, TypeRouteTable: true, TypeSecurityList: true,
		TypeNetworkSecurityGroup: true, TypeLocalPeeringGateway: true,
		TypeDhcpOptions: true, TypeDrg: true, TypeDrgAttachment: true,
	}
	if len(desc.Predecessors) != len(want) {
		t.Fatalf("Vcn has %d predecessors, want %d: %v",
			len(desc.Predecessors), len(want), desc.Predecessors)
	}
	for _, pred := range desc.Predecessors {
		if !want[pred] {
			t.Errorf("unexpected Vcn predecessor %q", pred)
		}
	}
}

func TestCatalogRegistry_OrderingEdges(t *testing.T) {
	registry := testRegistry(t)

	tests := []struct {
		typeName string
		pred     string
	}{
		{TypeInstance, TypeInstancePool},
		{TypeInstanceConfig, TypeInstancePool},
		{TypeVolume, TypeVolumeAttachment},
		{TypeVolume, TypeInstance},
		{TypeBootVolume, TypeInstance},
		{TypeSubnet, TypeInstance},
		{TypeSubnet, TypeLoadBalancer},
		{TypeSubnet, TypeDbSystem},
		{TypeRouteTable, TypeSubnet},
		{TypeInternetGateway, TypeRouteTable},
		{TypeNatGateway, TypeRouteTable},
		{TypeDrg, TypeDrgAttachment},
		{TypeCluster, TypeNodePool},
		{TypeFileSystem, TypeMountTarget},
		{TypeApplication, TypeFunction},
		{TypeFunctionsApplication, TypeFunctionsFunction},
	}
	for _, tt := range tests {
		desc, ok := registry.Lookup(tt.typeName)
		if !ok {
			t.Fatalf("%s descriptor missing", tt.typeName)
		}
		found := false
		for _, pred := range desc.Predecessors {
			if pred == tt.pred {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s does not order after %s: %v", tt.typeName, tt.pred, desc.Predecessors)
		}
	}
}

func TestCatalogRegistry_Waiters(t *testing.T) {
	registry := testRegistry(t)

	tests := []struct {
		typeName string
		want     bool
	}{
		{TypeInstance, true},
		{TypeInstancePool, true},
		{TypeInstanceConfig, false},
		{TypeVolume, true},
		{TypeSubnet, true},
		{TypeVcn, true},
		{TypeLoadBalancer, true},
		{TypeAutonomousDatabase, true},
		{TypeCluster, true},
		{TypeFileSystem, true},
		{TypeVolumeAttachment, false},
		{TypeRouteTable, false},
		{TypeBucket, false},
		{TypeFunction, false},
		{TypeContainerRepo, false},
	}
	for _, tt := range tests {
		desc, ok := registry.Lookup(tt.typeName)
		if !ok {
			t.Fatalf("%s descriptor missing", tt.typeName)
		}
		if got := desc.HasWaiter(); got != tt.want {
			t.Errorf("%s HasWaiter() = %v, want %v", tt.typeName, got, tt.want)
		}
	}
}
