package oci

import (
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/artifacts"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/containerengine"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/database"
	"github.com/oracle/oci-go-sdk/v65/filestorage"
	"github.com/oracle/oci-go-sdk/v65/functions"
	"github.com/oracle/oci-go-sdk/v65/loadbalancer"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/oracle/oci-go-sdk/v65/resourcesearch"
)

// regionClients bundles every service client a session needs, all pinned to
// one region. Construction performs no network calls.
type regionClients struct {
	region string

	search          resourcesearch.ResourceSearchClient
	compute         core.ComputeClient
	computeMgmt     core.ComputeManagementClient
	blockstorage    core.BlockstorageClient
	network         core.VirtualNetworkClient
	objectStorage   objectstorage.ObjectStorageClient
	loadBalancer    loadbalancer.LoadBalancerClient
	database        database.DatabaseClient
	functions       functions.FunctionsManagementClient
	containerEngine containerengine.ContainerEngineClient
	fileStorage     filestorage.FileStorageClient
	artifacts       artifacts.ArtifactsClient
}

// newRegionClients builds the client bundle for one region from an
// authenticated configuration provider.
func newRegionClients(provider common.ConfigurationProvider, region string) (*regionClients, error) {
	c := &regionClients{region: region}

	var err error
	if c.search, err = resourcesearch.NewResourceSearchClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building resource search client: %w", err)
	}
	if c.compute, err = core.NewComputeClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building compute client: %w", err)
	}
	if c.computeMgmt, err = core.NewComputeManagementClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building compute management client: %w", err)
	}
	if c.blockstorage, err = core.NewBlockstorageClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building block storage client: %w", err)
	}
	if c.network, err = core.NewVirtualNetworkClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building virtual network client: %w", err)
	}
	if c.objectStorage, err = objectstorage.NewObjectStorageClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building object storage client: %w", err)
	}
	if c.loadBalancer, err = loadbalancer.NewLoadBalancerClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building load balancer client: %w", err)
	}
	if c.database, err = database.NewDatabaseClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building database client: %w", err)
	}
	if c.functions, err = functions.NewFunctionsManagementClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building functions client: %w", err)
	}
	if c.containerEngine, err = containerengine.NewContainerEngineClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building container engine client: %w", err)
	}
	if c.fileStorage, err = filestorage.NewFileStorageClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building file storage client: %w", err)
	}
	if c.artifacts, err = artifacts.NewArtifactsClientWithConfigurationProvider(provider); err != nil {
		return nil, fmt.Errorf("building artifacts client: %w", err)
	}

	c.search.SetRegion(region)
	c.compute.SetRegion(region)
	c.computeMgmt.SetRegion(region)
	c.blockstorage.SetRegion(region)
	c.network.SetRegion(region)
	c.objectStorage.SetRegion(region)
	c.loadBalancer.SetRegion(region)
	c.database.SetRegion(region)
	c.functions.SetRegion(region)
	c.containerEngine.SetRegion(region)
	c.fileStorage.SetRegion(region)
	c.artifacts.SetRegion(region)

	return c, nil
}
