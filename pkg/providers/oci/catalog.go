package oci

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Search-service type labels for every resource family the catalog tears
// down. Labels must match ResourceSummary.ResourceType exactly; a label the
// index never returns costs nothing, while a missing one leaves resources
// skipped as unregistered.
const (
	TypeInstance             = "Instance"
	TypeInstancePool         = "InstancePool"
	TypeInstanceConfig       = "InstanceConfiguration"
	TypeVolumeAttachment     = "VolumeAttachment"
	TypeVolume               = "Volume"
	TypeBootVolume           = "BootVolume"
	TypeVcn                  = "Vcn"
	TypeSubnet               = "Subnet"
	TypeInternetGateway      = "InternetGateway"
	TypeNatGateway           = "NatGateway"
	TypeServiceGateway       = "ServiceGateway"
	TypeRouteTable           = "RouteTable"
	TypeSecurityList         = "SecurityList"
	TypeNetworkSecurityGroup = "NetworkSecurityGroup"
	TypeLocalPeeringGateway  = "LocalPeeringGateway"
	TypeDhcpOptions          = "DhcpOptions"
	TypeDrg                  = "Drg"
	TypeDrgAttachment        = "DrgAttachment"
	TypePublicIp             = "PublicIp"
	TypeBucket               = "Bucket"
	TypeLoadBalancer         = "LoadBalancer"
	TypeAutonomousDatabase   = "AutonomousDatabase"
	TypeDbSystem             = "DbSystem"
	TypeFunction             = "Function"
	TypeFunctionsFunction    = "FunctionsFunction"
	TypeApplication          = "Application"
	TypeFunctionsApplication = "FunctionsApplication"
	TypeCluster              = "Cluster"
	TypeNodePool             = "NodePool"
	TypeFileSystem           = "FileSystem"
	TypeMountTarget          = "MountTarget"
	TypeContainerRepo        = "ContainerRepo"
)

// catalog builds the type descriptors for one region's client bundle.
type catalog struct {
	clients *regionClients
	poll    time.Duration
	logger  zerolog.Logger
}

func newCatalog(clients *regionClients, poll time.Duration, logger zerolog.Logger) *catalog {
	return &catalog{
		clients: clients,
		poll:    poll,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// registry assembles the full type registry for one region. Predecessor
// edges only take effect between types actually discovered, so declaring an
// edge against a type that is absent from a compartment is free.
func (c *catalog) registry() (*engine.TypeRegistry, error) {
	registry := engine.NewTypeRegistry()

	families := [][]*engine.TypeDescriptor{
		c.computeDescriptors(),
		c.blockStorageDescriptors(),
		c.networkDescriptors(),
		c.objectStorageDescriptors(),
		c.loadBalancerDescriptors(),
		c.databaseDescriptors(),
		c.functionsDescriptors(),
		c.containerEngineDescriptors(),
		c.fileStorageDescriptors(),
		c.artifactsDescriptors(),
	}

	for _, family := range families {
		for _, desc := range family {
			if err := registry.Register(desc); err != nil {
				return nil, err
			}
		}
	}

	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return registry, nil
}
