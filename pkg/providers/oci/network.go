package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/rs/zerolog"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// routeTableDeleter clears route rules before deleting the table. Rules
// referencing a gateway wedge both the gateway's delete and the table's own,
// so the clear runs even when the delete itself is doomed to fail (the
// default table of a VCN cannot be deleted and goes down with the VCN).
type routeTableDeleter struct {
	client core.VirtualNetworkClient
	logger zerolog.Logger
}

var _ engine.Deleter = (*routeTableDeleter)(nil)

func (d *routeTableDeleter) Delete(ctx context.Context, record *engine.ResourceRecord) error {
	resp, err := d.client.GetRouteTable(ctx, core.GetRouteTableRequest{
		RtId: common.String(record.Identifier),
	})
	if err != nil {
		return mapError(err, "get route table")
	}

	if len(resp.RouteRules) > 0 {
		_, err = d.client.UpdateRouteTable(ctx, core.UpdateRouteTableRequest{
			RtId: common.String(record.Identifier),
			UpdateRouteTableDetails: core.UpdateRouteTableDetails{
				RouteRules: []core.RouteRule{},
			},
		})
		if err != nil {
			return mapError(err, "clear route rules")
		}
		d.logger.Debug().
			Str("route_table", record.Identifier).
			Int("rules", len(resp.RouteRules)).
			Msg("cleared route rules")
	}

	_, err = d.client.DeleteRouteTable(ctx, core.DeleteRouteTableRequest{
		RtId: common.String(record.Identifier),
	})
	return mapError(err, "delete route table")
}

func (c *catalog) networkDescriptors() []*engine.TypeDescriptor {
	network := c.clients.network

	return []*engine.TypeDescriptor{
		{
			TypeName: TypeSubnet,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteSubnet(ctx, core.DeleteSubnetRequest{
					SubnetId: common.String(record.Identifier),
				})
				return mapError(err, "delete subnet")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := network.GetSubnet(ctx, core.GetSubnetRequest{
					SubnetId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get subnet")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
			Predecessors: []string{
				TypeInstance, TypeLoadBalancer, TypeMountTarget, TypeDbSystem, TypeNodePool,
			},
		},
		{
			TypeName: TypeRouteTable,
			Deleter: &routeTableDeleter{
				client: network,
				logger: c.logger,
			},
			Predecessors: []string{TypeSubnet},
		},
		{
			TypeName: TypeSecurityList,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteSecurityList(ctx, core.DeleteSecurityListRequest{
					SecurityListId: common.String(record.Identifier),
				})
				return mapError(err, "delete security list")
			}),
			Predecessors: []string{TypeSubnet},
		},
		{
			TypeName: TypeNetworkSecurityGroup,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteNetworkSecurityGroup(ctx, core.DeleteNetworkSecurityGroupRequest{
					NetworkSecurityGroupId: common.String(record.Identifier),
				})
				return mapError(err, "delete network security group")
			}),
			Predecessors: []string{TypeInstance, TypeLoadBalancer},
		},
		{
			TypeName: TypeDhcpOptions,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteDhcpOptions(ctx, core.DeleteDhcpOptionsRequest{
					DhcpId: common.String(record.Identifier),
				})
				return mapError(err, "delete dhcp options")
			}),
			Predecessors: []string{TypeSubnet},
		},
		{
			TypeName: TypeInternetGateway,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteInternetGateway(ctx, core.DeleteInternetGatewayRequest{
					IgId: common.String(record.Identifier),
				})
				return mapError(err, "delete internet gateway")
			}),
			Predecessors: []string{TypeRouteTable},
		},
		{
			TypeName: TypeNatGateway,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteNatGateway(ctx, core.DeleteNatGatewayRequest{
					NatGatewayId: common.String(record.Identifier),
				})
				return mapError(err, "delete nat gateway")
			}),
			Predecessors: []string{TypeRouteTable},
		},
		{
			TypeName: TypeServiceGateway,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteServiceGateway(ctx, core.DeleteServiceGatewayRequest{
					ServiceGatewayId: common.String(record.Identifier),
				})
				return mapError(err, "delete service gateway")
			}),
			Predecessors: []string{TypeRouteTable},
		},
		{
			TypeName: TypeLocalPeeringGateway,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteLocalPeeringGateway(ctx, core.DeleteLocalPeeringGatewayRequest{
					LocalPeeringGatewayId: common.String(record.Identifier),
				})
				return mapError(err, "delete local peering gateway")
			}),
			Predecessors: []string{TypeRouteTable},
		},
		{
			TypeName: TypeDrgAttachment,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteDrgAttachment(ctx, core.DeleteDrgAttachmentRequest{
					DrgAttachmentId: common.String(record.Identifier),
				})
				return mapError(err, "delete drg attachment")
			}),
		},
		{
			TypeName: TypeDrg,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteDrg(ctx, core.DeleteDrgRequest{
					DrgId: common.String(record.Identifier),
				})
				return mapError(err, "delete drg")
			}),
			Predecessors: []string{TypeDrgAttachment, TypeRouteTable},
		},
		{
			TypeName: TypePublicIp,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeletePublicIp(ctx, core.DeletePublicIpRequest{
					PublicIpId: common.String(record.Identifier),
				})
				return mapError(err, "delete public ip")
			}),
			Predecessors: []string{TypeInstance, TypeLoadBalancer},
		},
		{
			TypeName: TypeVcn,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := network.DeleteVcn(ctx, core.DeleteVcnRequest{
					VcnId: common.String(record.Identifier),
				})
				return mapError(err, "delete vcn")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := network.GetVcn(ctx, core.GetVcnRequest{
					VcnId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get vcn")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
			Predecessors: []string{
				TypeSubnet, TypeInternetGateway, TypeNatGateway, TypeServiceGateway,
				TypeRouteTable, TypeSecurityList, TypeNetworkSecurityGroup,
				TypeLocalPeeringGateway, TypeDhcpOptions, TypeDrg, TypeDrgAttachment,
			},
		},
	}
}
