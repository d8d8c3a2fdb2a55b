package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/containerengine"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) containerEngineDescriptors() []*engine.TypeDescriptor {
	oke := c.clients.containerEngine

	return []*engine.TypeDescriptor{
		{
			TypeName: TypeNodePool,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := oke.DeleteNodePool(ctx, containerengine.DeleteNodePoolRequest{
					NodePoolId: common.String(record.Identifier),
				})
				return mapError(err, "delete node pool")
			}),
			Waiter: c.waiter([]string{"DELETED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := oke.GetNodePool(ctx, containerengine.GetNodePoolRequest{
					NodePoolId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get node pool")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"DELETED"},
		},
		{
			TypeName: TypeCluster,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := oke.DeleteCluster(ctx, containerengine.DeleteClusterRequest{
					ClusterId: common.String(record.Identifier),
				})
				return mapError(err, "delete cluster")
			}),
			Waiter: c.waiter([]string{"DELETED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := oke.GetCluster(ctx, containerengine.GetClusterRequest{
					ClusterId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get cluster")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"DELETED"},
			Predecessors:   []string{TypeNodePool},
		},
	}
}
