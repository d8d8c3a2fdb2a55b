package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) computeDescriptors() []*engine.TypeDescriptor {
	compute := c.clients.compute
	mgmt := c.clients.computeMgmt

	return []*engine.TypeDescriptor{
		{
			// A live pool replaces terminated member instances, so pools go
			// before standalone instance termination.
			TypeName: TypeInstancePool,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := mgmt.TerminateInstancePool(ctx, core.TerminateInstancePoolRequest{
					InstancePoolId: common.String(record.Identifier),
				})
				return mapError(err, "terminate instance pool")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := mgmt.GetInstancePool(ctx, core.GetInstancePoolRequest{
					InstancePoolId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get instance pool")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
		},
		{
			TypeName: TypeInstance,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := compute.TerminateInstance(ctx, core.TerminateInstanceRequest{
					InstanceId: common.String(record.Identifier),
				})
				return mapError(err, "terminate instance")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := compute.GetInstance(ctx, core.GetInstanceRequest{
					InstanceId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get instance")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
			Predecessors:   []string{TypeInstancePool},
		},
		{
			// A configuration still referenced by a pool cannot be deleted.
			TypeName: TypeInstanceConfig,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := mgmt.DeleteInstanceConfiguration(ctx, core.DeleteInstanceConfigurationRequest{
					InstanceConfigurationId: common.String(record.Identifier),
				})
				return mapError(err, "delete instance configuration")
			}),
			Predecessors: []string{TypeInstancePool},
		},
		{
			// Detaching frees the volume for its own delete; the attachment
			// object disappears with the detach.
			TypeName: TypeVolumeAttachment,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := compute.DetachVolume(ctx, core.DetachVolumeRequest{
					VolumeAttachmentId: common.String(record.Identifier),
				})
				return mapError(err, "detach volume")
			}),
		},
	}
}
