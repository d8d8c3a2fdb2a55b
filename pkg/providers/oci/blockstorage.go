package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) blockStorageDescriptors() []*engine.TypeDescriptor {
	blockstorage := c.clients.blockstorage

	return []*engine.TypeDescriptor{
		{
			TypeName: TypeVolume,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := blockstorage.DeleteVolume(ctx, core.DeleteVolumeRequest{
					VolumeId: common.String(record.Identifier),
				})
				return mapError(err, "delete volume")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := blockstorage.GetVolume(ctx, core.GetVolumeRequest{
					VolumeId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get volume")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
			Predecessors:   []string{TypeVolumeAttachment, TypeInstance},
		},
		{
			TypeName: TypeBootVolume,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := blockstorage.DeleteBootVolume(ctx, core.DeleteBootVolumeRequest{
					BootVolumeId: common.String(record.Identifier),
				})
				return mapError(err, "delete boot volume")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := blockstorage.GetBootVolume(ctx, core.GetBootVolumeRequest{
					BootVolumeId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get boot volume")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
			Predecessors:   []string{TypeInstance},
		},
	}
}
