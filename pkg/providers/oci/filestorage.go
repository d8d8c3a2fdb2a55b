package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/filestorage"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) fileStorageDescriptors() []*engine.TypeDescriptor {
	fss := c.clients.fileStorage

	return []*engine.TypeDescriptor{
		{
			// Deleting the mount target drops its exports, unblocking the
			// file systems behind them.
			TypeName: TypeMountTarget,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := fss.DeleteMountTarget(ctx, filestorage.DeleteMountTargetRequest{
					MountTargetId: common.String(record.Identifier),
				})
				return mapError(err, "delete mount target")
			}),
			Waiter: c.waiter([]string{"DELETED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := fss.GetMountTarget(ctx, filestorage.GetMountTargetRequest{
					MountTargetId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get mount target")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"DELETED"},
		},
		{
			TypeName: TypeFileSystem,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := fss.DeleteFileSystem(ctx, filestorage.DeleteFileSystemRequest{
					FileSystemId: common.String(record.Identifier),
				})
				return mapError(err, "delete file system")
			}),
			Waiter: c.waiter([]string{"DELETED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := fss.GetFileSystem(ctx, filestorage.GetFileSystemRequest{
					FileSystemId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get file system")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"DELETED"},
			Predecessors:   []string{TypeMountTarget},
		},
	}
}
