package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/artifacts"
	"github.com/oracle/oci-go-sdk/v65/common"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) artifactsDescriptors() []*engine.TypeDescriptor {
	art := c.clients.artifacts

	return []*engine.TypeDescriptor{
		{
			// Repository deletion removes the images it holds along with it.
			TypeName: TypeContainerRepo,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := art.DeleteContainerRepository(ctx, artifacts.DeleteContainerRepositoryRequest{
					RepositoryId: common.String(record.Identifier),
				})
				return mapError(err, "delete container repository")
			}),
		},
	}
}
