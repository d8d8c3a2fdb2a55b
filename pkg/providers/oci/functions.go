package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/functions"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) functionsDescriptors() []*engine.TypeDescriptor {
	fn := c.clients.functions

	deleteFunction := engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
		_, err := fn.DeleteFunction(ctx, functions.DeleteFunctionRequest{
			FunctionId: common.String(record.Identifier),
		})
		return mapError(err, "delete function")
	})

	deleteApplication := engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
		_, err := fn.DeleteApplication(ctx, functions.DeleteApplicationRequest{
			ApplicationId: common.String(record.Identifier),
		})
		return mapError(err, "delete application")
	})

	// The search index has used both bare and Functions-prefixed labels for
	// this family; registering both keeps either vintage deletable.
	return []*engine.TypeDescriptor{
		{
			TypeName: TypeFunction,
			Deleter:  deleteFunction,
		},
		{
			TypeName: TypeFunctionsFunction,
			Deleter:  deleteFunction,
		},
		{
			TypeName:     TypeApplication,
			Deleter:      deleteApplication,
			Predecessors: []string{TypeFunction, TypeFunctionsFunction},
		},
		{
			TypeName:     TypeFunctionsApplication,
			Deleter:      deleteApplication,
			Predecessors: []string{TypeFunction, TypeFunctionsFunction},
		},
	}
}
