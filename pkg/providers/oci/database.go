package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/database"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) databaseDescriptors() []*engine.TypeDescriptor {
	db := c.clients.database

	return []*engine.TypeDescriptor{
		{
			TypeName: TypeAutonomousDatabase,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := db.DeleteAutonomousDatabase(ctx, database.DeleteAutonomousDatabaseRequest{
					AutonomousDatabaseId: common.String(record.Identifier),
				})
				return mapError(err, "delete autonomous database")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := db.GetAutonomousDatabase(ctx, database.GetAutonomousDatabaseRequest{
					AutonomousDatabaseId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get autonomous database")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
		},
		{
			TypeName: TypeDbSystem,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := db.TerminateDbSystem(ctx, database.TerminateDbSystemRequest{
					DbSystemId: common.String(record.Identifier),
				})
				return mapError(err, "terminate db system")
			}),
			Waiter: c.waiter([]string{"TERMINATED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := db.GetDbSystem(ctx, database.GetDbSystemRequest{
					DbSystemId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get db system")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"TERMINATED"},
		},
	}
}
