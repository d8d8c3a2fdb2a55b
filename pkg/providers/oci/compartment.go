package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/identity"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// compartmentClient serves the finalizer. Both operations run against the
// tenancy's home region, resolved lazily from the subscription list on
// first use.
type compartmentClient struct {
	driver *Driver
}

var _ engine.CompartmentClient = (*compartmentClient)(nil)

// CompartmentState returns the compartment's lifecycle state.
func (c *compartmentClient) CompartmentState(ctx context.Context, compartmentID string) (string, error) {
	client, err := c.driver.homeIdentityClient(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.GetCompartment(ctx, identity.GetCompartmentRequest{
		CompartmentId: common.String(compartmentID),
	})
	if err != nil {
		return "", mapError(err, "get compartment")
	}
	return string(resp.LifecycleState), nil
}

// DeleteCompartment requests deletion of the compartment itself. A 409 from
// the service maps to a conflict, which the finalizer retries while earlier
// deletions settle.
func (c *compartmentClient) DeleteCompartment(ctx context.Context, compartmentID string) error {
	client, err := c.driver.homeIdentityClient(ctx)
	if err != nil {
		return err
	}

	_, err = client.DeleteCompartment(ctx, identity.DeleteCompartmentRequest{
		CompartmentId: common.String(compartmentID),
	})
	return mapError(err, "delete compartment")
}
