package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/loadbalancer"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

func (c *catalog) loadBalancerDescriptors() []*engine.TypeDescriptor {
	lb := c.clients.loadBalancer

	return []*engine.TypeDescriptor{
		{
			// Deletion runs through a work request; the waiter's 404 path is
			// what detects completion, since the balancer never reports a
			// deleted state of its own.
			TypeName: TypeLoadBalancer,
			Deleter: engine.DeleterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
				_, err := lb.DeleteLoadBalancer(ctx, loadbalancer.DeleteLoadBalancerRequest{
					LoadBalancerId: common.String(record.Identifier),
				})
				return mapError(err, "delete load balancer")
			}),
			Waiter: c.waiter([]string{"DELETED"}, func(ctx context.Context, id string) (string, error) {
				resp, err := lb.GetLoadBalancer(ctx, loadbalancer.GetLoadBalancerRequest{
					LoadBalancerId: common.String(id),
				})
				if err != nil {
					return "", mapError(err, "get load balancer")
				}
				return string(resp.LifecycleState), nil
			}),
			TerminalStates: []string{"DELETED"},
		},
	}
}
