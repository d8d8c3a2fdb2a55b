package oci

import (
	"context"
	"strings"
	"time"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// defaultPollInterval is how often waiters re-fetch a lifecycle state.
const defaultPollInterval = 10 * time.Second

// stateFunc fetches the current lifecycle state of one resource.
type stateFunc func(ctx context.Context) (string, error)

// awaitTerminal polls fetch until the state reaches one of the terminal
// states or the resource is gone. The caller's context bounds the total
// wait; its expiry is returned unwrapped so the executor can tell a wait
// timeout apart from a poll failure. Retryable fetch errors (throttling, a
// flaky backend) keep the poll alive rather than failing the wait.
func awaitTerminal(ctx context.Context, interval time.Duration, terminal []string, fetch stateFunc) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := fetch(ctx)
		switch {
		case err == nil:
			for _, t := range terminal {
				if strings.EqualFold(state, t) {
					return nil
				}
			}
		case engine.IsAlreadyGone(err):
			return nil
		case !engine.IsRetryable(err):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waiter adapts a per-identifier state fetch into an engine.Waiter.
func (c *catalog) waiter(terminal []string, fetch func(ctx context.Context, id string) (string, error)) engine.Waiter {
	interval := c.poll
	return engine.WaiterFunc(func(ctx context.Context, record *engine.ResourceRecord) error {
		return awaitTerminal(ctx, interval, terminal, func(ctx context.Context) (string, error) {
			return fetch(ctx, record.Identifier)
		})
	})
}
