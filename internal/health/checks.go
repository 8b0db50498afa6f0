package health

import (
	"context"
	"fmt"

	"github.com/speedwagon-io/threshold-console/internal/backend"
	"github.com/speedwagon-io/threshold-console/internal/outbox"
)

// BackendCheck reports the threshold backend. An unreachable backend is
// degraded, not unhealthy: writes are still validated and queued.
type BackendCheck struct {
	client backend.Client
}

func NewBackendCheck(client backend.Client) *BackendCheck {
	return &BackendCheck{client: client}
}

func (c *BackendCheck) Name() string {
	return "backend"
}

func (c *BackendCheck) Check(ctx context.Context) (Status, string) {
	if err := c.client.Health(ctx); err != nil {
		return StatusDegraded, err.Error()
	}
	return StatusHealthy, ""
}

// DefaultBacklogLimit is the queue depth above which the outbox is degraded.
const DefaultBacklogLimit = 1000

// OutboxCheck reports the local write queue.
type OutboxCheck struct {
	outbox       outbox.Outbox
	backlogLimit int64
}

func NewOutboxCheck(ob outbox.Outbox, backlogLimit int64) *OutboxCheck {
	if backlogLimit <= 0 {
		backlogLimit = DefaultBacklogLimit
	}
	return &OutboxCheck{outbox: ob, backlogLimit: backlogLimit}
}

func (c *OutboxCheck) Name() string {
	return "outbox"
}

// Check is unhealthy when the queue cannot be read, since queued writes would
// be lost. A long backlog or undecodable writes make it degraded.
func (c *OutboxCheck) Check(ctx context.Context) (Status, string) {
	pending, err := c.outbox.Count(ctx)
	if err != nil {
		return StatusUnhealthy, err.Error()
	}

	dead, err := c.outbox.DeadCount(ctx)
	if err != nil {
		return StatusUnhealthy, err.Error()
	}

	switch {
	case dead > 0:
		return StatusDegraded, fmt.Sprintf("%d undecodable writes set aside, %d pending", dead, pending)
	case pending > c.backlogLimit:
		return StatusDegraded, fmt.Sprintf("%d writes pending", pending)
	}
	return StatusHealthy, ""
}
