package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/speedwagon-io/threshold-console/internal/model"
)

// MemoryClient keeps thresholds in process. It backs -dry-run mode, where
// every applied mutation is logged instead of reaching a real backend.
type MemoryClient struct {
	log    *slog.Logger
	mu     sync.RWMutex
	items  map[int64]model.Threshold
	nextID int64
	now    func() time.Time
}

func NewMemoryClient(log *slog.Logger) *MemoryClient {
	return &MemoryClient{
		log:    log,
		items:  make(map[int64]model.Threshold),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryClient) List(_ context.Context) ([]model.Threshold, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Threshold, 0, len(c.items))
	for _, t := range c.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *MemoryClient) Get(_ context.Context, id int64) (*model.Threshold, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (c *MemoryClient) Apply(_ context.Context, m *model.Mutation) (*model.Threshold, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Info("APPLY",
		slog.String("mutation_id", m.ID),
		slog.String("op", string(m.Op)),
		slog.Int64("threshold_id", m.ThresholdID),
	)

	now := c.now()

	switch m.Op {
	case model.OpCreate:
		t := model.Threshold{ID: c.nextID, Record: m.Payload, CreatedAt: now, UpdatedAt: now}
		c.items[t.ID] = t
		c.nextID++
		return &t, nil
	case model.OpUpdate:
		t, ok := c.items[m.ThresholdID]
		if !ok {
			return nil, ErrNotFound
		}
		t.Record = m.Payload
		t.UpdatedAt = now
		c.items[t.ID] = t
		return &t, nil
	case model.OpDelete:
		if _, ok := c.items[m.ThresholdID]; !ok {
			return nil, ErrNotFound
		}
		delete(c.items, m.ThresholdID)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mutation op %q", m.Op)
	}
}

func (c *MemoryClient) Health(_ context.Context) error {
	return nil
}
