// Package replay delivers queued threshold writes to the backend.
package replay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/speedwagon-io/threshold-console/internal/backend"
	"github.com/speedwagon-io/threshold-console/internal/config"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/outbox"
)

type Result struct {
	Delivered int `json:"delivered"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

type Manager struct {
	log      *slog.Logger
	client   backend.Client
	outbox   outbox.Outbox
	interval time.Duration
	batch    int
	maxAge   time.Duration

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewManager(log *slog.Logger, cfg *config.OutboxConfig, client backend.Client, ob outbox.Outbox) *Manager {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	return &Manager{
		log:      log,
		client:   client,
		outbox:   ob,
		interval: interval,
		batch:    batch,
		maxAge:   cfg.MaxAge,
		stopCh:   make(chan struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.log.Info("starting outbox replay",
		slog.Duration("interval", m.interval),
		slog.Int("batch_size", m.batch),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("context cancelled, stopping replay")
			return
		case <-m.stopCh:
			m.log.Info("stop signal received, stopping replay")
			return
		case <-ticker.C:
			if _, err := m.ReplayOnce(ctx); err != nil {
				m.log.Error("outbox replay failed", sl.Err(err))
			}
		}
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// ReplayOnce sends one batch in queue order. It stops at the first mutation
// the backend cannot be reached for, so later writes never overtake it.
// Mutations the backend refuses are dropped: resending cannot change the answer.
func (m *Manager) ReplayOnce(ctx context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res Result

	pending, err := m.outbox.GetPending(ctx, m.batch)
	if err != nil {
		return res, err
	}

	var doneIDs []string
	for _, mut := range pending {
		_, err := m.client.Apply(ctx, mut)
		if err == nil {
			doneIDs = append(doneIDs, mut.ID)
			res.Delivered++
			continue
		}

		if backend.Temporary(err) || ctx.Err() != nil {
			m.log.Debug("backend still unavailable, keeping mutation",
				slog.String("id", mut.ID),
				sl.Err(err),
			)
			break
		}

		m.log.Warn("backend refused queued mutation, dropping it",
			slog.String("id", mut.ID),
			slog.String("op", string(mut.Op)),
			slog.Int64("threshold_id", mut.ThresholdID),
			sl.Err(err),
		)
		doneIDs = append(doneIDs, mut.ID)
		res.Dropped++
	}

	if len(doneIDs) > 0 {
		if err := m.outbox.MarkSent(ctx, doneIDs); err != nil {
			return res, err
		}
		m.log.Info("outbox replayed",
			slog.Int("delivered", res.Delivered),
			slog.Int("dropped", res.Dropped),
		)
	}

	if m.maxAge > 0 {
		if err := m.outbox.Cleanup(ctx, m.maxAge); err != nil {
			m.log.Error("failed to cleanup old outbox entries", sl.Err(err))
		}
	}

	count, err := m.outbox.Count(ctx)
	if err != nil {
		return res, err
	}
	res.Remaining = int(count)

	return res, nil
}
