package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/useCases"
)

// AggregatesTask periodically recomputes the top-sellers leaderboard and the
// sales history window and pushes both to all connected viewers, independent
// of the per-batch purchase pushes.
type AggregatesTask struct {
	queries     useCases.PurchaseQueries
	broadcaster useCases.Broadcaster
	logger      *slog.Logger

	interval time.Duration
	window   time.Duration
	topK     int
}

func NewAggregatesTask(
	queries useCases.PurchaseQueries,
	broadcaster useCases.Broadcaster,
	logger *slog.Logger,
	interval, window time.Duration,
	topK int,
) *AggregatesTask {
	return &AggregatesTask{
		queries:     queries,
		broadcaster: broadcaster,
		logger:      logger,
		interval:    interval,
		window:      window,
		topK:        topK,
	}
}

// Run pushes aggregates on a fixed interval until the context is cancelled.
func (t *AggregatesTask) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.push(ctx)
		}
	}
}

func (t *AggregatesTask) push(ctx context.Context) {
	update := &dto.DashboardUpdate{}

	top, err := t.queries.TopSellers(ctx, t.topK)
	if err != nil {
		t.logger.Warn("failed to compute top sellers", "error", err)
	} else {
		update.TopSellers = top
	}

	history, err := t.queries.History(ctx, t.window)
	if err != nil {
		t.logger.Warn("failed to compute purchase history", "error", err)
	} else {
		update.PurchaseHistory = history
	}

	if update.TopSellers == nil && update.PurchaseHistory == nil {
		return
	}
	t.broadcaster.Broadcast(update)
}
