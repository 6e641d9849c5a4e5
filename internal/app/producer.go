package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/feed"
	"github.com/redis-developer/beats-by-redis/internal/metrics"
)

// Producer polls the sales feed and appends each event to the log, preserving
// feed order, then records the batch size as one time-series point. A failed
// fetch skips the whole cycle: no appends, no point. In replay mode a fetched
// page is stepped through at the cadence implied by consecutive feed
// timestamps instead of being appended in bulk.
type Producer struct {
	source feed.Source
	log    repository.EventLog
	series repository.SalesSeries
	store  repository.PurchaseStore
	logger *slog.Logger

	interval     time.Duration
	replay       bool
	replayMaxGap time.Duration

	since float64 // advancing window lower bound
}

func NewProducer(
	source feed.Source,
	log repository.EventLog,
	series repository.SalesSeries,
	store repository.PurchaseStore,
	logger *slog.Logger,
	interval time.Duration,
	replay bool,
	replayMaxGap time.Duration,
) *Producer {
	return &Producer{
		source:       source,
		log:          log,
		series:       series,
		store:        store,
		logger:       logger,
		interval:     interval,
		replay:       replay,
		replayMaxGap: replayMaxGap,
	}
}

// Run drives the fixed-interval poll loop until the context is cancelled.
// On start the stream is primed with one immediate cycle if the purchase
// index is empty, so a restart doesn't hammer the feed needlessly.
func (p *Producer) Run(ctx context.Context) error {
	count, err := p.store.CountPurchases(ctx)
	if err != nil {
		p.logger.Warn("could not check purchase count for priming", "error", err)
	} else if count == 0 {
		p.logger.Info("priming empty stream with an initial fetch")
		p.Cycle(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle performs one fetch-append-record pass and returns the number of
// events appended. Fetch and append failures are local to the cycle.
func (p *Producer) Cycle(ctx context.Context) int {
	metrics.FeedFetches.Inc()
	page, err := p.source.Fetch(ctx, p.since)
	if err != nil {
		metrics.FeedFailures.Inc()
		p.logger.Warn("feed fetch failed, skipping cycle", "error", err)
		return 0
	}

	var appended int
	if p.replay {
		appended = p.replayAppend(ctx, page.Purchases)
	} else {
		appended = p.appendAll(ctx, page.Purchases)
	}

	if err := p.series.RecordCount(ctx, time.Now(), appended); err != nil {
		p.logger.Warn("failed to record sales count", "error", err)
	}

	if page.EndDate > p.since {
		p.since = page.EndDate
	}

	p.logger.Debug("producer cycle complete", "appended", appended)
	return appended
}

// appendAll appends every sale's first line item individually, in feed order.
func (p *Producer) appendAll(ctx context.Context, sales []model.Sale) int {
	var appended int
	for i := range sales {
		ok, err := p.appendSale(ctx, &sales[i])
		if err != nil {
			break
		}
		if ok {
			appended++
		}
	}
	return appended
}

// replayAppend steps through the page in timestamp order, sleeping the gap
// between consecutive events (capped) before each append. This replays
// history at its real-world cadence without accumulating wall-clock drift:
// each sleep is just the delta to the next event.
func (p *Producer) replayAppend(ctx context.Context, sales []model.Sale) int {
	ordered := make([]model.Sale, len(sales))
	copy(ordered, sales)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UTCDate < ordered[j].UTCDate })

	var appended int
	var prev float64
	for i := range ordered {
		if prev > 0 {
			gap := time.Duration((ordered[i].UTCDate - prev) * float64(time.Second))
			if gap > p.replayMaxGap {
				gap = p.replayMaxGap
			}
			if gap > 0 {
				select {
				case <-ctx.Done():
					return appended
				case <-time.After(gap):
				}
			}
		}
		prev = ordered[i].UTCDate

		ok, err := p.appendSale(ctx, &ordered[i])
		if err != nil {
			break
		}
		if ok {
			appended++
		}
	}
	return appended
}

func (p *Producer) appendSale(ctx context.Context, sale *model.Sale) (bool, error) {
	if len(sale.Items) == 0 {
		return false, nil // nothing to transport, not a failure
	}
	if _, err := p.log.Append(ctx, dto.StreamFields(&sale.Items[0])); err != nil {
		p.logger.Error("failed to append purchase to log", "error", err)
		return false, err
	}
	metrics.EventsAppended.Inc()
	return true, nil
}
