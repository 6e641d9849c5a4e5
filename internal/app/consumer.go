package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
	"github.com/redis-developer/beats-by-redis/internal/domain/service"
	"github.com/redis-developer/beats-by-redis/internal/domain/useCases"
	"github.com/redis-developer/beats-by-redis/internal/metrics"
)

// ConsumerOptions tunes one consumer worker.
type ConsumerOptions struct {
	Group         string
	Name          string // defaults to "<group>-<uuid>"
	BatchSize     int64
	Block         time.Duration
	ClaimMinIdle  time.Duration
	MaxDeliveries int64
}

// Consumer is one member of the competing-consumer group. Each worker
// block-reads a batch, materializes every entry, and acknowledges an entry
// only after its materialization succeeded; failures leave the entry pending
// so it is redelivered. Stale pending entries from crashed workers are
// claimed before each read, and entries that exhaust their redeliveries are
// acknowledged into the dead-letter stream instead of retrying forever.
type Consumer struct {
	log          repository.EventLog
	materializer *service.Materializer
	broadcaster  useCases.Broadcaster
	logger       *slog.Logger
	opts         ConsumerOptions
}

func NewConsumer(
	log repository.EventLog,
	materializer *service.Materializer,
	broadcaster useCases.Broadcaster,
	logger *slog.Logger,
	opts ConsumerOptions,
) *Consumer {
	if opts.Name == "" {
		opts.Name = opts.Group + "-" + uuid.New().String()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Consumer{
		log:          log,
		materializer: materializer,
		broadcaster:  broadcaster,
		logger:       logger.With("consumer", opts.Name),
		opts:         opts,
	}
}

// Run loops until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.log.CreateGroup(ctx, c.opts.Group, "0"); err != nil {
		return err
	}
	c.logger.Info("consumer started", "group", c.opts.Group)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.reclaim(ctx)

		entries, err := c.log.ReadGroup(ctx, c.opts.Group, c.opts.Name, c.opts.BatchSize, c.opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("read failed", "error", err)
			// Brief pause so a broken log connection doesn't spin the loop.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		c.process(ctx, entries)
	}
}

// reclaim takes over entries other consumers left pending too long. Claimed
// entries that already exceeded the redelivery budget are dead-lettered and
// acknowledged; the rest are materialized like a normal batch.
func (c *Consumer) reclaim(ctx context.Context) {
	claimed, err := c.log.Claim(ctx, c.opts.Group, c.opts.Name, c.opts.ClaimMinIdle, c.opts.BatchSize)
	if err != nil {
		c.logger.Error("claim failed", "error", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	deliveries := c.deliveryCounts(ctx)

	retry := claimed[:0]
	for _, entry := range claimed {
		if c.opts.MaxDeliveries > 0 && deliveries[entry.ID] > c.opts.MaxDeliveries {
			c.logger.Warn("entry exhausted redeliveries, dead-lettering", "entry", entry.ID)
			if err := c.log.DeadLetter(ctx, entry); err != nil {
				c.logger.Error("dead-letter failed", "entry", entry.ID, "error", err)
				continue // stays pending, retried next claim
			}
			if err := c.log.Ack(ctx, c.opts.Group, entry.ID); err != nil {
				c.logger.Error("ack after dead-letter failed", "entry", entry.ID, "error", err)
			}
			metrics.EventsDeadLettered.Inc()
			continue
		}
		retry = append(retry, entry)
	}

	c.process(ctx, retry)
}

func (c *Consumer) deliveryCounts(ctx context.Context) map[string]int64 {
	counts := make(map[string]int64)
	pending, err := c.log.Pending(ctx, c.opts.Group, c.opts.BatchSize*10)
	if err != nil {
		c.logger.Error("pending lookup failed", "error", err)
		return counts
	}
	for _, p := range pending {
		counts[p.ID] = p.Deliveries
	}
	return counts
}

// process materializes a batch, acknowledging each entry individually after
// it succeeds, then pushes the materialized purchases to the viewers.
func (c *Consumer) process(ctx context.Context, entries []repository.Entry) {
	if len(entries) == 0 {
		return
	}

	var done []*dto.PurchaseDTO
	for _, entry := range entries {
		purchase, err := c.materializer.Materialize(ctx, entry.ID, entry.Fields)
		if err != nil {
			// No ack: the entry stays pending and will be redelivered.
			metrics.MaterializeFailures.Inc()
			c.logger.Warn("materialization failed", "entry", entry.ID, "error", err)
			continue
		}
		if err := c.log.Ack(ctx, c.opts.Group, entry.ID); err != nil {
			c.logger.Error("ack failed", "entry", entry.ID, "error", err)
			continue
		}
		metrics.EventsMaterialized.Inc()
		done = append(done, dto.FromModel(purchase))
	}

	if len(done) > 0 {
		c.broadcaster.Broadcast(&dto.DashboardUpdate{Purchases: done})
	}
}
