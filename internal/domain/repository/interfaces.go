// Package repository defines all the repository interfaces used by domain services.
// Following the dependency inversion principle, domain logic depends on these
// interfaces, and infrastructure implementations provide concrete implementations.
package repository

import (
	"context"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
)

// Entry is one record of the append log: the log-assigned identifier plus the
// stringly field map of one sale item.
type Entry struct {
	ID     string
	Fields map[string]string
}

// PendingInfo describes one delivered-but-unacknowledged entry of a consumer
// group.
type PendingInfo struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	Deliveries int64
}

// EventLog is a durable, ordered, multi-group append log. The log exclusively
// owns identifier assignment; producers never choose IDs. Entries remain
// eligible for redelivery until explicitly acknowledged.
type EventLog interface {
	// Append adds one entry and returns its log-assigned identifier.
	// Implementations may trim the log to an approximate maximum length.
	Append(ctx context.Context, fields map[string]string) (string, error)

	// CreateGroup creates a consumer group starting at the given ID.
	// Creating a group that already exists is a no-op, not an error.
	CreateGroup(ctx context.Context, group, start string) error

	// ReadGroup claims up to count undelivered entries for this consumer,
	// blocking up to block if none are available, then returning empty.
	ReadGroup(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]Entry, error)

	// Ack marks entries as done for the group. Idempotent. Once acknowledged,
	// an entry is never redelivered.
	Ack(ctx context.Context, group string, ids ...string) error

	// Claim transfers entries another consumer left pending for at least
	// minIdle to this consumer, so crashed consumers' work is redelivered.
	Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int64) ([]Entry, error)

	// Pending reports per-entry delivery bookkeeping for the group.
	Pending(ctx context.Context, group string, count int64) ([]PendingInfo, error)

	// DeadLetter moves an entry that exhausted its redeliveries to a
	// side-channel for operator inspection.
	DeadLetter(ctx context.Context, entry Entry) error

	// Len returns the current number of retained entries.
	Len(ctx context.Context) (int64, error)
}

// PurchaseStore persists and queries canonical purchase records.
// Saving is an upsert keyed by artist + raw date, so exact duplicates
// collapse instead of double-counting in the index.
type PurchaseStore interface {
	SavePurchase(ctx context.Context, p *model.Purchase) error

	// RecentPurchases returns the most recent n purchases by descending raw date.
	RecentPurchases(ctx context.Context, n int) ([]*model.Purchase, error)

	// SearchPurchases runs a full-text match over artist, title and
	// description. An empty index yields an empty result, not an error.
	SearchPurchases(ctx context.Context, term string, n int) ([]*model.Purchase, error)

	CountPurchases(ctx context.Context) (int64, error)
}

// Leaderboard is a score-sorted mapping from artist to cumulative USD spend.
type Leaderboard interface {
	// IncrementSpend adds to (never overwrites) the artist's cumulative spend.
	IncrementSpend(ctx context.Context, artist string, amountUSD float64) error

	// TopSellers returns the top k artists by score descending.
	TopSellers(ctx context.Context, k int) (*model.TopSellers, error)
}

// SalesSeries is the per-cycle purchase-count time series. Duplicate
// timestamps resolve by a keep-first policy.
type SalesSeries interface {
	RecordCount(ctx context.Context, at time.Time, count int) error
	Range(ctx context.Context, from, to time.Time) ([]model.TimeSeriesPoint, error)
}

// AppliedSet records which log entries have already been applied to the
// non-idempotent aggregates, turning their increments into check-then-act
// operations under at-least-once delivery.
type AppliedSet interface {
	// MarkApplied records the entry ID and reports whether this was the first
	// application.
	MarkApplied(ctx context.Context, entryID string) (bool, error)
}

// PurchaseArchive is durable, append-only storage of purchases for offline
// analysis. Implementations prioritize durability over speed; the pipeline
// treats archive failures as non-fatal.
type PurchaseArchive interface {
	ArchivePurchase(ctx context.Context, p *model.Purchase) error

	// PurchasesSince retrieves archived purchases at or after the given epoch
	// seconds, useful for rebuilding derived state.
	PurchasesSince(ctx context.Context, since int64) ([]*model.Purchase, error)
}

// Resetter clears all derived state. Used by the administrative reset endpoint.
type Resetter interface {
	Reset(ctx context.Context) error
}
