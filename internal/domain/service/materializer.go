// Package service provides implementations of domain services that implement
// core business logic. This package depends only on domain models and
// repository interfaces (not implementations).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// Materializer turns one raw log entry into persisted, query-ready state:
// the canonical purchase record, the seller leaderboard and (optionally) the
// archive. The purchase record upsert is idempotent by composite key; the
// leaderboard increment is guarded by the applied set keyed on the log entry
// ID, so a redelivered entry never double-counts an artist's spend.
//
// Any failure returns an error and the caller must not acknowledge the entry;
// redelivery retries the whole materialization. A partial write (record saved,
// increment failed) is therefore possible and resolved on retry for the
// record, while a lost increment after a successful applied-set mark stays
// lost. That window is accepted; no transaction spans the stores.
type Materializer struct {
	store       repository.PurchaseStore
	leaderboard repository.Leaderboard
	applied     repository.AppliedSet
	archive     repository.PurchaseArchive // optional
	log         *slog.Logger
}

func NewMaterializer(
	store repository.PurchaseStore,
	leaderboard repository.Leaderboard,
	applied repository.AppliedSet,
	archive repository.PurchaseArchive,
	log *slog.Logger,
) *Materializer {
	return &Materializer{
		store:       store,
		leaderboard: leaderboard,
		applied:     applied,
		archive:     archive,
		log:         log,
	}
}

// Materialize processes one log entry as a unit.
func (m *Materializer) Materialize(ctx context.Context, entryID string, fields map[string]string) (*model.Purchase, error) {
	purchase, err := Normalize(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize entry %s: %w", entryID, err)
	}

	if err := m.store.SavePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to persist purchase for entry %s: %w", entryID, err)
	}

	first, err := m.applied.MarkApplied(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to check applied set for entry %s: %w", entryID, err)
	}
	if first {
		if err := m.leaderboard.IncrementSpend(ctx, purchase.ArtistName, float64(purchase.AmountPaidUSD)); err != nil {
			return nil, fmt.Errorf("failed to update leaderboard for entry %s: %w", entryID, err)
		}
	}

	// Archive writes are best-effort; the dashboard never reads the archive.
	if m.archive != nil {
		if err := m.archive.ArchivePurchase(ctx, purchase); err != nil {
			m.log.Warn("failed to archive purchase", "entry", entryID, "error", err)
		}
	}

	return purchase, nil
}

// Normalize converts the stringly stream fields of one sale item into a
// canonical purchase: ':' in the artist name becomes ';' (the key separator),
// the UTC date is floored to whole seconds with the fractional original kept
// for ordering, amounts are coerced to integers and a missing album title is
// backfilled from the item description.
func Normalize(fields map[string]string) (*model.Purchase, error) {
	artist := strings.ReplaceAll(fields["artist_name"], ":", ";")
	if artist == "" || artist == "null" {
		return nil, fmt.Errorf("entry has no artist name")
	}

	raw, err := strconv.ParseFloat(fields["utc_date"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid utc_date %q: %w", fields["utc_date"], err)
	}

	p := &model.Purchase{
		ArtistName:      artist,
		ItemDescription: denull(fields["item_description"]),
		ItemType:        denull(fields["item_type"]),
		Country:         denull(fields["country"]),
		URL:             denull(fields["url"]),
		AmountPaid:      coerceInt(fields["amount_paid"]),
		ItemPrice:       coerceInt(fields["item_price"]),
		AmountPaidUSD:   coerceInt(fields["amount_paid_usd"]),
		UTCDate:         int64(math.Floor(raw)),
		UTCDateRaw:      raw,
	}

	title := fields["album_title"]
	if title == "" || title == "null" {
		title = p.ItemDescription
	}
	p.AlbumTitle = title

	return p, nil
}

// coerceInt parses a feed amount, truncating any fractional part. Missing or
// unparseable values count as zero.
func coerceInt(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func denull(s string) string {
	if s == "null" {
		return ""
	}
	return s
}
