package service

import (
	"context"
	"fmt"

	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// RebuildDerivedState replays archived purchases into the purchase store and
// the seller leaderboard, for cold starts where the derived state was lost
// but the archive survived. The sales time series is not rebuilt: its points
// record producer cycles, not purchases, and cannot be reconstructed from the
// archive. Returns the number of purchases restored.
func RebuildDerivedState(
	ctx context.Context,
	archive repository.PurchaseArchive,
	store repository.PurchaseStore,
	leaderboard repository.Leaderboard,
	since int64,
) (int, error) {
	purchases, err := archive.PurchasesSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive: %w", err)
	}

	for _, p := range purchases {
		if err := store.SavePurchase(ctx, p); err != nil {
			return 0, fmt.Errorf("failed to restore purchase %s: %w", p.Key(), err)
		}
		if err := leaderboard.IncrementSpend(ctx, p.ArtistName, float64(p.AmountPaidUSD)); err != nil {
			return 0, fmt.Errorf("failed to restore leaderboard for %s: %w", p.ArtistName, err)
		}
	}
	return len(purchases), nil
}
