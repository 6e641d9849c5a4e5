package service

import (
	"context"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
	"github.com/redis-developer/beats-by-redis/internal/domain/useCases"
)

// minSearchTermLen guards full-text search against overly broad scans; terms
// this short return nothing rather than an error.
const minSearchTermLen = 3

const defaultPageSize = 10

// Queries is the read-only aggregation service over the derived state.
// All methods are side-effect-free and report empty backing stores as empty
// results.
type Queries struct {
	store       repository.PurchaseStore
	leaderboard repository.Leaderboard
	series      repository.SalesSeries
}

func NewQueries(store repository.PurchaseStore, leaderboard repository.Leaderboard, series repository.SalesSeries) *Queries {
	return &Queries{store: store, leaderboard: leaderboard, series: series}
}

var _ useCases.PurchaseQueries = (*Queries)(nil)

// RecentPurchases returns the n most recent purchases by descending raw date.
func (q *Queries) RecentPurchases(ctx context.Context, n int) ([]*model.Purchase, error) {
	if n <= 0 {
		n = defaultPageSize
	}
	return q.store.RecentPurchases(ctx, n)
}

// History returns the sales-count points of the trailing window.
func (q *Queries) History(ctx context.Context, window time.Duration) ([]model.TimeSeriesPoint, error) {
	now := time.Now()
	return q.series.Range(ctx, now.Add(-window), now)
}

// TopSellers returns the top k artists by cumulative USD spend descending.
func (q *Queries) TopSellers(ctx context.Context, k int) (*model.TopSellers, error) {
	return q.leaderboard.TopSellers(ctx, k)
}

// Search matches the term against artist, title and description. Terms of
// three characters or fewer return an empty result.
func (q *Queries) Search(ctx context.Context, term string) ([]*model.Purchase, error) {
	if len(term) <= minSearchTermLen {
		return []*model.Purchase{}, nil
	}
	return q.store.SearchPurchases(ctx, term, defaultPageSize)
}
