package useCases

import (
	"context"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/model"
)

// PurchaseQueries defines the read-only aggregation API over the derived
// state. All methods tolerate empty backing stores by returning empty
// results, never errors.
type PurchaseQueries interface {
	RecentPurchases(ctx context.Context, n int) ([]*model.Purchase, error)
	History(ctx context.Context, window time.Duration) ([]model.TimeSeriesPoint, error)
	TopSellers(ctx context.Context, k int) (*model.TopSellers, error)
	Search(ctx context.Context, term string) ([]*model.Purchase, error)
}

// Broadcaster defines an interface for pushing updates to connected viewers.
type Broadcaster interface {
	Broadcast(update *dto.DashboardUpdate)
}
