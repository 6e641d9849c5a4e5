package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// Archive is an in-memory purchase archive. Unlike Store it deliberately has
// no reset: the archive models durable storage that outlives the derived
// state.
type Archive struct {
	mu        sync.Mutex
	purchases []model.Purchase
}

func NewArchive() *Archive {
	return &Archive{}
}

var _ repository.PurchaseArchive = (*Archive)(nil)

func (a *Archive) ArchivePurchase(ctx context.Context, p *model.Purchase) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purchases = append(a.purchases, *p)
	return nil
}

func (a *Archive) PurchasesSince(ctx context.Context, since int64) ([]*model.Purchase, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]*model.Purchase, 0)
	for i := range a.purchases {
		if a.purchases[i].UTCDate >= since {
			copied := a.purchases[i]
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UTCDate < result[j].UTCDate
	})
	return result, nil
}
