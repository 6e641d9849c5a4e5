package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// Store is an in-memory implementation of the derived-state repositories:
// purchase records keyed like the Redis documents, a leaderboard map, the
// sales time series with keep-first duplicate policy and the applied set.
type Store struct {
	mu        sync.RWMutex
	purchases map[string]*model.Purchase
	scores    map[string]float64
	series    []model.TimeSeriesPoint
	seen      map[int64]struct{} // series timestamps already written (keep-first)
	applied   map[string]struct{}
}

func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.purchases = make(map[string]*model.Purchase)
	s.scores = make(map[string]float64)
	s.series = nil
	s.seen = make(map[int64]struct{})
	s.applied = make(map[string]struct{})
}

var (
	_ repository.PurchaseStore = (*Store)(nil)
	_ repository.Leaderboard   = (*Store)(nil)
	_ repository.SalesSeries   = (*Store)(nil)
	_ repository.AppliedSet    = (*Store)(nil)
	_ repository.Resetter      = (*Store)(nil)
)

func (s *Store) SavePurchase(ctx context.Context, p *model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.purchases[p.Key()] = &copied
	return nil
}

func (s *Store) RecentPurchases(ctx context.Context, n int) ([]*model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(n, func(*model.Purchase) bool { return true }), nil
}

func (s *Store) SearchPurchases(ctx context.Context, term string, n int) ([]*model.Purchase, error) {
	term = strings.ToLower(term)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(n, func(p *model.Purchase) bool {
		return strings.Contains(strings.ToLower(p.ArtistName), term) ||
			strings.Contains(strings.ToLower(p.AlbumTitle), term) ||
			strings.Contains(strings.ToLower(p.ItemDescription), term)
	}), nil
}

func (s *Store) sortedLocked(n int, match func(*model.Purchase) bool) []*model.Purchase {
	result := make([]*model.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		if match(p) {
			copied := *p
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UTCDateRaw > result[j].UTCDateRaw
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func (s *Store) CountPurchases(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.purchases)), nil
}

func (s *Store) IncrementSpend(ctx context.Context, artist string, amountUSD float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[artist] += amountUSD
	return nil
}

func (s *Store) TopSellers(ctx context.Context, k int) (*model.TopSellers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		artist string
		score  float64
	}
	entries := make([]entry, 0, len(s.scores))
	for artist, score := range s.scores {
		entries = append(entries, entry{artist, score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].artist < entries[j].artist
	})
	if len(entries) > k {
		entries = entries[:k]
	}

	top := &model.TopSellers{
		Series: make([]float64, 0, len(entries)),
		Labels: make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		top.Series = append(top.Series, e.score)
		top.Labels = append(top.Labels, e.artist)
	}
	return top, nil
}

func (s *Store) RecordCount(ctx context.Context, at time.Time, count int) error {
	ts := at.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[ts]; exists {
		return nil // keep-first duplicate policy
	}
	s.seen[ts] = struct{}{}
	s.series = append(s.series, model.TimeSeriesPoint{Timestamp: ts, Value: float64(count)})
	return nil
}

func (s *Store) Range(ctx context.Context, from, to time.Time) ([]model.TimeSeriesPoint, error) {
	fromMs, toMs := from.UnixMilli(), to.UnixMilli()
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]model.TimeSeriesPoint, 0)
	for _, p := range s.series {
		if p.Timestamp >= fromMs && p.Timestamp <= toMs {
			points = append(points, p)
		}
	}
	return points, nil
}

func (s *Store) MarkApplied(ctx context.Context, entryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applied[entryID]; exists {
		return false, nil
	}
	s.applied[entryID] = struct{}{}
	return true, nil
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
