// Package cache implements the derived-state repositories on Redis Stack:
// JSON documents with a RediSearch index for purchases, a sorted set for the
// seller leaderboard, RedisTimeSeries for the per-cycle sales counts and a
// plain set for aggregate idempotence bookkeeping.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

const (
	purchaseIndex  = "purchase:index"
	purchasePrefix = "purchase:"
	leaderboardKey = "bigspenders"
	salesSeriesKey = "sales_ts"
	appliedSetKey  = "purchases:applied"
)

// RedisRepository implements PurchaseStore, Leaderboard, SalesSeries,
// AppliedSet and Resetter on one Redis client.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(addr, password string, db int) *RedisRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{client: client}
}

// Client exposes the underlying connection so the append log and session-level
// callers can share it.
func (r *RedisRepository) Client() *redis.Client { return r.client }

func (r *RedisRepository) Close() error { return r.client.Close() }

var (
	_ repository.PurchaseStore = (*RedisRepository)(nil)
	_ repository.Leaderboard   = (*RedisRepository)(nil)
	_ repository.SalesSeries   = (*RedisRepository)(nil)
	_ repository.AppliedSet    = (*RedisRepository)(nil)
	_ repository.Resetter      = (*RedisRepository)(nil)
)

// EnsureIndex creates the purchase search index if it does not exist yet.
func (r *RedisRepository) EnsureIndex(ctx context.Context) error {
	err := r.client.FTCreate(ctx, purchaseIndex,
		&redis.FTCreateOptions{
			OnJSON: true,
			Prefix: []interface{}{purchasePrefix},
		},
		&redis.FieldSchema{FieldName: "$.artist_name", As: "artist_name", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "$.album_title", As: "album_title", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "$.item_description", As: "item_description", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "$.utc_date_raw", As: "utc_date_raw", FieldType: redis.SearchFieldTypeNumeric, Sortable: true},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("failed to create purchase index: %w", err)
	}
	return nil
}

// PurchaseStore implementation

func (r *RedisRepository) SavePurchase(ctx context.Context, p *model.Purchase) error {
	if err := r.client.JSONSet(ctx, p.Key(), "$", dto.FromModel(p)).Err(); err != nil {
		return fmt.Errorf("failed to save purchase %s: %w", p.Key(), err)
	}
	return nil
}

func (r *RedisRepository) RecentPurchases(ctx context.Context, n int) ([]*model.Purchase, error) {
	return r.searchPurchases(ctx, "*", n)
}

func (r *RedisRepository) SearchPurchases(ctx context.Context, term string, n int) ([]*model.Purchase, error) {
	term = sanitizeTerm(term)
	if term == "" {
		return []*model.Purchase{}, nil
	}
	query := fmt.Sprintf("(@artist_name:(%s)) | (@album_title:(%s)) | (@item_description:(%s))", term, term, term)
	return r.searchPurchases(ctx, query, n)
}

func (r *RedisRepository) CountPurchases(ctx context.Context) (int64, error) {
	result, err := r.client.FTSearchWithArgs(ctx, purchaseIndex, "*", &redis.FTSearchOptions{
		NoContent:   true,
		LimitOffset: 0,
		Limit:       0,
	}).Result()
	if err != nil {
		if isMissingIndex(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count purchases: %w", err)
	}
	return int64(result.Total), nil
}

func (r *RedisRepository) searchPurchases(ctx context.Context, query string, n int) ([]*model.Purchase, error) {
	result, err := r.client.FTSearchWithArgs(ctx, purchaseIndex, query, &redis.FTSearchOptions{
		SortBy:      []redis.FTSearchSortBy{{FieldName: "utc_date_raw", Desc: true}},
		LimitOffset: 0,
		Limit:       n,
	}).Result()
	if err != nil {
		if isMissingIndex(err) {
			return []*model.Purchase{}, nil
		}
		return nil, fmt.Errorf("purchase search failed: %w", err)
	}

	purchases := make([]*model.Purchase, 0, len(result.Docs))
	for _, doc := range result.Docs {
		raw, ok := doc.Fields["$"]
		if !ok {
			continue
		}
		var d dto.PurchaseDTO
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			continue // skip malformed documents
		}
		purchases = append(purchases, d.ToModel())
	}
	return purchases, nil
}

// Leaderboard implementation

func (r *RedisRepository) IncrementSpend(ctx context.Context, artist string, amountUSD float64) error {
	if err := r.client.ZIncrBy(ctx, leaderboardKey, amountUSD, artist).Err(); err != nil {
		return fmt.Errorf("failed to increment leaderboard for %s: %w", artist, err)
	}
	return nil
}

func (r *RedisRepository) TopSellers(ctx context.Context, k int) (*model.TopSellers, error) {
	entries, err := r.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(k)-1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	top := &model.TopSellers{
		Series: make([]float64, 0, len(entries)),
		Labels: make([]string, 0, len(entries)),
	}
	for _, z := range entries {
		label, _ := z.Member.(string)
		top.Series = append(top.Series, roundCents(z.Score))
		top.Labels = append(top.Labels, label)
	}
	return top, nil
}

// SalesSeries implementation

func (r *RedisRepository) RecordCount(ctx context.Context, at time.Time, count int) error {
	err := r.client.TSAddWithArgs(ctx, salesSeriesKey, at.UnixMilli(), float64(count), &redis.TSOptions{
		DuplicatePolicy: "FIRST",
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to record sales count: %w", err)
	}
	return nil
}

func (r *RedisRepository) Range(ctx context.Context, from, to time.Time) ([]model.TimeSeriesPoint, error) {
	samples, err := r.client.TSRange(ctx, salesSeriesKey, int(from.UnixMilli()), int(to.UnixMilli())).Result()
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return []model.TimeSeriesPoint{}, nil
		}
		return nil, fmt.Errorf("failed to read sales series: %w", err)
	}

	points := make([]model.TimeSeriesPoint, 0, len(samples))
	for _, s := range samples {
		points = append(points, model.TimeSeriesPoint{Timestamp: s.Timestamp, Value: s.Value})
	}
	return points, nil
}

// AppliedSet implementation

func (r *RedisRepository) MarkApplied(ctx context.Context, entryID string) (bool, error) {
	added, err := r.client.SAdd(ctx, appliedSetKey, entryID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark entry %s applied: %w", entryID, err)
	}
	return added == 1, nil
}

// Resetter implementation

// Reset clears all derived state and recreates the search index.
func (r *RedisRepository) Reset(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("failed to flush database: %w", err)
	}
	return r.EnsureIndex(ctx)
}

func isMissingIndex(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such index") || strings.Contains(msg, "Unknown index name") || strings.Contains(msg, "Unknown Index name")
}

// sanitizeTerm strips RediSearch query syntax from a user-supplied term.
func sanitizeTerm(term string) string {
	var b strings.Builder
	for _, r := range term {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
