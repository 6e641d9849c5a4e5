// Package stream implements the append log on Redis Streams.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// RedisLog implements the EventLog interface on a single Redis stream.
// XADD assigns the strictly increasing entry IDs; MAXLEN~ keeps retention
// bounded (a size cap, not a correctness mechanism). Consumer-group claim
// bookkeeping (XREADGROUP/XACK/XAUTOCLAIM/XPENDING) provides at-least-once
// delivery with competing consumers.
type RedisLog struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisLog(client *redis.Client, stream string, maxLen int64) *RedisLog {
	return &RedisLog{client: client, stream: stream, maxLen: maxLen}
}

var _ repository.EventLog = (*RedisLog)(nil)

func (l *RedisLog) Append(ctx context.Context, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	id, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to stream %s: %w", l.stream, err)
	}
	return id, nil
}

func (l *RedisLog) CreateGroup(ctx context.Context, group, start string) error {
	err := l.client.XGroupCreateMkStream(ctx, l.stream, group, start).Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return nil
}

func (l *RedisLog) ReadGroup(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]repository.Entry, error) {
	streams, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{l.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil // block timeout, nothing new
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read group %s: %w", group, err)
	}

	var entries []repository.Entry
	for _, s := range streams {
		for _, msg := range s.Messages {
			entries = append(entries, toEntry(msg))
		}
	}
	return entries, nil
}

func (l *RedisLog) Ack(ctx context.Context, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := l.client.XAck(ctx, l.stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack %v in group %s: %w", ids, group, err)
	}
	return nil
}

func (l *RedisLog) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int64) ([]repository.Entry, error) {
	msgs, _, err := l.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   l.stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to claim pending entries: %w", err)
	}

	entries := make([]repository.Entry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, toEntry(msg))
	}
	return entries, nil
}

func (l *RedisLog) Pending(ctx context.Context, group string, count int64) ([]repository.PendingInfo, error) {
	pending, err := l.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: l.stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	infos := make([]repository.PendingInfo, 0, len(pending))
	for _, p := range pending {
		infos = append(infos, repository.PendingInfo{
			ID:         p.ID,
			Consumer:   p.Consumer,
			Idle:       p.Idle,
			Deliveries: p.RetryCount,
		})
	}
	return infos, nil
}

// DeadLetter copies an exhausted entry onto a side stream, preserving the
// original entry ID as a field.
func (l *RedisLog) DeadLetter(ctx context.Context, entry repository.Entry) error {
	values := make(map[string]interface{}, len(entry.Fields)+1)
	for k, v := range entry.Fields {
		values[k] = v
	}
	values["origin_id"] = entry.ID

	err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream + ":dead",
		MaxLen: l.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to dead-letter entry %s: %w", entry.ID, err)
	}
	return nil
}

func (l *RedisLog) Len(ctx context.Context) (int64, error) {
	n, err := l.client.XLen(ctx, l.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get stream length: %w", err)
	}
	return n, nil
}

func toEntry(msg redis.XMessage) repository.Entry {
	fields := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		if s, ok := v.(string); ok {
			fields[k] = s
		} else {
			fields[k] = fmt.Sprint(v)
		}
	}
	return repository.Entry{ID: msg.ID, Fields: fields}
}
