package stream_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redis-developer/beats-by-redis/internal/infrastructure/stream"
)

// Integration test against a live Redis instance. Set REDIS_TEST_ADDR to run
// it; the test stream is deleted before each test.
func newTestLog(t *testing.T) *stream.RedisLog {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_TEST_PASSWORD"),
	})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	if err := client.Del(ctx, "test:purchases", "test:purchases:dead").Err(); err != nil {
		t.Fatalf("Failed to clean test streams: %v", err)
	}

	return stream.NewRedisLog(client, "test:purchases", 100)
}

func TestRedisLogAppendReadAck(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Append(ctx, map[string]string{"artist_name": "Artist", "utc_date": "100.5"})
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a non-empty entry ID")
	}

	if err := log.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	// Creating an existing group is a no-op.
	if err := log.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Second group creation failed: %v", err)
	}

	entries, err := log.ReadGroup(ctx, "g", "c1", 10, time.Second)
	if err != nil {
		t.Fatalf("Failed to read group: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != id {
		t.Errorf("Expected entry %s, got %s", id, entries[0].ID)
	}
	if entries[0].Fields["artist_name"] != "Artist" {
		t.Errorf("Unexpected fields: %v", entries[0].Fields)
	}

	pending, err := log.Pending(ctx, "g", 10)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("Expected the entry pending, got %v", pending)
	}

	if err := log.Ack(ctx, "g", id); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}

	pending, err = log.Pending(ctx, "g", 10)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending entries after ack, got %d", len(pending))
	}

	length, err := log.Len(ctx)
	if err != nil {
		t.Fatalf("Failed to get stream length: %v", err)
	}
	if length != 1 {
		t.Errorf("Expected stream length 1, got %d", length)
	}
}

func TestRedisLogClaimTransfersOwnership(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Append(ctx, map[string]string{"artist_name": "Artist", "utc_date": "100.5"})
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := log.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	if _, err := log.ReadGroup(ctx, "g", "c1", 10, time.Second); err != nil {
		t.Fatalf("Failed to read group: %v", err)
	}

	// c1 never acks; c2 takes over.
	claimed, err := log.Claim(ctx, "g", "c2", 0, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != id {
		t.Fatalf("Expected to claim %s, got %v", id, claimed)
	}

	pending, err := log.Pending(ctx, "g", 10)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Consumer != "c2" {
		t.Errorf("Expected pending owner c2, got %v", pending)
	}
}

func TestRedisLogDeadLetterKeepsOrigin(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Append(ctx, map[string]string{"artist_name": "Artist", "utc_date": "100.5"})
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := log.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	entries, err := log.ReadGroup(ctx, "g", "c1", 10, time.Second)
	if err != nil {
		t.Fatalf("Failed to read group: %v", err)
	}

	if err := log.DeadLetter(ctx, entries[0]); err != nil {
		t.Fatalf("Failed to dead-letter: %v", err)
	}

	dead := stream.NewRedisLog(newTestClient(t), "test:purchases:dead", 100)
	if err := dead.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Failed to create group on dead stream: %v", err)
	}
	deadEntries, err := dead.ReadGroup(ctx, "g", "c1", 10, time.Second)
	if err != nil {
		t.Fatalf("Failed to read dead stream: %v", err)
	}
	if len(deadEntries) != 1 {
		t.Fatalf("Expected 1 dead-lettered entry, got %d", len(deadEntries))
	}
	if deadEntries[0].Fields["origin_id"] != id {
		t.Errorf("Expected origin_id %s, got %s", id, deadEntries[0].Fields["origin_id"])
	}
}

// A database flush destroys the stream and its consumer group; recreating the
// group afterwards must restore a readable log, since the administrative reset
// relies on exactly that.
func TestRedisLogGroupRecreatedAfterFlush(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	if _, err := log.Append(ctx, map[string]string{"artist_name": "Artist", "utc_date": "100.5"}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := log.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}

	if err := newTestClient(t).FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush database: %v", err)
	}

	if err := log.CreateGroup(ctx, "g", "0"); err != nil {
		t.Fatalf("Failed to recreate group after flush: %v", err)
	}

	id, err := log.Append(ctx, map[string]string{"artist_name": "Artist", "utc_date": "200.5"})
	if err != nil {
		t.Fatalf("Failed to append after flush: %v", err)
	}
	entries, err := log.ReadGroup(ctx, "g", "c1", 10, time.Second)
	if err != nil {
		t.Fatalf("Failed to read group after flush: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("Expected the post-flush entry, got %v", entries)
	}
}

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_TEST_ADDR"),
		Password: os.Getenv("REDIS_TEST_PASSWORD"),
	})
	t.Cleanup(func() { client.Close() })
	return client
}
