package app

import (
	"context"
	"testing"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/domain/service"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/memory"
)

func TestAggregatesPushCarriesLeaderboardAndHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bc := &captureBroadcaster{}

	if err := store.IncrementSpend(ctx, "Artist", 42); err != nil {
		t.Fatalf("Failed to increment: %v", err)
	}
	if err := store.RecordCount(ctx, time.Now(), 3); err != nil {
		t.Fatalf("Failed to record count: %v", err)
	}

	task := NewAggregatesTask(
		service.NewQueries(store, store, store), bc, testLogger(),
		10*time.Second, time.Hour, 5,
	)
	task.push(ctx)

	updates := bc.all()
	if len(updates) != 1 {
		t.Fatalf("Expected 1 broadcast, got %d", len(updates))
	}

	update := updates[0]
	if update.TopSellers == nil || len(update.TopSellers.Labels) != 1 {
		t.Fatalf("Expected a one-artist leaderboard, got %v", update.TopSellers)
	}
	if update.TopSellers.Labels[0] != "Artist" || update.TopSellers.Series[0] != 42 {
		t.Errorf("Expected Artist with 42, got %s with %f",
			update.TopSellers.Labels[0], update.TopSellers.Series[0])
	}
	if len(update.PurchaseHistory) != 1 || update.PurchaseHistory[0].Value != 3 {
		t.Errorf("Expected one history point with value 3, got %v", update.PurchaseHistory)
	}
	if update.Purchases != nil {
		t.Errorf("Expected no purchases in an aggregates push, got %v", update.Purchases)
	}
}

func TestAggregatesRunPushesOnInterval(t *testing.T) {
	store := memory.NewStore()
	bc := &captureBroadcaster{}

	if err := store.IncrementSpend(context.Background(), "Artist", 1); err != nil {
		t.Fatalf("Failed to increment: %v", err)
	}

	task := NewAggregatesTask(
		service.NewQueries(store, store, store), bc, testLogger(),
		10*time.Millisecond, time.Hour, 5,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(bc.all()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Aggregates task never pushed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Aggregates task did not stop on cancel")
	}
}
