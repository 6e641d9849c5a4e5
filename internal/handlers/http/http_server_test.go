package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/service"
	ws "github.com/redis-developer/beats-by-redis/internal/handlers/websocket"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/memory"
)

func newTestServer(t *testing.T, store *memory.Store, reset ResetFunc) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queries := service.NewQueries(store, store, store)
	broadcaster := ws.NewWebSocketBroadcaster(ws.NewRegistry(), logger)
	s := NewServer(":0", queries, broadcaster, reset, logger)
	server := httptest.NewServer(s.mux)
	t.Cleanup(server.Close)
	return server
}

func seedStore(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for i, artist := range []string{"Cassette Future", "Static Bloom", "Neon Larks"} {
		if err := store.SavePurchase(ctx, &model.Purchase{
			ArtistName:    artist,
			AlbumTitle:    "Night Drive",
			AmountPaidUSD: 10 * (i + 1),
			UTCDate:       int64(100 + i),
			UTCDateRaw:    float64(100+i) + 0.5,
		}); err != nil {
			t.Fatalf("Failed to save purchase: %v", err)
		}
		if err := store.IncrementSpend(ctx, artist, float64(10*(i+1))); err != nil {
			t.Fatalf("Failed to increment: %v", err)
		}
	}
	if err := store.RecordCount(ctx, time.Now(), 3); err != nil {
		t.Fatalf("Failed to record count: %v", err)
	}
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestServerRecentPurchases(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store)
	server := newTestServer(t, store, nil)

	var purchases []*dto.PurchaseDTO
	getJSON(t, server.URL+"/purchase/purchases", &purchases)

	if len(purchases) != 3 {
		t.Fatalf("Expected 3 purchases, got %d", len(purchases))
	}
	if purchases[0].ArtistName != "Neon Larks" {
		t.Errorf("Expected newest purchase first, got %s", purchases[0].ArtistName)
	}

	var limited []*dto.PurchaseDTO
	getJSON(t, server.URL+"/purchase/purchases?count=2", &limited)
	if len(limited) != 2 {
		t.Errorf("Expected count param to limit to 2, got %d", len(limited))
	}
}

func TestServerTopSellers(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store)
	server := newTestServer(t, store, nil)

	var top model.TopSellers
	getJSON(t, server.URL+"/purchase/top-sellers", &top)

	if len(top.Labels) != 3 {
		t.Fatalf("Expected 3 leaderboard entries, got %d", len(top.Labels))
	}
	if top.Labels[0] != "Neon Larks" || top.Series[0] != 30 {
		t.Errorf("Expected Neon Larks leading with 30, got %s with %f", top.Labels[0], top.Series[0])
	}
}

func TestServerHistory(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store)
	server := newTestServer(t, store, nil)

	var points []model.TimeSeriesPoint
	getJSON(t, server.URL+"/purchase/history", &points)

	if len(points) != 1 {
		t.Fatalf("Expected 1 history point, got %d", len(points))
	}
	if points[0].Value != 3 {
		t.Errorf("Expected history value 3, got %f", points[0].Value)
	}
}

func TestServerSearch(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store)
	server := newTestServer(t, store, nil)

	var results []*dto.PurchaseDTO
	getJSON(t, server.URL+"/purchase/search?term=cassette", &results)
	if len(results) != 1 || results[0].ArtistName != "Cassette Future" {
		t.Errorf("Expected Cassette Future, got %v", results)
	}

	// Short terms are guarded and return an empty list, not an error.
	var guarded []*dto.PurchaseDTO
	getJSON(t, server.URL+"/purchase/search?term=cas", &guarded)
	if len(guarded) != 0 {
		t.Errorf("Expected guarded empty result, got %d", len(guarded))
	}
}

func TestServerReset(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store)

	called := false
	server := newTestServer(t, store, func(ctx context.Context) error {
		called = true
		return store.Reset(ctx)
	})

	var body map[string]string
	getJSON(t, server.URL+"/reset", &body)
	if !called {
		t.Error("Expected reset func to be called")
	}
	if body["message"] == "" {
		t.Errorf("Expected confirmation message, got %v", body)
	}

	var purchases []*dto.PurchaseDTO
	getJSON(t, server.URL+"/purchase/purchases", &purchases)
	if len(purchases) != 0 {
		t.Errorf("Expected no purchases after reset, got %d", len(purchases))
	}
}

func TestServerResetFailure(t *testing.T) {
	store := memory.NewStore()
	server := newTestServer(t, store, func(ctx context.Context) error {
		return errors.New("backend down")
	})

	resp, err := http.Get(server.URL + "/reset")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", resp.StatusCode)
	}
}

func TestServerHealth(t *testing.T) {
	server := newTestServer(t, memory.NewStore(), nil)

	var body map[string]string
	getJSON(t, server.URL+"/health", &body)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
}

func TestServerMetricsExposed(t *testing.T) {
	server := newTestServer(t, memory.NewStore(), nil)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 from /metrics, got %d", resp.StatusCode)
	}
}
