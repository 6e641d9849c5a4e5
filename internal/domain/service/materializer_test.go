package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/redis-developer/beats-by-redis/internal/domain/service"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseFields() map[string]string {
	return map[string]string{
		"artist_name":      "The Midnight Scales",
		"album_title":      "Night Drive",
		"item_description": "Night Drive LP",
		"item_type":        "a",
		"country":          "Germany",
		"url":              "https://example.bandcamp.com/album/night-drive",
		"utc_date":         "1700000123.7654",
		"amount_paid":      "10.95",
		"item_price":       "9",
		"amount_paid_usd":  "11.5",
	}
}

func TestNormalizeEscapesColonInArtistName(t *testing.T) {
	fields := baseFields()
	fields["artist_name"] = "Mono:Chrome"

	p, err := service.Normalize(fields)
	if err != nil {
		t.Fatalf("Failed to normalize: %v", err)
	}
	if p.ArtistName != "Mono;Chrome" {
		t.Errorf("Expected artist Mono;Chrome, got %s", p.ArtistName)
	}
	if p.Key() != "purchase:Mono;Chrome.1700000123.7654" {
		t.Errorf("Unexpected storage key %s", p.Key())
	}
}

func TestNormalizeFloorsDateKeepsRaw(t *testing.T) {
	p, err := service.Normalize(baseFields())
	if err != nil {
		t.Fatalf("Failed to normalize: %v", err)
	}
	if p.UTCDate != 1700000123 {
		t.Errorf("Expected floored date 1700000123, got %d", p.UTCDate)
	}
	if p.UTCDateRaw != 1700000123.7654 {
		t.Errorf("Expected raw date preserved, got %f", p.UTCDateRaw)
	}
}

func TestNormalizeCoercesAmounts(t *testing.T) {
	fields := baseFields()
	fields["amount_paid"] = "10.95"
	fields["item_price"] = "null"
	fields["amount_paid_usd"] = ""

	p, err := service.Normalize(fields)
	if err != nil {
		t.Fatalf("Failed to normalize: %v", err)
	}
	if p.AmountPaid != 10 {
		t.Errorf("Expected amount_paid truncated to 10, got %d", p.AmountPaid)
	}
	if p.ItemPrice != 0 {
		t.Errorf("Expected null item_price coerced to 0, got %d", p.ItemPrice)
	}
	if p.AmountPaidUSD != 0 {
		t.Errorf("Expected empty amount_paid_usd coerced to 0, got %d", p.AmountPaidUSD)
	}
}

func TestNormalizeBackfillsAlbumTitle(t *testing.T) {
	fields := baseFields()
	fields["album_title"] = "null"

	p, err := service.Normalize(fields)
	if err != nil {
		t.Fatalf("Failed to normalize: %v", err)
	}
	if p.AlbumTitle != "Night Drive LP" {
		t.Errorf("Expected album title backfilled from description, got %q", p.AlbumTitle)
	}
}

func TestNormalizeScrubsNullStrings(t *testing.T) {
	fields := baseFields()
	fields["country"] = "null"
	fields["url"] = "null"

	p, err := service.Normalize(fields)
	if err != nil {
		t.Fatalf("Failed to normalize: %v", err)
	}
	if p.Country != "" {
		t.Errorf("Expected null country scrubbed, got %q", p.Country)
	}
	if p.URL != "" {
		t.Errorf("Expected null url scrubbed, got %q", p.URL)
	}
}

func TestNormalizeRejectsMissingArtist(t *testing.T) {
	for _, artist := range []string{"", "null"} {
		fields := baseFields()
		fields["artist_name"] = artist
		if _, err := service.Normalize(fields); err == nil {
			t.Errorf("Expected error for artist %q", artist)
		}
	}
}

func TestNormalizeRejectsBadDate(t *testing.T) {
	fields := baseFields()
	fields["utc_date"] = "not-a-date"
	if _, err := service.Normalize(fields); err == nil {
		t.Error("Expected error for unparseable utc_date")
	}
}

func TestMaterializeRedeliveryDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := service.NewMaterializer(store, store, store, nil, testLogger())

	fields := baseFields()
	if _, err := m.Materialize(ctx, "1-0", fields); err != nil {
		t.Fatalf("Failed first materialization: %v", err)
	}
	// Redelivery of the same log entry.
	if _, err := m.Materialize(ctx, "1-0", fields); err != nil {
		t.Fatalf("Failed redelivered materialization: %v", err)
	}

	count, err := store.CountPurchases(ctx)
	if err != nil {
		t.Fatalf("Failed to count purchases: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 purchase record, got %d", count)
	}

	top, err := store.TopSellers(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to get top sellers: %v", err)
	}
	if len(top.Series) != 1 || top.Series[0] != 11 {
		t.Errorf("Expected leaderboard counted exactly once with 11, got %v", top.Series)
	}
}

func TestMaterializeDistinctEntriesAccumulate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := service.NewMaterializer(store, store, store, nil, testLogger())

	first := baseFields()
	second := baseFields()
	second["utc_date"] = "1700000200.5"

	if _, err := m.Materialize(ctx, "1-0", first); err != nil {
		t.Fatalf("Failed first materialization: %v", err)
	}
	if _, err := m.Materialize(ctx, "2-0", second); err != nil {
		t.Fatalf("Failed second materialization: %v", err)
	}

	top, err := store.TopSellers(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to get top sellers: %v", err)
	}
	if len(top.Series) != 1 || top.Series[0] != 22 {
		t.Errorf("Expected accumulated spend 22, got %v", top.Series)
	}
}

func TestMaterializeRejectsUnnormalizableEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := service.NewMaterializer(store, store, store, nil, testLogger())

	fields := baseFields()
	fields["artist_name"] = "null"
	if _, err := m.Materialize(ctx, "1-0", fields); err == nil {
		t.Fatal("Expected materialization of bad entry to fail")
	}

	count, err := store.CountPurchases(ctx)
	if err != nil {
		t.Fatalf("Failed to count purchases: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no purchase saved for bad entry, got %d", count)
	}
}
