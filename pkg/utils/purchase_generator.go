package utils

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/feed"
)

// PurchaseGenerator produces synthetic sales-feed pages for demo and offline
// runs, standing in for the real feed behind the same Source interface.
type PurchaseGenerator struct {
	rand *rand.Rand
}

// NewPurchaseGenerator creates a new purchase generator
func NewPurchaseGenerator() *PurchaseGenerator {
	return &PurchaseGenerator{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

var _ feed.Source = (*PurchaseGenerator)(nil)

var (
	artists = []string{
		"The Midnight Scales", "DJ Ferrous", "Cassette Future", "Low Orbit Choir",
		"Mono:Chrome", "Velvet Antenna", "Paper Satellites", "Glasshouse Trio",
		"Neon Larks", "Static Bloom",
	}
	albums = []string{
		"Night Drive", "Oxide", "Tape Loops Vol. 2", "Reentry", "Afterglow",
		"Signal to Noise", "Winter Sessions", "Parallax", "First Light", "Echoes",
	}
	countries = []string{"United States", "Germany", "Japan", "United Kingdom", "Brazil", "Canada"}
	itemTypes = []string{"a", "p", "t"}
)

// Fetch generates a page of random sales, between 1 and 20 per call, spread
// over the few seconds before now.
func (g *PurchaseGenerator) Fetch(ctx context.Context, since float64) (*feed.Page, error) {
	count := 1 + g.rand.Intn(20)
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	sales := make([]model.Sale, count)
	for i := range sales {
		when := now - g.rand.Float64()*10
		amount := g.amount()
		artist := artists[g.rand.Intn(len(artists))]
		item := model.SaleItem{
			UTCDate:         when,
			ArtistName:      artist,
			AlbumTitle:      albums[g.rand.Intn(len(albums))],
			ItemDescription: albums[g.rand.Intn(len(albums))],
			ItemType:        itemTypes[g.rand.Intn(len(itemTypes))],
			Country:         countries[g.rand.Intn(len(countries))],
			AmountPaid:      amount,
			ItemPrice:       amount,
			AmountPaidUSD:   amount,
			URL:             "https://example.bandcamp.com/album/" + uuid.New().String(),
		}
		sales[i] = model.Sale{UTCDate: when, Items: []model.SaleItem{item}}
	}

	return &feed.Page{
		StartDate: since,
		EndDate:   now,
		Purchases: sales,
	}, nil
}

func (g *PurchaseGenerator) amount() float64 {
	return float64(1+g.rand.Intn(30000)) / 100
}
