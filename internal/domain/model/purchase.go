package model

import "strconv"

// SaleItem is one line item exactly as the external sales feed reports it.
// Everything is loosely typed on the wire; normalization into a Purchase
// happens at materialization time, not here.
type SaleItem struct {
	UTCDate         float64 `json:"utc_date"`
	ArtistName      string  `json:"artist_name"`
	AlbumTitle      string  `json:"album_title"`
	ItemDescription string  `json:"item_description"`
	ItemType        string  `json:"item_type"`
	Country         string  `json:"country"`
	AmountPaid      float64 `json:"amount_paid"`
	ItemPrice       float64 `json:"item_price"`
	AmountPaidUSD   float64 `json:"amount_paid_usd"`
	URL             string  `json:"url"`
}

// Sale is the outer feed envelope: one sale event carrying one or more items.
type Sale struct {
	UTCDate float64    `json:"utc_date"`
	Items   []SaleItem `json:"items"`
}

// Purchase is the canonical, normalized form of one materialized sale item.
// Created once per materialized log entry and never mutated afterwards.
type Purchase struct {
	ArtistName      string
	AlbumTitle      string
	ItemDescription string
	ItemType        string
	Country         string
	URL             string
	AmountPaid      int
	ItemPrice       int
	AmountPaidUSD   int
	UTCDate         int64   // floored epoch seconds
	UTCDateRaw      float64 // original fractional timestamp, used for ordering and keying
}

// Key returns the storage key for the purchase. The artist name has already
// had ':' escaped to ';' during normalization, so the key separator stays
// unambiguous. Exact duplicates (same artist, same raw date) collapse onto
// the same key.
func (p *Purchase) Key() string {
	return "purchase:" + p.ArtistName + "." + strconv.FormatFloat(p.UTCDateRaw, 'f', -1, 64)
}

// TimeSeriesPoint is one (timestamp, value) sample of the sales time series.
// The value is the number of purchases observed in one producer cycle.
type TimeSeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// TopSellers is the leaderboard read model: parallel series/labels arrays,
// ordered by cumulative USD spend descending.
type TopSellers struct {
	Series []float64 `json:"series"`
	Labels []string  `json:"labels"`
}
