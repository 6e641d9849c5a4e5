package dto

import (
	"strconv"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
)

// PurchaseDTO is the JSON form of a purchase, used both for the stored JSON
// document and for websocket/HTTP payloads. Field names match the feed's.
type PurchaseDTO struct {
	ArtistName      string  `json:"artist_name"`
	AlbumTitle      string  `json:"album_title"`
	ItemDescription string  `json:"item_description"`
	ItemType        string  `json:"item_type"`
	Country         string  `json:"country"`
	URL             string  `json:"url"`
	AmountPaid      int     `json:"amount_paid"`
	ItemPrice       int     `json:"item_price"`
	AmountPaidUSD   int     `json:"amount_paid_usd"`
	UTCDate         int64   `json:"utc_date"`
	UTCDateRaw      float64 `json:"utc_date_raw"`
}

// ToModel converts a PurchaseDTO to a domain model
func (dto *PurchaseDTO) ToModel() *model.Purchase {
	return &model.Purchase{
		ArtistName:      dto.ArtistName,
		AlbumTitle:      dto.AlbumTitle,
		ItemDescription: dto.ItemDescription,
		ItemType:        dto.ItemType,
		Country:         dto.Country,
		URL:             dto.URL,
		AmountPaid:      dto.AmountPaid,
		ItemPrice:       dto.ItemPrice,
		AmountPaidUSD:   dto.AmountPaidUSD,
		UTCDate:         dto.UTCDate,
		UTCDateRaw:      dto.UTCDateRaw,
	}
}

// FromModel creates a PurchaseDTO from a domain model
func FromModel(p *model.Purchase) *PurchaseDTO {
	return &PurchaseDTO{
		ArtistName:      p.ArtistName,
		AlbumTitle:      p.AlbumTitle,
		ItemDescription: p.ItemDescription,
		ItemType:        p.ItemType,
		Country:         p.Country,
		URL:             p.URL,
		AmountPaid:      p.AmountPaid,
		ItemPrice:       p.ItemPrice,
		AmountPaidUSD:   p.AmountPaidUSD,
		UTCDate:         p.UTCDate,
		UTCDateRaw:      p.UTCDateRaw,
	}
}

func FromModels(purchases []*model.Purchase) []*PurchaseDTO {
	dtos := make([]*PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = FromModel(p)
	}
	return dtos
}

// StreamFields flattens a raw sale item into the string-only field map the
// append log transports. Numbers are rendered as strings and absent values
// become the literal "null", so the materializer sees exactly the stringly
// shape the feed produces.
func StreamFields(item *model.SaleItem) map[string]string {
	return map[string]string{
		"artist_name":      nullable(item.ArtistName),
		"album_title":      nullable(item.AlbumTitle),
		"item_description": nullable(item.ItemDescription),
		"item_type":        nullable(item.ItemType),
		"country":          nullable(item.Country),
		"url":              nullable(item.URL),
		"utc_date":         strconv.FormatFloat(item.UTCDate, 'f', -1, 64),
		"amount_paid":      strconv.FormatFloat(item.AmountPaid, 'f', -1, 64),
		"item_price":       strconv.FormatFloat(item.ItemPrice, 'f', -1, 64),
		"amount_paid_usd":  strconv.FormatFloat(item.AmountPaidUSD, 'f', -1, 64),
	}
}

func nullable(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

// DashboardUpdate is one websocket push. Only the populated keys are sent.
type DashboardUpdate struct {
	Purchases       []*PurchaseDTO          `json:"purchases,omitempty"`
	TopSellers      *model.TopSellers       `json:"topSellers,omitempty"`
	PurchaseHistory []model.TimeSeriesPoint `json:"purchaseHistory,omitempty"`
}
