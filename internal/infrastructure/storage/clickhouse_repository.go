package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
)

// ClickHouseRepository implements the PurchaseArchive interface using
// ClickHouse as the backend. It provides durable, append-only storage of
// materialized purchases for offline analytics; the live dashboard never
// reads from it.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

var _ repository.PurchaseArchive = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS purchase_events (
			artist_name String,
			album_title String,
			item_description String,
			item_type String,
			country String,
			url String,
			amount_paid Int64,
			item_price Int64,
			amount_paid_usd Int64,
			utc_date DateTime,
			utc_date_raw Float64,
			archived_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (artist_name, utc_date)
	`)
}

// ArchivePurchase appends one materialized purchase. Async insert keeps the
// archive write off the materialization hot path.
func (r *ClickHouseRepository) ArchivePurchase(ctx context.Context, p *model.Purchase) error {
	query := `
		INSERT INTO purchase_events (
			artist_name, album_title, item_description, item_type, country, url,
			amount_paid, item_price, amount_paid_usd, utc_date, utc_date_raw
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, false,
		p.ArtistName,
		p.AlbumTitle,
		p.ItemDescription,
		p.ItemType,
		p.Country,
		p.URL,
		int64(p.AmountPaid),
		int64(p.ItemPrice),
		int64(p.AmountPaidUSD),
		time.Unix(p.UTCDate, 0).UTC(),
		p.UTCDateRaw,
	)
}

// PurchasesSince retrieves archived purchases at or after the given epoch
// seconds, ordered by time. Useful for rebuilding derived state after a reset.
func (r *ClickHouseRepository) PurchasesSince(ctx context.Context, since int64) ([]*model.Purchase, error) {
	query := `
		SELECT artist_name, album_title, item_description, item_type, country, url,
		       amount_paid, item_price, amount_paid_usd, utc_date, utc_date_raw
		FROM purchase_events
		WHERE utc_date >= fromUnixTimestamp(?)
		ORDER BY utc_date
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Purchase
	for rows.Next() {
		var (
			p       model.Purchase
			paid    int64
			price   int64
			paidUSD int64
			utcDate time.Time
		)
		if err := rows.Scan(
			&p.ArtistName,
			&p.AlbumTitle,
			&p.ItemDescription,
			&p.ItemType,
			&p.Country,
			&p.URL,
			&paid,
			&price,
			&paidUSD,
			&utcDate,
			&p.UTCDateRaw,
		); err != nil {
			return nil, err
		}
		p.AmountPaid = int(paid)
		p.ItemPrice = int(price)
		p.AmountPaidUSD = int(paidUSD)
		p.UTCDate = utcDate.Unix()
		results = append(results, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Close closes the ClickHouse connection.
func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
