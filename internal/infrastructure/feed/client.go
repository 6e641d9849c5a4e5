// Package feed fetches purchase events from the external sales feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis-developer/beats-by-redis/internal/domain/model"
)

// Page is one feed response: the sale events of a time window plus an echo of
// the window end.
type Page struct {
	StartDate float64      `json:"start_date"`
	EndDate   float64      `json:"end_date"`
	Purchases []model.Sale `json:"purchases"`
}

// Source produces pages of sale events. Implemented by Client and by the
// synthetic generator used in demo runs.
type Source interface {
	// Fetch returns the sale events whose feed timestamp is >= since.
	// A since of zero means "whatever the feed currently has".
	Fetch(ctx context.Context, since float64) (*Page, error)
}

// Client is a stateless HTTP client for the sales feed.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Source = (*Client)(nil)

// Fetch performs one read-only feed call. Failures come back as errors, never
// panics; callers treat a failed fetch as "zero events this cycle".
func (c *Client) Fetch(ctx context.Context, since float64) (*Page, error) {
	endpoint := c.baseURL
	if since > 0 {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid feed url: %w", err)
		}
		q := u.Query()
		q.Set("start_date", strconv.FormatFloat(since, 'f', -1, 64))
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	// The feed may return events older than the requested bound; filter
	// client-side so the contract holds regardless.
	if since > 0 {
		filtered := page.Purchases[:0]
		for _, sale := range page.Purchases {
			if sale.UTCDate >= since {
				filtered = append(filtered, sale)
			}
		}
		page.Purchases = filtered
	}

	return &page, nil
}
