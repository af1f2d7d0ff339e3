// Package coingecko is a thin client for the CoinGecko v3 REST API. It maps
// domain operations to HTTP calls and surfaces transport failures as typed
// errors; caching and retry policy live in the layers above.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinwatch/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	DefaultTimeout = 30 * time.Second
)

// Client performs CoinGecko API calls over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new CoinGecko client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCoins fetches one page of the market listing, ordered by market cap
// descending, priced in USD.
func (c *Client) ListCoins(ctx context.Context, page, perPage int) ([]domain.Coin, error) {
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=%d&sparkline=false",
		c.baseURL, perPage, page)

	var coins []domain.Coin
	if err := c.getJSON(ctx, u, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// globalResponse is the wrapper CoinGecko puts around /global.
type globalResponse struct {
	Data domain.GlobalMarketSnapshot `json:"data"`
}

// GlobalData fetches the global market aggregate.
func (c *Client) GlobalData(ctx context.Context) (*domain.GlobalMarketSnapshot, error) {
	u := c.baseURL + "/global"

	var resp globalResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// marketChartResponse carries the "prices" array of [timestamp_ms, price]
// pairs. Other series in the payload are ignored.
type marketChartResponse struct {
	Prices [][]float64 `json:"prices"`
}

// MarketChart fetches the historical price series for one coin over the
// given number of days. Point order is preserved as returned (chronological).
func (c *Client) MarketChart(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error) {
	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
		c.baseURL, url.PathEscape(coinID), days)

	var resp marketChartResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(resp.Prices))
	for _, pair := range resp.Prices {
		if len(pair) < 2 {
			continue
		}
		points = append(points, domain.PricePoint{
			TimestampMs: int64(pair[0]),
			Price:       pair[1],
		})
	}
	return points, nil
}

// SimplePrices fetches USD spot prices for a batch of coin ids.
func (c *Client) SimplePrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	var resp map[string]map[string]decimal.Decimal
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(resp))
	for id, currencies := range resp {
		if usd, ok := currencies["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}

// getJSON performs one GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadURL, rawURL)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Err: err}
	}

	return nil
}
