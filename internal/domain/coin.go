package domain

import "github.com/shopspring/decimal"

// Coin is an immutable market snapshot of a single coin as returned by the
// listings endpoint. Identity is the ID; two snapshots with the same ID may
// carry different prices depending on fetch time.
type Coin struct {
	ID                       string           `json:"id"`
	Symbol                   string           `json:"symbol"`
	Name                     string           `json:"name"`
	Image                    string           `json:"image"`
	CurrentPrice             decimal.Decimal  `json:"current_price"`
	MarketCapRank            *int             `json:"market_cap_rank,omitempty"`
	PriceChange24h           *decimal.Decimal `json:"price_change_24h,omitempty"`
	PriceChangePercentage24h *decimal.Decimal `json:"price_change_percentage_24h,omitempty"`
}

// PricePoint is one (timestamp, price) sample of a historical price series.
// Points are produced only as elements of a chronologically ordered slice
// returned per chart query.
type PricePoint struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Price       float64 `json:"price"`
}

// GlobalMarketSnapshot aggregates the whole market. Maps are keyed by
// currency code and may be nil when the upstream omits them; a nil map is a
// content concern for the caller, not a cache-validity concern.
type GlobalMarketSnapshot struct {
	TotalMarketCap           map[string]float64 `json:"total_market_cap,omitempty"`
	TotalVolume              map[string]float64 `json:"total_volume,omitempty"`
	MarketCapChangePct24hUSD *float64           `json:"market_cap_change_percentage_24h_usd,omitempty"`
}
