// Package market wraps the CoinGecko client with time-boxed caches,
// stale-on-error fallback and manual invalidation hooks. Cache state is
// private per repository instance; instances are safe for concurrent use.
package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coinwatch/internal/domain"
	"coinwatch/internal/observability"
)

// Cache TTLs. Listing and ranking data move slowly; spot prices do not.
const (
	CoinPagesTTL = 30 * time.Minute
	TopCoinsTTL  = 30 * time.Minute
	PricesTTL    = time.Minute

	// topCoinsPageSize is the page size used while accumulating the
	// top-coins aggregate.
	topCoinsPageSize = 250
)

// MarketClient is the slice of the CoinGecko client the repositories need.
type MarketClient interface {
	ListCoins(ctx context.Context, page, perPage int) ([]domain.Coin, error)
	GlobalData(ctx context.Context) (*domain.GlobalMarketSnapshot, error)
	MarketChart(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error)
	SimplePrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// CoinRepository caches paged coin listings, the top-coins aggregate and
// batched spot prices, each with its own TTL.
type CoinRepository struct {
	client  MarketClient
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	pages    map[int]*cacheEntry[[]domain.Coin]
	topCoins *cacheEntry[[]domain.Coin]
	prices   *cacheEntry[map[string]decimal.Decimal]
}

// NewCoinRepository creates a new CoinRepository. Metrics may be nil.
func NewCoinRepository(client MarketClient, metrics *observability.Metrics, logger *slog.Logger) *CoinRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoinRepository{
		client:  client,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		pages:   make(map[int]*cacheEntry[[]domain.Coin]),
	}
}

// ListCoins returns one page of the coin listing. A fresh cache entry for
// the page is returned without a network call; on fetch failure any cached
// entry for the page, fresh or stale, is preferred over the error.
func (r *CoinRepository) ListCoins(ctx context.Context, page, pageSize int) ([]domain.Coin, error) {
	r.mu.RLock()
	entry := r.pages[page]
	if entry.fresh(r.now(), CoinPagesTTL) {
		coins := copyCoins(entry.data)
		r.mu.RUnlock()
		r.countHit(resourceCoinsPage)
		return coins, nil
	}
	r.mu.RUnlock()
	r.countMiss(resourceCoinsPage)

	coins, err := r.client.ListCoins(ctx, page, pageSize)
	if err != nil {
		r.mu.RLock()
		entry := r.pages[page]
		r.mu.RUnlock()
		if entry != nil {
			r.countStale(resourceCoinsPage)
			r.logger.Warn("coin page fetch failed, serving stale cache",
				"page", page, "error", err)
			return copyCoins(entry.data), nil
		}
		return nil, mapError(err)
	}

	if len(coins) > 0 {
		r.mu.Lock()
		r.pages[page] = &cacheEntry[[]domain.Coin]{data: copyCoins(coins), fetchedAt: r.now()}
		r.mu.Unlock()
	}
	return coins, nil
}

// TopCoins returns the first limit coins by market cap. On a cache miss it
// accumulates sequential pages until the count reaches limit or the universe
// is exhausted, then caches exactly the truncated result.
func (r *CoinRepository) TopCoins(ctx context.Context, limit int) ([]domain.Coin, error) {
	r.mu.RLock()
	if r.topCoins.fresh(r.now(), TopCoinsTTL) {
		coins := copyCoins(r.topCoins.data)
		r.mu.RUnlock()
		r.countHit(resourceTopCoins)
		return coins, nil
	}
	r.mu.RUnlock()
	r.countMiss(resourceTopCoins)

	var all []domain.Coin
	page := 1
	for len(all) < limit {
		coins, err := r.client.ListCoins(ctx, page, topCoinsPageSize)
		if err != nil {
			r.mu.Lock()
			if r.topCoins != nil {
				cached := copyCoins(r.topCoins.data)
				r.mu.Unlock()
				r.countStale(resourceTopCoins)
				r.logger.Warn("top coins fetch failed, serving stale cache", "error", err)
				return cached, nil
			}
			// No fallback: drop any partial aggregate and propagate.
			r.topCoins = nil
			r.mu.Unlock()
			return nil, mapError(err)
		}
		if len(coins) == 0 {
			break // end of universe
		}
		all = append(all, coins...)
		page++
	}

	if len(all) > limit {
		all = all[:limit]
	}

	r.mu.Lock()
	r.topCoins = &cacheEntry[[]domain.Coin]{data: copyCoins(all), fetchedAt: r.now()}
	r.mu.Unlock()
	return all, nil
}

// SimplePrices returns a batch of USD spot prices. Non-positive upstream
// values are dropped before caching. The cached batch is keyed as a single
// slot: a fresh batch is returned regardless of the requested id set.
func (r *CoinRepository) SimplePrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	r.mu.RLock()
	if r.prices.fresh(r.now(), PricesTTL) {
		prices := copyPrices(r.prices.data)
		r.mu.RUnlock()
		r.countHit(resourcePrices)
		return prices, nil
	}
	r.mu.RUnlock()
	r.countMiss(resourcePrices)

	fetched, err := r.client.SimplePrices(ctx, ids)
	if err != nil {
		r.mu.RLock()
		entry := r.prices
		r.mu.RUnlock()
		if entry != nil {
			r.countStale(resourcePrices)
			r.logger.Warn("price fetch failed, serving stale cache", "error", err)
			return copyPrices(entry.data), nil
		}
		return nil, mapError(err)
	}

	validated := make(map[string]decimal.Decimal, len(fetched))
	for id, price := range fetched {
		if price.IsPositive() {
			validated[id] = price
		}
	}

	r.mu.Lock()
	r.prices = &cacheEntry[map[string]decimal.Decimal]{data: copyPrices(validated), fetchedAt: r.now()}
	r.mu.Unlock()
	return validated, nil
}

// InvalidatePrices drops the cached price batch.
func (r *CoinRepository) InvalidatePrices() {
	r.mu.Lock()
	r.prices = nil
	r.mu.Unlock()
	r.countInvalidation(resourcePrices)
}

// InvalidateTopCoins drops the cached top-coins aggregate.
func (r *CoinRepository) InvalidateTopCoins() {
	r.mu.Lock()
	r.topCoins = nil
	r.mu.Unlock()
	r.countInvalidation(resourceTopCoins)
}

// InvalidateAllCoinsPages drops every cached listing page.
func (r *CoinRepository) InvalidateAllCoinsPages() {
	r.mu.Lock()
	r.pages = make(map[int]*cacheEntry[[]domain.Coin])
	r.mu.Unlock()
	r.countInvalidation(resourceCoinsPage)
}

func (r *CoinRepository) countHit(resource string) {
	if r.metrics != nil {
		r.metrics.CacheHits.WithLabelValues(resource).Inc()
	}
}

func (r *CoinRepository) countMiss(resource string) {
	if r.metrics != nil {
		r.metrics.CacheMisses.WithLabelValues(resource).Inc()
	}
}

func (r *CoinRepository) countStale(resource string) {
	if r.metrics != nil {
		r.metrics.StaleFallbacks.WithLabelValues(resource).Inc()
	}
}

func (r *CoinRepository) countInvalidation(resource string) {
	if r.metrics != nil {
		r.metrics.Invalidations.WithLabelValues(resource).Inc()
	}
}

// copyCoins returns a defensive copy so callers cannot mutate cache state.
func copyCoins(coins []domain.Coin) []domain.Coin {
	out := make([]domain.Coin, len(coins))
	copy(out, coins)
	return out
}

func copyPrices(prices map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(prices))
	for id, p := range prices {
		out[id] = p
	}
	return out
}
