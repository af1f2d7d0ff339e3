package market

import "time"

// cacheEntry is a (payload, fetched-at) pair. Staleness never evicts an
// entry; it is retained as a fallback source until explicitly invalidated or
// overwritten by a newer successful fetch.
type cacheEntry[T any] struct {
	data      T
	fetchedAt time.Time
}

// fresh reports whether the entry is within its TTL at the given instant.
func (e *cacheEntry[T]) fresh(now time.Time, ttl time.Duration) bool {
	return e != nil && now.Sub(e.fetchedAt) < ttl
}

// Metric label values for the cache resources.
const (
	resourceCoinsPage = "coins_page"
	resourceTopCoins  = "top_coins"
	resourcePrices    = "prices"
	resourceGlobal    = "global"
)
