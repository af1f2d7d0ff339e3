package market

import (
	"context"
	"sync"
	"time"

	"coinwatch/internal/domain"
	"coinwatch/internal/observability"
)

// GlobalTTL is the freshness window of the global market snapshot.
const GlobalTTL = time.Minute

// GlobalRepository is a single-slot cached wrapper around the global-stats
// fetch. Failures propagate: the snapshot feeds a header display that
// degrades to "no data" upstream, so there is no stale-on-error fallback.
type GlobalRepository struct {
	client  MarketClient
	metrics *observability.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	cached *cacheEntry[domain.GlobalMarketSnapshot]
}

// NewGlobalRepository creates a new GlobalRepository. Metrics may be nil.
func NewGlobalRepository(client MarketClient, metrics *observability.Metrics) *GlobalRepository {
	return &GlobalRepository{
		client:  client,
		metrics: metrics,
		now:     time.Now,
	}
}

// GetGlobalData returns the global market snapshot, cached for GlobalTTL.
// A successful fetch is cached unconditionally, empty maps included:
// emptiness is a content concern for the caller, not a cache-validity one.
func (r *GlobalRepository) GetGlobalData(ctx context.Context) (*domain.GlobalMarketSnapshot, error) {
	r.mu.RLock()
	if r.cached.fresh(r.now(), GlobalTTL) {
		snapshot := r.cached.data
		r.mu.RUnlock()
		if r.metrics != nil {
			r.metrics.CacheHits.WithLabelValues(resourceGlobal).Inc()
		}
		return &snapshot, nil
	}
	r.mu.RUnlock()
	if r.metrics != nil {
		r.metrics.CacheMisses.WithLabelValues(resourceGlobal).Inc()
	}

	snapshot, err := r.client.GlobalData(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	r.mu.Lock()
	r.cached = &cacheEntry[domain.GlobalMarketSnapshot]{data: *snapshot, fetchedAt: r.now()}
	r.mu.Unlock()
	return snapshot, nil
}

// Invalidate drops the cached snapshot.
func (r *GlobalRepository) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.Invalidations.WithLabelValues(resourceGlobal).Inc()
	}
}
