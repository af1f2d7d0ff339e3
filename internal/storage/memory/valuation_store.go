package memory

import (
	"context"
	"sort"
	"sync"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// ValuationStore is an in-memory implementation of storage.ValuationStore.
type ValuationStore struct {
	mu   sync.RWMutex
	data []*domain.ValuationPoint
}

// NewValuationStore creates a new in-memory valuation store.
func NewValuationStore() *ValuationStore {
	return &ValuationStore{}
}

// Compile-time interface check.
var _ storage.ValuationStore = (*ValuationStore)(nil)

// Insert appends one valuation sample.
func (s *ValuationStore) Insert(_ context.Context, p *domain.ValuationPoint) error {
	if p == nil || p.OwnerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pointCopy := *p
	s.data = append(s.data, &pointCopy)
	return nil
}

// ListByOwner retrieves all samples for a user, ordered by timestamp ASC.
func (s *ValuationStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.ValuationPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ValuationPoint
	for _, p := range s.data {
		if p.OwnerID == ownerID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}
