package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// AssetStore is an in-memory implementation of storage.AssetStore.
type AssetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.UserAsset // keyed by asset id
}

// NewAssetStore creates a new in-memory asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		data: make(map[string]*domain.UserAsset),
	}
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// Insert adds a new holding. Returns ErrDuplicateKey if the id or the
// (owner_id, coin_id) pair already exists.
func (s *AssetStore) Insert(_ context.Context, a *domain.UserAsset) error {
	if a == nil || a.ID == "" || a.OwnerID == "" || a.CoinID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.data {
		if existing.OwnerID == a.OwnerID && existing.CoinID == a.CoinID {
			return storage.ErrDuplicateKey
		}
	}

	assetCopy := *a
	if assetCopy.CreatedAt == 0 {
		assetCopy.CreatedAt = time.Now().UnixMilli()
	}
	s.data[a.ID] = &assetCopy
	return nil
}

// Update persists a holding's mutable fields. Returns ErrNotFound if missing.
func (s *AssetStore) Update(_ context.Context, a *domain.UserAsset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[a.ID]
	if !ok {
		return storage.ErrNotFound
	}
	existing.Amount = a.Amount
	existing.CoinPrice = a.CoinPrice
	existing.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// Delete removes a holding by id. Returns ErrNotFound if not exists.
func (s *AssetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// GetByID retrieves a holding by id. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(_ context.Context, id string) (*domain.UserAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	assetCopy := *a
	return &assetCopy, nil
}

// ListByOwner retrieves all holdings of one user, ordered by creation time ASC.
func (s *AssetStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.UserAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.UserAsset
	for _, a := range s.data {
		if a.OwnerID == ownerID {
			assetCopy := *a
			result = append(result, &assetCopy)
		}
	}
	sortAssets(result)
	return result, nil
}

// ListAll retrieves every holding, ordered by creation time ASC.
func (s *AssetStore) ListAll(_ context.Context) ([]*domain.UserAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.UserAsset, 0, len(s.data))
	for _, a := range s.data {
		assetCopy := *a
		result = append(result, &assetCopy)
	}
	sortAssets(result)
	return result, nil
}

// deleteByOwner removes every holding of one user. Used by the user store's
// cascade.
func (s *AssetStore) deleteByOwner(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.data {
		if a.OwnerID == ownerID {
			delete(s.data, id)
		}
	}
	return nil
}

func sortAssets(assets []*domain.UserAsset) {
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt != assets[j].CreatedAt {
			return assets[i].CreatedAt < assets[j].CreatedAt
		}
		return assets[i].ID < assets[j].ID
	})
}
