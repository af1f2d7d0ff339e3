package memory

import (
	"context"
	"sync"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu     sync.RWMutex
	users  map[string]*domain.User // keyed by id
	assets *AssetStore             // cascade-delete target, may be nil
}

// NewUserStore creates a new in-memory user store. The asset store is used
// for the explicit cascade on Delete and may be nil when holdings are not
// tracked.
func NewUserStore(assets *AssetStore) *UserStore {
	return &UserStore{
		users:  make(map[string]*domain.User),
		assets: assets,
	}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// Insert adds a new user. Returns ErrDuplicateKey if the id or email exists.
func (s *UserStore) Insert(_ context.Context, u *domain.User) error {
	if u == nil || u.ID == "" || u.Email == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return storage.ErrDuplicateKey
		}
	}

	userCopy := *u
	s.users[u.ID] = &userCopy
	return nil
}

// GetByID retrieves a user by id. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// GetByEmail retrieves a user by email. Returns ErrNotFound if not exists.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			userCopy := *u
			return &userCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Delete removes a user and cascades to its holdings.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.users[id]; !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(s.users, id)
	s.mu.Unlock()

	if s.assets != nil {
		return s.assets.deleteByOwner(ctx, id)
	}
	return nil
}
