package storage

import (
	"context"

	"coinwatch/internal/domain"
)

// UserStore provides access to users storage.
type UserStore interface {
	// Insert adds a new user. Returns ErrDuplicateKey if the id or email exists.
	Insert(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound if not exists.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Delete removes a user and, as an explicit cascade, every holding
	// whose OwnerID matches. Returns ErrNotFound if the user does not exist.
	Delete(ctx context.Context, id string) error
}

// AssetStore provides access to user_assets storage. The portfolio
// view-model is the only writer; implementations serialize writes but do not
// assume callers fan out concurrent mutations.
type AssetStore interface {
	// Insert adds a new holding. Returns ErrDuplicateKey if the id or the
	// (owner_id, coin_id) pair already exists.
	Insert(ctx context.Context, a *domain.UserAsset) error

	// Update persists a holding's mutable fields (amount, denormalized
	// price). Returns ErrNotFound if the holding does not exist.
	Update(ctx context.Context, a *domain.UserAsset) error

	// Delete removes a holding by id. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a holding by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.UserAsset, error)

	// ListByOwner retrieves all holdings of one user, ordered by creation
	// time ASC.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.UserAsset, error)

	// ListAll retrieves every holding, ordered by creation time ASC.
	ListAll(ctx context.Context) ([]*domain.UserAsset, error)
}

// ValuationStore provides access to the append-only portfolio valuation
// timeseries.
type ValuationStore interface {
	// Insert appends one valuation sample.
	Insert(ctx context.Context, p *domain.ValuationPoint) error

	// ListByOwner retrieves all samples for a user, ordered by timestamp ASC.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.ValuationPoint, error)
}
