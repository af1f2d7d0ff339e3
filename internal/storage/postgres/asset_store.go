package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// AssetStore implements storage.AssetStore using PostgreSQL.
// NUMERIC columns round-trip through decimal.Decimal's sql.Scanner/Valuer.
type AssetStore struct {
	pool *Pool
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(pool *Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// Insert adds a new holding. Returns ErrDuplicateKey if the id or the
// (owner_id, coin_id) pair already exists.
func (s *AssetStore) Insert(ctx context.Context, a *domain.UserAsset) error {
	if a == nil || a.ID == "" || a.OwnerID == "" || a.CoinID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO user_assets (
			id, owner_id, coin_id, coin_symbol, coin_name, coin_image,
			coin_price, amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	createdAt := a.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.OwnerID,
		a.CoinID,
		a.CoinSymbol,
		a.CoinName,
		a.CoinImage,
		a.CoinPrice.String(),
		a.Amount.String(),
		createdAt,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Update persists a holding's mutable fields. Returns ErrNotFound if missing.
func (s *AssetStore) Update(ctx context.Context, a *domain.UserAsset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE user_assets
		SET amount = $2, coin_price = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		a.ID,
		a.Amount.String(),
		a.CoinPrice.String(),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a holding by id. Returns ErrNotFound if not exists.
func (s *AssetStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a holding by id. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(ctx context.Context, id string) (*domain.UserAsset, error) {
	query := selectAssets + ` WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	a, err := scanAsset(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset by id: %w", err)
	}
	return a, nil
}

// ListByOwner retrieves all holdings of one user, ordered by creation time ASC.
func (s *AssetStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.UserAsset, error) {
	query := selectAssets + ` WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets by owner: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// ListAll retrieves every holding, ordered by creation time ASC.
func (s *AssetStore) ListAll(ctx context.Context) ([]*domain.UserAsset, error) {
	query := selectAssets + ` ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all assets: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

const selectAssets = `
	SELECT id, owner_id, coin_id, coin_symbol, coin_name, coin_image,
	       coin_price, amount, created_at, updated_at
	FROM user_assets`

// rowScanner abstracts pgx.Row and pgx.Rows for scanAsset.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.UserAsset, error) {
	var a domain.UserAsset
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.CoinID,
		&a.CoinSymbol,
		&a.CoinName,
		&a.CoinImage,
		&a.CoinPrice,
		&a.Amount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAssets(rows pgx.Rows) ([]*domain.UserAsset, error) {
	var result []*domain.UserAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return result, nil
}
