package clickhouse

import (
	"context"
	"fmt"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// ValuationStore implements storage.ValuationStore using ClickHouse.
// The table is append-only; one row per (owner, refresh time).
type ValuationStore struct {
	conn *Conn
}

// NewValuationStore creates a new ValuationStore.
func NewValuationStore(conn *Conn) *ValuationStore {
	return &ValuationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ValuationStore = (*ValuationStore)(nil)

// Insert appends one valuation sample.
func (s *ValuationStore) Insert(ctx context.Context, p *domain.ValuationPoint) error {
	if p == nil || p.OwnerID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO portfolio_valuations (
			owner_id, timestamp_ms, total_value, holdings
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	if err := batch.Append(
		p.OwnerID, uint64(p.TimestampMs), p.TotalValue, uint32(p.Holdings),
	); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListByOwner retrieves all samples for a user, ordered by timestamp ASC.
func (s *ValuationStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.ValuationPoint, error) {
	query := `
		SELECT owner_id, timestamp_ms, total_value, holdings
		FROM portfolio_valuations
		WHERE owner_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query valuations: %w", err)
	}
	defer rows.Close()

	var result []*domain.ValuationPoint
	for rows.Next() {
		var (
			p           domain.ValuationPoint
			timestampMs uint64
			holdings    uint32
		)
		if err := rows.Scan(&p.OwnerID, &timestampMs, &p.TotalValue, &holdings); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		p.TimestampMs = int64(timestampMs)
		p.Holdings = int(holdings)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate valuations: %w", err)
	}

	return result, nil
}
