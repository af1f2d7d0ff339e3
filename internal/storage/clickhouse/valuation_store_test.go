package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage/clickhouse"
)

func TestValuationStore_InsertAndListByOwner(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewValuationStore(conn)

	points := []*domain.ValuationPoint{
		{OwnerID: "user-1", TimestampMs: 1700000002000, TotalValue: 125000.5, Holdings: 2},
		{OwnerID: "user-1", TimestampMs: 1700000001000, TotalValue: 120000, Holdings: 2},
		{OwnerID: "user-2", TimestampMs: 1700000001500, TotalValue: 500, Holdings: 1},
	}
	for _, p := range points {
		require.NoError(t, store.Insert(ctx, p))
	}

	got, err := store.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Timestamp ascending, other owners excluded.
	assert.Equal(t, int64(1700000001000), got[0].TimestampMs)
	assert.Equal(t, int64(1700000002000), got[1].TimestampMs)
	assert.Equal(t, 125000.5, got[1].TotalValue)
	assert.Equal(t, 2, got[1].Holdings)
}

func TestValuationStore_EmptyOwner(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewValuationStore(conn)

	got, err := store.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}
