package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinwatch/internal/coingecko"
	"coinwatch/internal/domain"
)

func newTestGlobalRepo(client MarketClient) (*GlobalRepository, *fakeClock) {
	repo := NewGlobalRepository(client, nil)
	clock := newFakeClock()
	repo.now = clock.now
	return repo, clock
}

func TestGlobalRepository_CachesSnapshot(t *testing.T) {
	client := &fakeClient{
		globalData: func(_ context.Context) (*domain.GlobalMarketSnapshot, error) {
			return &domain.GlobalMarketSnapshot{
				TotalMarketCap: map[string]float64{"usd": 2.5e12},
			}, nil
		},
	}
	repo, _ := newTestGlobalRepo(client)
	ctx := context.Background()

	if _, err := repo.GetGlobalData(ctx); err != nil {
		t.Fatalf("GetGlobalData failed: %v", err)
	}
	snapshot, err := repo.GetGlobalData(ctx)
	if err != nil {
		t.Fatalf("GetGlobalData (cached) failed: %v", err)
	}

	if client.globalCalls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", client.globalCalls)
	}
	if snapshot.TotalMarketCap["usd"] != 2.5e12 {
		t.Errorf("Unexpected market cap: %v", snapshot.TotalMarketCap["usd"])
	}
}

func TestGlobalRepository_ExpiredSnapshotRefetches(t *testing.T) {
	client := &fakeClient{
		globalData: func(_ context.Context) (*domain.GlobalMarketSnapshot, error) {
			return &domain.GlobalMarketSnapshot{}, nil
		},
	}
	repo, clock := newTestGlobalRepo(client)
	ctx := context.Background()

	if _, err := repo.GetGlobalData(ctx); err != nil {
		t.Fatalf("GetGlobalData failed: %v", err)
	}

	clock.advance(GlobalTTL + time.Second)
	if _, err := repo.GetGlobalData(ctx); err != nil {
		t.Fatalf("GetGlobalData after TTL failed: %v", err)
	}

	if client.globalCalls != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", client.globalCalls)
	}
}

func TestGlobalRepository_ErrorPropagatesDespiteStaleEntry(t *testing.T) {
	healthy := true
	client := &fakeClient{
		globalData: func(_ context.Context) (*domain.GlobalMarketSnapshot, error) {
			if !healthy {
				return nil, &coingecko.StatusError{Code: 500}
			}
			return &domain.GlobalMarketSnapshot{}, nil
		},
	}
	repo, clock := newTestGlobalRepo(client)
	ctx := context.Background()

	if _, err := repo.GetGlobalData(ctx); err != nil {
		t.Fatalf("GetGlobalData failed: %v", err)
	}

	clock.advance(GlobalTTL + time.Second)
	healthy = false

	_, err := repo.GetGlobalData(ctx)
	if !errors.Is(err, ErrServerError) {
		t.Errorf("Expected ErrServerError, got %v", err)
	}
}

func TestGlobalRepository_Invalidate(t *testing.T) {
	client := &fakeClient{
		globalData: func(_ context.Context) (*domain.GlobalMarketSnapshot, error) {
			return &domain.GlobalMarketSnapshot{}, nil
		},
	}
	repo, _ := newTestGlobalRepo(client)
	ctx := context.Background()

	if _, err := repo.GetGlobalData(ctx); err != nil {
		t.Fatalf("GetGlobalData failed: %v", err)
	}

	repo.Invalidate()

	if _, err := repo.GetGlobalData(ctx); err != nil {
		t.Fatalf("GetGlobalData after invalidate failed: %v", err)
	}
	if client.globalCalls != 2 {
		t.Errorf("Expected refetch after invalidation, got %d upstream calls", client.globalCalls)
	}
}
