package market

import (
	"context"

	"coinwatch/internal/domain"
)

// ChartRepository is a pass-through to the client for historical price
// series. Each query is parameterized by coin and range and assumed rare
// enough that a cache would seldom hit; errors still go through the shared
// mapping step. Point ordering is preserved exactly as returned.
type ChartRepository struct {
	client MarketClient
}

// NewChartRepository creates a new ChartRepository.
func NewChartRepository(client MarketClient) *ChartRepository {
	return &ChartRepository{client: client}
}

// GetChartData returns the price series for one coin over the given number
// of days.
func (r *ChartRepository) GetChartData(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error) {
	points, err := r.client.MarketChart(ctx, coinID, days)
	if err != nil {
		return nil, mapError(err)
	}
	return points, nil
}
