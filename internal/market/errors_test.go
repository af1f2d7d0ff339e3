package market

import (
	"context"
	"errors"
	"testing"

	"coinwatch/internal/coingecko"
	"coinwatch/internal/domain"
)

func TestMapError_Taxonomy(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"bad url", coingecko.ErrBadURL, ErrInvalidURL},
		{"status", &coingecko.StatusError{Code: 502}, ErrServerError},
		{"decode", &coingecko.DecodeError{Err: errors.New("eof")}, ErrInvalidData},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.in)
			if !errors.Is(got, tc.want) {
				t.Errorf("mapError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestMapError_UnknownWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	got := mapError(cause)
	if !errors.Is(got, cause) {
		t.Errorf("Expected cause to remain unwrappable, got %v", got)
	}
	for _, sentinel := range []error{ErrInvalidURL, ErrServerError, ErrInvalidData} {
		if errors.Is(got, sentinel) {
			t.Errorf("Unknown error must not map to %v", sentinel)
		}
	}
}

func TestMapError_Nil(t *testing.T) {
	if err := mapError(nil); err != nil {
		t.Errorf("mapError(nil) = %v, want nil", err)
	}
}

func TestChartRepository_PassThroughPreservesOrder(t *testing.T) {
	points := []domain.PricePoint{
		{TimestampMs: 1000, Price: 1.5},
		{TimestampMs: 2000, Price: 2.5},
		{TimestampMs: 3000, Price: 2.0},
	}
	client := &fakeClient{
		marketChart: func(_ context.Context, coinID string, days int) ([]domain.PricePoint, error) {
			if coinID != "bitcoin" || days != 7 {
				t.Errorf("Unexpected args: %s, %d", coinID, days)
			}
			return points, nil
		},
	}
	repo := NewChartRepository(client)

	got, err := repo.GetChartData(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("GetChartData failed: %v", err)
	}
	for i := range points {
		if got[i] != points[i] {
			t.Errorf("Point %d mismatch: got %+v, want %+v", i, got[i], points[i])
		}
	}
}

func TestChartRepository_MapsErrors(t *testing.T) {
	client := &fakeClient{
		marketChart: func(_ context.Context, coinID string, days int) ([]domain.PricePoint, error) {
			return nil, &coingecko.DecodeError{Err: errors.New("bad shape")}
		},
	}
	repo := NewChartRepository(client)

	_, err := repo.GetChartData(context.Background(), "bitcoin", 30)
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("Expected ErrInvalidData, got %v", err)
	}
}
