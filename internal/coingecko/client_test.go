package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestClient_ListCoins(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" || q.Get("page") != "2" || q.Get("per_page") != "50" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"http://img","current_price":60000.5,"market_cap_rank":1,"price_change_24h":-120.5,"price_change_percentage_24h":-0.2},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3000,"market_cap_rank":2}
		]`))
	})

	coins, err := client.ListCoins(context.Background(), 2, 50)
	if err != nil {
		t.Fatalf("ListCoins failed: %v", err)
	}
	if len(coins) != 2 {
		t.Fatalf("Expected 2 coins, got %d", len(coins))
	}
	if coins[0].ID != "bitcoin" {
		t.Errorf("ID = %s, want bitcoin", coins[0].ID)
	}
	if !coins[0].CurrentPrice.Equal(decimal.NewFromFloat(60000.5)) {
		t.Errorf("CurrentPrice = %s, want 60000.5", coins[0].CurrentPrice)
	}
	if coins[0].MarketCapRank == nil || *coins[0].MarketCapRank != 1 {
		t.Errorf("MarketCapRank = %v, want 1", coins[0].MarketCapRank)
	}
	if coins[1].PriceChange24h != nil {
		t.Errorf("Expected absent price change to stay nil, got %v", coins[1].PriceChange24h)
	}
}

func TestClient_ListCoinsServerError(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListCoins(context.Background(), 1, 50)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Errorf("Code = %d, want 429", statusErr.Code)
	}
}

func TestClient_ListCoinsDecodeError(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	})

	_, err := client.ListCoins(context.Background(), 1, 50)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected DecodeError, got %v", err)
	}
}

func TestClient_GlobalData(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/global" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{
			"total_market_cap":{"usd":2.5e12,"eur":2.3e12},
			"total_volume":{"usd":9.1e10},
			"market_cap_change_percentage_24h_usd":-1.25
		}}`))
	})

	snapshot, err := client.GlobalData(context.Background())
	if err != nil {
		t.Fatalf("GlobalData failed: %v", err)
	}
	if snapshot.TotalMarketCap["usd"] != 2.5e12 {
		t.Errorf("TotalMarketCap[usd] = %v", snapshot.TotalMarketCap["usd"])
	}
	if snapshot.MarketCapChangePct24hUSD == nil || *snapshot.MarketCapChangePct24hUSD != -1.25 {
		t.Errorf("MarketCapChangePct24hUSD = %v", snapshot.MarketCapChangePct24hUSD)
	}
}

func TestClient_MarketChart(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("days") != "7" {
			t.Errorf("Unexpected days: %s", r.URL.Query().Get("days"))
		}
		w.Write([]byte(`{"prices":[[1700000000000,42000.1],[1700000060000,42100.2],[1700000120000]],"market_caps":[],"total_volumes":[]}`))
	})

	points, err := client.MarketChart(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("MarketChart failed: %v", err)
	}
	// The short pair is skipped.
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0].TimestampMs != 1700000000000 || points[0].Price != 42000.1 {
		t.Errorf("Point 0 = %+v", points[0])
	}
	if points[1].TimestampMs != 1700000060000 || points[1].Price != 42100.2 {
		t.Errorf("Point 1 = %+v", points[1])
	}
}

func TestClient_SimplePrices(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("ids") != "bitcoin,ethereum" {
			t.Errorf("Unexpected ids: %s", r.URL.Query().Get("ids"))
		}
		w.Write([]byte(`{"bitcoin":{"usd":60000},"ethereum":{"usd":3000.25},"tether":{"eur":0.9}}`))
	})

	prices, err := client.SimplePrices(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("SimplePrices failed: %v", err)
	}
	// tether carries no usd quote and is dropped.
	if len(prices) != 2 {
		t.Fatalf("Expected 2 prices, got %d", len(prices))
	}
	if !prices["ethereum"].Equal(decimal.NewFromFloat(3000.25)) {
		t.Errorf("ethereum = %s, want 3000.25", prices["ethereum"])
	}
}
