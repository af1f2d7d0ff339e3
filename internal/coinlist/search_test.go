package coinlist

import (
	"context"
	"sync"
	"testing"

	"coinwatch/internal/domain"
)

func rank(n int) *int { return &n }

var searchUniverse = []domain.Coin{
	{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", MarketCapRank: rank(1)},
	{ID: "ethereum", Symbol: "eth", Name: "Ethereum", MarketCapRank: rank(2)},
	{ID: "uniswap", Symbol: "uni", Name: "Uniswap", MarketCapRank: rank(15)},
	{ID: "aave", Symbol: "aave", Name: "Aave DeFi Protocol", MarketCapRank: rank(40)},
	{ID: "fetch-ai", Symbol: "fet", Name: "Fetch AI", MarketCapRank: rank(60)},
	{ID: "aioz", Symbol: "aioz", Name: "AIOZ Network", MarketCapRank: rank(90)},
	{ID: "unranked", Symbol: "unr", Name: "Unranked Token"},
}

func TestSearch_SubstringMatch(t *testing.T) {
	got := Search(searchUniverse, "coin")
	if len(got) != 1 || got[0].ID != "bitcoin" {
		t.Errorf("Search(coin) = %v", ids(got))
	}
}

func TestSearch_SymbolMatch(t *testing.T) {
	// "eth" is a substring of Ethereum and a subsequence of "fetchai".
	got := Search(searchUniverse, "eth")
	if len(got) != 2 {
		t.Errorf("Search(eth) = %v", ids(got))
	}
}

func TestSearch_SubsequenceMatch(t *testing.T) {
	// "btcn" is not a substring of anything but is a subsequence of "bitcoin".
	got := Search(searchUniverse, "btcn")
	if len(got) != 1 || got[0].ID != "bitcoin" {
		t.Errorf("Search(btcn) = %v", ids(got))
	}
}

func TestSearch_CaseAndPunctuationInsensitive(t *testing.T) {
	got := Search(searchUniverse, "FETCH-ai")
	if len(got) != 1 || got[0].ID != "fetch-ai" {
		t.Errorf("Search(FETCH-ai) = %v", ids(got))
	}
}

func TestSearch_EmptyQueryReturnsAll(t *testing.T) {
	got := Search(searchUniverse, "")
	if len(got) != len(searchUniverse) {
		t.Errorf("Empty query returned %d of %d coins", len(got), len(searchUniverse))
	}
}

func TestSearch_NoMatch(t *testing.T) {
	if got := Search(searchUniverse, "zzzzzz"); len(got) != 0 {
		t.Errorf("Expected no matches, got %v", ids(got))
	}
}

func TestFilterByScope_All(t *testing.T) {
	got := FilterByScope(searchUniverse, ScopeAll)
	if len(got) != len(searchUniverse) {
		t.Errorf("ScopeAll returned %d of %d coins", len(got), len(searchUniverse))
	}
}

func TestFilterByScope_Top10(t *testing.T) {
	got := FilterByScope(searchUniverse, ScopeTop10)
	if len(got) > 10 {
		t.Fatalf("ScopeTop10 returned %d coins", len(got))
	}
	// Ordered by rank, unranked coins last.
	for i := 1; i < len(got); i++ {
		if rankOf(got[i-1]) > rankOf(got[i]) {
			t.Errorf("Top10 not rank ordered: %v", ids(got))
		}
	}
	if got[0].ID != "bitcoin" {
		t.Errorf("Expected bitcoin first, got %s", got[0].ID)
	}
}

func TestFilterByScope_DeFi(t *testing.T) {
	got := FilterByScope(searchUniverse, ScopeDeFi)
	if len(got) != 1 || got[0].ID != "aave" {
		t.Errorf("ScopeDeFi = %v", ids(got))
	}
}

func TestFilterByScope_AIWordBoundary(t *testing.T) {
	got := FilterByScope(searchUniverse, ScopeAI)
	// "Fetch AI" matches the standalone word; "AIOZ Network" must not.
	if len(got) != 1 || got[0].ID != "fetch-ai" {
		t.Errorf("ScopeAI = %v", ids(got))
	}
}

func TestFilteredCoins_UniverseLoadedOnce(t *testing.T) {
	var mu sync.Mutex
	topCalls := 0
	repo := &fakeRepo{
		topCoins: func(limit int) ([]domain.Coin, error) {
			mu.Lock()
			topCalls++
			mu.Unlock()
			if limit != UniverseSize {
				t.Errorf("Universe limit = %d, want %d", limit, UniverseSize)
			}
			return searchUniverse, nil
		},
	}
	vm, _ := newTestVM(repo)
	ctx := context.Background()

	vm.SetSearchText("bit")
	if _, err := vm.FilteredCoins(ctx); err != nil {
		t.Fatalf("FilteredCoins failed: %v", err)
	}
	vm.SetSearchText("eth")
	if _, err := vm.FilteredCoins(ctx); err != nil {
		t.Fatalf("FilteredCoins failed: %v", err)
	}

	if topCalls != 1 {
		t.Errorf("Expected the universe to load once, got %d loads", topCalls)
	}
}

func TestFilteredCoins_ScopeAndQueryCompose(t *testing.T) {
	repo := &fakeRepo{
		topCoins: func(limit int) ([]domain.Coin, error) {
			return searchUniverse, nil
		},
	}
	vm, _ := newTestVM(repo)

	vm.SetScope(ScopeTop10)
	vm.SetSearchText("ether")

	got, err := vm.FilteredCoins(context.Background())
	if err != nil {
		t.Fatalf("FilteredCoins failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ethereum" {
		t.Errorf("FilteredCoins = %v", ids(got))
	}
}

func ids(coins []domain.Coin) []string {
	out := make([]string, len(coins))
	for i, c := range coins {
		out[i] = c.ID
	}
	return out
}
