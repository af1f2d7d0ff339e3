package coinlist

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"coinwatch/internal/domain"
)

// Scope narrows the searchable universe.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeTop10
	ScopeDeFi
	ScopeAI
)

var aiWordPattern = regexp.MustCompile(`(?i)\bAI\b`)

// SetSearchText updates the query applied by FilteredCoins.
func (vm *ViewModel) SetSearchText(text string) {
	vm.mu.Lock()
	vm.searchText = text
	vm.mu.Unlock()
}

// SetScope updates the scope applied by FilteredCoins.
func (vm *ViewModel) SetScope(scope Scope) {
	vm.mu.Lock()
	vm.scope = scope
	vm.mu.Unlock()
}

// FilteredCoins applies the current scope and query to the cached search
// universe, loading the universe on first need. Concurrent first calls share
// one underlying fetch.
func (vm *ViewModel) FilteredCoins(ctx context.Context) ([]domain.Coin, error) {
	universe, err := vm.ensureUniverse(ctx)
	if err != nil {
		return nil, err
	}

	vm.mu.Lock()
	text, scope := vm.searchText, vm.scope
	vm.mu.Unlock()

	return Search(FilterByScope(universe, scope), text), nil
}

// ensureUniverse lazily loads the top-UniverseSize snapshot used for
// filtering. singleflight guards against duplicate concurrent loads.
func (vm *ViewModel) ensureUniverse(ctx context.Context) ([]domain.Coin, error) {
	vm.universeMu.RLock()
	universe := vm.universe
	vm.universeMu.RUnlock()
	if universe != nil {
		return universe, nil
	}

	v, err, _ := vm.universeGroup.Do("universe", func() (any, error) {
		coins, err := vm.repo.TopCoins(ctx, UniverseSize)
		if err != nil {
			return nil, err
		}
		vm.universeMu.Lock()
		vm.universe = coins
		vm.universeMu.Unlock()
		return coins, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Coin), nil
}

// FilterByScope narrows coins to the given scope. Pure and synchronous.
func FilterByScope(coins []domain.Coin, scope Scope) []domain.Coin {
	switch scope {
	case ScopeTop10:
		ranked := make([]domain.Coin, len(coins))
		copy(ranked, coins)
		sort.SliceStable(ranked, func(i, j int) bool {
			return rankOf(ranked[i]) < rankOf(ranked[j])
		})
		if len(ranked) > 10 {
			ranked = ranked[:10]
		}
		return ranked
	case ScopeDeFi:
		var out []domain.Coin
		for _, c := range coins {
			if strings.Contains(strings.ToLower(c.Name), "defi") {
				out = append(out, c)
			}
		}
		return out
	case ScopeAI:
		var out []domain.Coin
		for _, c := range coins {
			if aiWordPattern.MatchString(c.Name) {
				out = append(out, c)
			}
		}
		return out
	default:
		return coins
	}
}

// rankOf treats a missing market-cap rank as last.
func rankOf(c domain.Coin) int {
	if c.MarketCapRank == nil {
		return int(^uint(0) >> 1)
	}
	return *c.MarketCapRank
}

// Search filters coins by a fuzzy match against name and symbol. An empty
// query returns the input unchanged.
func Search(coins []domain.Coin, query string) []domain.Coin {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return coins
	}

	var out []domain.Coin
	for _, c := range coins {
		if fuzzyMatch(strings.ToLower(c.Name), query) ||
			fuzzyMatch(strings.ToLower(c.Symbol), query) {
			out = append(out, c)
		}
	}
	return out
}

// fuzzyMatch accepts a substring match, an alphanumeric-normalized prefix
// match, or a normalized subsequence match, in that order.
func fuzzyMatch(text, pattern string) bool {
	if strings.Contains(text, pattern) {
		return true
	}

	normText := normalize(text)
	normPattern := normalize(pattern)
	if strings.HasPrefix(normText, normPattern) {
		return true
	}

	i := 0
	for _, ch := range normPattern {
		rest := strings.IndexRune(normText[i:], ch)
		if rest < 0 {
			return false
		}
		i += rest + 1
	}
	return true
}

// normalize strips everything but lowercase letters and digits.
func normalize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
