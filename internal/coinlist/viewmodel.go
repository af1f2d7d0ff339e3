// Package coinlist owns the coin listing screen state: the
// loading/error/empty/content machine, infinite-scroll continuation,
// retry-with-backoff on initial load and search over a cached coin universe.
package coinlist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"coinwatch/internal/domain"
	"coinwatch/internal/market"
	"coinwatch/internal/observability"
)

// Policy constants.
const (
	// PageSize is the listing page size.
	PageSize = 50

	// maxAttempts bounds the initial-load attempts; retries back off
	// linearly at retryStep per retry already taken.
	maxAttempts = 3
	retryStep   = 500 * time.Millisecond

	// readAheadThreshold triggers load-more when the anchor is within the
	// last N displayed items.
	readAheadThreshold = 3

	// UniverseSize is how many coins the search universe holds.
	UniverseSize = 500
)

// errSuperseded aborts a load whose generation is no longer current.
var errSuperseded = errors.New("load superseded")

// StateKind discriminates the screen state.
type StateKind int

const (
	StateLoading StateKind = iota
	StateError
	StateEmpty
	StateContent
)

// State is the tagged screen state. Message is set iff Kind == StateError;
// Coins is set iff Kind == StateContent.
type State struct {
	Kind    StateKind
	Message string
	Coins   []domain.Coin
}

// Repository is the slice of the coin repository the view-model needs.
type Repository interface {
	ListCoins(ctx context.Context, page, pageSize int) ([]domain.Coin, error)
	TopCoins(ctx context.Context, limit int) ([]domain.Coin, error)
}

// ViewModel drives the coin listing. All mutable state sits behind one
// mutex; network calls run with the mutex released and results are applied
// only after a generation check, so a superseded load can never regress the
// state a newer load has set.
type ViewModel struct {
	repo    Repository
	metrics *observability.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	state       State
	page        int
	generation  uint64
	loadingMore bool
	noMorePages bool
	searchText  string
	scope       Scope

	universeGroup singleflight.Group
	universeMu    sync.RWMutex
	universe      []domain.Coin
}

// NewViewModel creates a new coin list view-model. Metrics may be nil.
func NewViewModel(repo Repository, metrics *observability.Metrics, logger *slog.Logger) *ViewModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewModel{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		sleep:   sleepCtx,
		state:   State{Kind: StateLoading},
	}
}

// State returns the current screen state. The coin slice is copied so the
// caller cannot alias view-model state.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	s := vm.state
	if s.Coins != nil {
		coins := make([]domain.Coin, len(s.Coins))
		copy(coins, s.Coins)
		s.Coins = coins
	}
	return s
}

// Load starts over from page 1. Any in-flight load or load-more is
// cooperatively abandoned: its result will fail the generation check and be
// discarded. The fetch is retried up to maxAttempts times with linear
// backoff before the state transitions to error.
func (vm *ViewModel) Load(ctx context.Context) {
	vm.mu.Lock()
	vm.generation++
	gen := vm.generation
	vm.page = 1
	vm.noMorePages = false
	vm.state = State{Kind: StateLoading}
	vm.mu.Unlock()

	coins, err := vm.fetchFirstPage(ctx, gen)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.generation {
		if vm.metrics != nil {
			vm.metrics.StaleDiscards.Inc()
		}
		return
	}
	switch {
	case errors.Is(err, errSuperseded):
		// A newer load owns the state now.
	case err != nil:
		vm.state = State{Kind: StateError, Message: errorMessage(err)}
	case len(coins) == 0:
		vm.state = State{Kind: StateEmpty}
	default:
		vm.state = State{Kind: StateContent, Coins: coins}
	}
}

// Reload is Load under the name the refresh gesture binds to.
func (vm *ViewModel) Reload(ctx context.Context) {
	vm.Load(ctx)
}

// fetchFirstPage fetches page 1 with retries, checking for cancellation and
// supersession before each attempt.
func (vm *ViewModel) fetchFirstPage(ctx context.Context, gen uint64) ([]domain.Coin, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if vm.metrics != nil {
				vm.metrics.LoadRetries.Inc()
			}
			if err := vm.sleep(ctx, time.Duration(attempt-1)*retryStep); err != nil {
				return nil, err
			}
		}

		vm.mu.Lock()
		current := vm.generation
		vm.mu.Unlock()
		if current != gen {
			return nil, errSuperseded
		}

		coins, err := vm.repo.ListCoins(ctx, 1, PageSize)
		if err == nil {
			return coins, nil
		}
		lastErr = err
		vm.logger.Warn("coin list load attempt failed",
			"attempt", attempt, "error", err)
	}
	return nil, lastErr
}

// LoadMoreIfNeeded fetches the next page when the anchor coin sits within
// the read-ahead threshold of the end of the displayed list. Failures and
// empty pages silently mark the end: the user already has visible content.
func (vm *ViewModel) LoadMoreIfNeeded(ctx context.Context, anchor domain.Coin) {
	vm.mu.Lock()
	if vm.state.Kind != StateContent || vm.loadingMore || vm.noMorePages {
		vm.mu.Unlock()
		return
	}
	idx := -1
	for i, c := range vm.state.Coins {
		if c.ID == anchor.ID {
			idx = i
			break
		}
	}
	if idx < 0 || idx < len(vm.state.Coins)-readAheadThreshold {
		vm.mu.Unlock()
		return
	}
	vm.loadingMore = true
	vm.page++
	page := vm.page
	gen := vm.generation
	vm.mu.Unlock()

	coins, err := vm.repo.ListCoins(ctx, page, PageSize)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.loadingMore = false
	if gen != vm.generation {
		// A full reload superseded this page; drop it.
		return
	}
	if err != nil {
		vm.noMorePages = true
		vm.logger.Debug("load more failed, assuming end of listing",
			"page", page, "error", err)
		return
	}
	if len(coins) == 0 {
		vm.noMorePages = true
		return
	}
	if vm.state.Kind == StateContent {
		// Append against the live list, not a captured snapshot.
		vm.state.Coins = append(vm.state.Coins, coins...)
	}
}

// errorMessage renders a mapped repository error for display.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, market.ErrInvalidURL):
		return "Invalid API URL."
	case errors.Is(err, market.ErrServerError):
		return "There was an error with the server. Please try again later"
	case errors.Is(err, market.ErrInvalidData):
		return "The coin data is invalid. Please try again later"
	default:
		return "Unexpected error: " + err.Error()
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
