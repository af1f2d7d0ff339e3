// Package portfolio owns the current user's holdings in memory and keeps
// them consistent with persisted storage and live prices. The view-model is
// the single writer of the asset store; its mutex is the serialization
// point.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coinwatch/internal/domain"
	"coinwatch/internal/observability"
	"coinwatch/internal/storage"
)

// RefreshDebounce is the minimum gap between two background price
// refreshes. The window is consumed before the fetch is attempted, so a
// failed attempt still blocks the next one; ForceRefreshPrices bypasses it.
const RefreshDebounce = time.Minute

// View-model errors.
var (
	// ErrNoUser is returned when an operation requires a signed-in user.
	ErrNoUser = errors.New("no current user")

	// ErrInvalidAmount is returned for amounts that would leave a holding
	// at zero or below.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNotOwner is returned when a holding belongs to a different user.
	ErrNotOwner = errors.New("holding belongs to another user")
)

// PriceSource is the slice of the coin repository the view-model needs.
type PriceSource interface {
	SimplePrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
	InvalidatePrices()
}

// ViewModel is the authoritative in-memory list of the current user's
// holdings.
type ViewModel struct {
	assets     storage.AssetStore
	valuations storage.ValuationStore // may be nil
	prices     PriceSource
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu          sync.Mutex
	currentUser *domain.User
	holdings    []*domain.UserAsset
	lastRefresh time.Time
	form        domain.FormMode
}

// NewViewModel creates a new portfolio view-model. The valuation store and
// metrics may be nil.
func NewViewModel(
	assets storage.AssetStore,
	valuations storage.ValuationStore,
	prices PriceSource,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *ViewModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewModel{
		assets:     assets,
		valuations: valuations,
		prices:     prices,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetCurrentUser binds the view-model to a user and loads their holdings.
// A nil user clears the holdings list.
func (vm *ViewModel) SetCurrentUser(ctx context.Context, u *domain.User) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.currentUser = u
	vm.form = domain.IdleMode()
	return vm.reload(ctx)
}

// CurrentUser returns the bound user, or nil.
func (vm *ViewModel) CurrentUser() *domain.User {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.currentUser == nil {
		return nil
	}
	u := *vm.currentUser
	return &u
}

// LoadAssets replaces the in-memory holdings with the current user's
// persisted holdings. Without a user it clears the list.
func (vm *ViewModel) LoadAssets(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.reload(ctx)
}

// reload refreshes vm.holdings from storage. Callers hold vm.mu.
// The owner-indexed query is preferred; when it comes back empty the
// full-table scan filtered by owner is the authority, so a holding missed
// by a partial write still surfaces.
func (vm *ViewModel) reload(ctx context.Context) error {
	if vm.currentUser == nil {
		vm.holdings = nil
		return nil
	}

	owned, err := vm.assets.ListByOwner(ctx, vm.currentUser.ID)
	if err != nil {
		return fmt.Errorf("load holdings: %w", err)
	}
	if len(owned) == 0 {
		all, err := vm.assets.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("scan holdings: %w", err)
		}
		for _, a := range all {
			if a.OwnerID == vm.currentUser.ID {
				owned = append(owned, a)
			}
		}
	}
	vm.holdings = owned
	return nil
}

// Holdings returns a copy of the current in-memory holdings, in load order.
func (vm *ViewModel) Holdings() []domain.UserAsset {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	out := make([]domain.UserAsset, len(vm.holdings))
	for i, a := range vm.holdings {
		out[i] = *a
	}
	return out
}

// TotalValue is the sum of amount × current price across holdings.
func (vm *ViewModel) TotalValue() decimal.Decimal {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.totalValueLocked()
}

func (vm *ViewModel) totalValueLocked() decimal.Decimal {
	total := decimal.Zero
	for _, a := range vm.holdings {
		total = total.Add(a.Value())
	}
	return total
}

// AddAsset adds amount of a coin to the portfolio. An existing holding for
// the coin grows by amount and takes the coin's current price; otherwise a
// new holding is created. The in-memory list is reloaded from storage so
// both converge before returning.
func (vm *ViewModel) AddAsset(ctx context.Context, coin domain.Coin, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.currentUser == nil {
		return ErrNoUser
	}

	var existing *domain.UserAsset
	for _, a := range vm.holdings {
		if a.CoinID == coin.ID {
			existing = a
			break
		}
	}

	if existing != nil {
		updated := *existing
		updated.Amount = existing.Amount.Add(amount)
		updated.CoinPrice = coin.CurrentPrice
		if err := vm.assets.Update(ctx, &updated); err != nil {
			return fmt.Errorf("update holding: %w", err)
		}
	} else {
		nowMs := vm.now().UnixMilli()
		asset := &domain.UserAsset{
			ID:         vm.newID(),
			OwnerID:    vm.currentUser.ID,
			CoinID:     coin.ID,
			CoinSymbol: coin.Symbol,
			CoinName:   coin.Name,
			CoinImage:  coin.Image,
			CoinPrice:  coin.CurrentPrice,
			Amount:     amount,
			CreatedAt:  nowMs,
			UpdatedAt:  nowMs,
		}
		if err := vm.assets.Insert(ctx, asset); err != nil {
			return fmt.Errorf("insert holding: %w", err)
		}
	}

	vm.countMutation("add")
	return vm.reload(ctx)
}

// UpdateAsset replaces a holding's amount. The holding must belong to the
// current user; amounts that would leave the holding at zero or below are
// rejected, not clamped.
func (vm *ViewModel) UpdateAsset(ctx context.Context, assetID string, newAmount decimal.Decimal) error {
	if !newAmount.IsPositive() {
		return ErrInvalidAmount
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.currentUser == nil {
		return ErrNoUser
	}

	holding := vm.findLocked(assetID)
	if holding == nil {
		return storage.ErrNotFound
	}
	if holding.OwnerID != vm.currentUser.ID {
		return ErrNotOwner
	}

	updated := *holding
	updated.Amount = newAmount
	if err := vm.assets.Update(ctx, &updated); err != nil {
		return fmt.Errorf("update holding: %w", err)
	}
	holding.Amount = newAmount
	holding.UpdatedAt = vm.now().UnixMilli()
	vm.countMutation("update")
	return nil
}

// RemoveAsset deletes a holding of the current user.
func (vm *ViewModel) RemoveAsset(ctx context.Context, assetID string) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.currentUser == nil {
		return ErrNoUser
	}

	holding := vm.findLocked(assetID)
	if holding == nil {
		return storage.ErrNotFound
	}
	if holding.OwnerID != vm.currentUser.ID {
		return ErrNotOwner
	}

	if err := vm.assets.Delete(ctx, assetID); err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	for i, a := range vm.holdings {
		if a.ID == assetID {
			vm.holdings = append(vm.holdings[:i], vm.holdings[i+1:]...)
			break
		}
	}
	vm.countMutation("remove")
	return nil
}

// ClearAll removes every holding of the current user.
func (vm *ViewModel) ClearAll(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.currentUser == nil {
		return ErrNoUser
	}

	for _, a := range vm.holdings {
		if err := vm.assets.Delete(ctx, a.ID); err != nil {
			return fmt.Errorf("delete holding %s: %w", a.ID, err)
		}
	}
	vm.holdings = nil
	return nil
}

// RefreshPrices overwrites each holding's denormalized price from the
// batched price cache. Calls within RefreshDebounce of the previous attempt
// are no-ops, and failures are logged rather than surfaced: this backs a
// background refresh the user never sees fail.
func (vm *ViewModel) RefreshPrices(ctx context.Context) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.now().Sub(vm.lastRefresh) < RefreshDebounce {
		if vm.metrics != nil {
			vm.metrics.RefreshesDebounced.Inc()
		}
		return
	}

	if err := vm.refreshLocked(ctx, "debounced"); err != nil {
		vm.logger.Warn("background price refresh failed", "error", err)
	}
}

// ForceRefreshPrices bypasses the debounce window, invalidates the price
// cache so a stale batch cannot satisfy the fetch, and propagates failure:
// this backs a user-visible pull-to-refresh.
func (vm *ViewModel) ForceRefreshPrices(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.lastRefresh = time.Time{}
	vm.prices.InvalidatePrices()
	return vm.refreshLocked(ctx, "forced")
}

// refreshLocked performs the price refresh. Callers hold vm.mu. The
// debounce timestamp is written before the fetch: a failed attempt still
// consumes the window.
func (vm *ViewModel) refreshLocked(ctx context.Context, mode string) error {
	vm.lastRefresh = vm.now()

	if vm.currentUser == nil || len(vm.holdings) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(vm.holdings))
	ids := make([]string, 0, len(vm.holdings))
	for _, a := range vm.holdings {
		if _, ok := seen[a.CoinID]; !ok {
			seen[a.CoinID] = struct{}{}
			ids = append(ids, a.CoinID)
		}
	}

	prices, err := vm.prices.SimplePrices(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	for _, a := range vm.holdings {
		price, ok := prices[a.CoinID]
		if !ok {
			continue
		}
		a.CoinPrice = price
		a.UpdatedAt = vm.now().UnixMilli()
		if err := vm.assets.Update(ctx, a); err != nil {
			return fmt.Errorf("persist refreshed price: %w", err)
		}
	}

	if vm.metrics != nil {
		vm.metrics.PriceRefreshes.WithLabelValues(mode).Inc()
	}
	vm.recordValuationLocked(ctx)
	return nil
}

// recordValuationLocked appends a valuation history sample. Best effort:
// history is telemetry, a write failure must not fail the refresh.
func (vm *ViewModel) recordValuationLocked(ctx context.Context) {
	if vm.valuations == nil || vm.currentUser == nil {
		return
	}

	total, _ := vm.totalValueLocked().Float64()
	point := &domain.ValuationPoint{
		OwnerID:     vm.currentUser.ID,
		TimestampMs: vm.now().UnixMilli(),
		TotalValue:  total,
		Holdings:    len(vm.holdings),
	}
	if err := vm.valuations.Insert(ctx, point); err != nil {
		vm.logger.Warn("record valuation failed", "error", err)
		return
	}
	if vm.metrics != nil {
		vm.metrics.ValuationsRecorded.Inc()
	}
}

// ValuationHistory returns the current user's valuation samples, oldest
// first.
func (vm *ViewModel) ValuationHistory(ctx context.Context) ([]*domain.ValuationPoint, error) {
	vm.mu.Lock()
	user := vm.currentUser
	vm.mu.Unlock()

	if user == nil {
		return nil, ErrNoUser
	}
	if vm.valuations == nil {
		return nil, nil
	}
	return vm.valuations.ListByOwner(ctx, user.ID)
}

func (vm *ViewModel) findLocked(assetID string) *domain.UserAsset {
	for _, a := range vm.holdings {
		if a.ID == assetID {
			return a
		}
	}
	return nil
}

func (vm *ViewModel) countMutation(op string) {
	if vm.metrics != nil {
		vm.metrics.HoldingsMutations.WithLabelValues(op).Inc()
	}
}
