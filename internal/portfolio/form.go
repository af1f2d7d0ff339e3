package portfolio

import (
	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// Form state. The asset form is either idle, adding a coin, or editing an
// existing holding; opening a form replaces whatever was open before.

// OpenAddForm switches the form to the add variant for coin.
func (vm *ViewModel) OpenAddForm(coin domain.Coin) {
	vm.mu.Lock()
	vm.form = domain.AddMode(coin)
	vm.mu.Unlock()
}

// OpenEditForm switches the form to the edit variant for the holding with
// assetID. The holding must exist and belong to the current user.
func (vm *ViewModel) OpenEditForm(assetID string) error {
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
	vm.form = domain.EditMode(*holding)
	return nil
}

// CloseForm returns the form to idle.
func (vm *ViewModel) CloseForm() {
	vm.mu.Lock()
	vm.form = domain.IdleMode()
	vm.mu.Unlock()
}

// Form returns the current form state.
func (vm *ViewModel) Form() domain.FormMode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.form
}
