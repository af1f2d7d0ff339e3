package domain

// FormModeKind discriminates the asset form variant.
type FormModeKind int

const (
	FormIdle FormModeKind = iota
	FormAdd
	FormEdit
)

// FormMode is the tagged add-vs-edit state of the asset form. Transitions
// replace the whole value; fields are never mutated piecemeal.
type FormMode struct {
	Kind  FormModeKind
	Coin  *Coin      // set iff Kind == FormAdd
	Asset *UserAsset // set iff Kind == FormEdit
}

// IdleMode returns the idle variant.
func IdleMode() FormMode {
	return FormMode{Kind: FormIdle}
}

// AddMode returns the add variant for a coin.
func AddMode(c Coin) FormMode {
	return FormMode{Kind: FormAdd, Coin: &c}
}

// EditMode returns the edit variant for an existing holding.
func EditMode(a UserAsset) FormMode {
	return FormMode{Kind: FormEdit, Asset: &a}
}
