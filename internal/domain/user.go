package domain

import "github.com/shopspring/decimal"

// User is a locally persisted record of an externally authenticated user.
// The ID comes from the identity provider; email is unique per record.
// A user owns its holdings: deleting the record cascades to every UserAsset
// with a matching OwnerID (an explicit step in the stores, not a graph
// traversal).
type User struct {
	ID        string `json:"id"`         // identity-provider id, PRIMARY KEY
	Email     string `json:"email"`      // unique
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // Unix timestamp in milliseconds
}

// UserAsset is one holding of one coin by one user. Coin fields are a
// denormalized copy taken at creation time; CoinPrice is refreshed by the
// portfolio price-refresh paths. At most one holding exists per
// (OwnerID, CoinID) pair.
type UserAsset struct {
	ID         string          `json:"id"`       // PRIMARY KEY
	OwnerID    string          `json:"owner_id"` // non-owning back-reference to User.ID
	CoinID     string          `json:"coin_id"`
	CoinSymbol string          `json:"coin_symbol"`
	CoinName   string          `json:"coin_name"`
	CoinImage  string          `json:"coin_image"`
	CoinPrice  decimal.Decimal `json:"coin_price"`
	Amount     decimal.Decimal `json:"amount"`     // invariant: > 0
	CreatedAt  int64           `json:"created_at"` // Unix timestamp in milliseconds
	UpdatedAt  int64           `json:"updated_at"`
}

// Value returns the current worth of the holding.
func (a *UserAsset) Value() decimal.Decimal {
	return a.CoinPrice.Mul(a.Amount)
}
