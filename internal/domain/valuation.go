package domain

// ValuationPoint is one sample of a user's total portfolio value, recorded
// after a successful price refresh. Corresponds to portfolio_valuations in
// ClickHouse.
type ValuationPoint struct {
	OwnerID     string  `json:"owner_id"`
	TimestampMs int64   `json:"timestamp_ms"` // Unix timestamp in milliseconds
	TotalValue  float64 `json:"total_value"`
	Holdings    int     `json:"holdings"` // number of holdings at sample time
}
