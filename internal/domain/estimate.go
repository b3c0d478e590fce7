package domain

// CostEstimate predicts the scan footprint of a query before execution.
// Estimates are monotonic: widening the date range or removing an entity
// filter never decreases any field.
type CostEstimate struct {
	RowsScanned int64
	Bytes       int64
	CostUSD     float64
}
