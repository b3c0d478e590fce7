// Package costs predicts the scan footprint of a query before execution:
// rows, bytes and a proportional monetary cost. Estimates are static
// arithmetic over configured density constants and never touch row data,
// which makes the dry-run path trivially side-effect free.
package costs

import (
	"fmt"

	"market-analytics-lab/internal/domain"
)

// Pricing defaults. PricePerByte mirrors on-demand warehouse pricing of
// $7 per scanned TiB.
const (
	DefaultRowsPerEntityDay = 25
	DefaultAvgRowBytes      = 120
	DefaultPricePerByte     = 7.0 / (1 << 40)
)

// BudgetExceededError reports an estimate above the caller's ceiling.
// The computation is refused before any partition scan starts.
type BudgetExceededError struct {
	Query     domain.QueryName
	Estimated float64
	BudgetUSD float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("query %s: estimated cost $%.6f exceeds budget $%.6f",
		e.Query, e.Estimated, e.BudgetUSD)
}

// Estimator converts a requested date range and entity filter into a
// CostEstimate. Monotonic by construction: rows grow linearly with range
// width and entity count, so widening a range or removing a filter never
// decreases the estimate.
type Estimator struct {
	RowsPerEntityDay int
	AvgRowBytes      int
	PricePerByte     float64
}

// NewEstimator returns an estimator with defaults filled in for zero-valued
// constants.
func NewEstimator(rowsPerEntityDay, avgRowBytes int, pricePerByte float64) *Estimator {
	e := &Estimator{
		RowsPerEntityDay: rowsPerEntityDay,
		AvgRowBytes:      avgRowBytes,
		PricePerByte:     pricePerByte,
	}
	if e.RowsPerEntityDay <= 0 {
		e.RowsPerEntityDay = DefaultRowsPerEntityDay
	}
	if e.AvgRowBytes <= 0 {
		e.AvgRowBytes = DefaultAvgRowBytes
	}
	if e.PricePerByte <= 0 {
		e.PricePerByte = DefaultPricePerByte
	}
	return e
}

// Estimate computes the scan footprint for params. totalEntities is the
// store's full entity count, used when the filter is empty.
func (e *Estimator) Estimate(params domain.QueryParams, totalEntities int) domain.CostEstimate {
	entities := len(params.Entities)
	if entities == 0 {
		entities = totalEntities
	}

	rows := int64(params.Days()) * int64(e.RowsPerEntityDay) * int64(entities)
	bytes := rows * int64(e.AvgRowBytes)
	return domain.CostEstimate{
		RowsScanned: rows,
		Bytes:       bytes,
		CostUSD:     float64(bytes) * e.PricePerByte,
	}
}

// CheckBudget refuses estimates above the params budget. A zero budget
// means unlimited.
func (e *Estimator) CheckBudget(query domain.QueryName, params domain.QueryParams, est domain.CostEstimate) error {
	if params.MaxCostUSD > 0 && est.CostUSD > params.MaxCostUSD {
		return &BudgetExceededError{
			Query:     query,
			Estimated: est.CostUSD,
			BudgetUSD: params.MaxCostUSD,
		}
	}
	return nil
}
