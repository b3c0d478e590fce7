// Package ledger folds portfolio transaction streams into running positions
// and per-portfolio performance summaries. Running-sum cost basis only, no
// lot tracking: over-selling drives positions negative and is reported as a
// warning, never a failure.
package ledger

import (
	"fmt"
	"sort"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/window"
)

// InconsistencyWarning flags a position whose folded quantity or cost basis
// went negative. Attached to results, it never aborts the fold.
type InconsistencyWarning struct {
	PortfolioID string
	Symbol      string
	Quantity    float64
	CostBasis   float64
}

func (w *InconsistencyWarning) String() string {
	return fmt.Sprintf("inconsistent position %s/%s: quantity=%.2f cost_basis=%.2f",
		w.PortfolioID, w.Symbol, w.Quantity, w.CostBasis)
}

// Result carries the folded ledger state for a transaction range.
type Result struct {
	Positions []*domain.PositionState
	Summaries []*domain.PortfolioSummary
	Warnings  []*InconsistencyWarning
}

type positionKey struct {
	portfolioID string
	symbol      string
}

// Fold replays transactions in (timestamp, insertion order) and accumulates
// positions and portfolio summaries.
//
// Fold rules per transaction type:
//   - BUY: quantity += q, cost_basis += total_amount + fees
//   - SELL: quantity -= q, cost_basis -= total_amount - fees
//   - DIVIDEND: dividends += total_amount, quantity and cost basis untouched
//
// Summary formulas:
//   - dividend_yield_pct = total_dividends / total_invested * 100, NULL when
//     nothing was invested
//   - fee_ratio_pct = total_fees / (total_invested + total_divested) * 100
//
// Sector breakdown counts transactions per sector in first-seen order,
// capped at domain.MaxSectorBreakdown sectors per portfolio.
func Fold(txs []*domain.Transaction) *Result {
	if len(txs) == 0 {
		return &Result{}
	}

	sorted := make([]*domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	positions := make(map[positionKey]*domain.PositionState)
	summaries := make(map[string]*domain.PortfolioSummary)
	sectors := make(map[string][]domain.SectorCount)
	var order []positionKey
	var portfolioOrder []string

	for _, tx := range sorted {
		key := positionKey{portfolioID: tx.PortfolioID, symbol: tx.Symbol}
		pos, ok := positions[key]
		if !ok {
			pos = &domain.PositionState{PortfolioID: tx.PortfolioID, Symbol: tx.Symbol}
			positions[key] = pos
			order = append(order, key)
		}
		sum, ok := summaries[tx.PortfolioID]
		if !ok {
			sum = &domain.PortfolioSummary{PortfolioID: tx.PortfolioID}
			summaries[tx.PortfolioID] = sum
			portfolioOrder = append(portfolioOrder, tx.PortfolioID)
		}

		switch tx.Type {
		case domain.TransactionBuy:
			pos.Quantity += tx.Quantity
			pos.CostBasis += tx.TotalAmount + tx.Fees
			sum.TotalInvested += tx.TotalAmount + tx.Fees
		case domain.TransactionSell:
			pos.Quantity -= tx.Quantity
			pos.CostBasis -= tx.TotalAmount - tx.Fees
			sum.TotalDivested += tx.TotalAmount - tx.Fees
		case domain.TransactionDividend:
			pos.Dividends += tx.TotalAmount
			sum.TotalDividends += tx.TotalAmount
		}
		sum.TotalFees += tx.Fees

		if tx.Sector != "" {
			sectors[tx.PortfolioID] = bumpSector(sectors[tx.PortfolioID], tx.Sector)
		}
	}

	result := &Result{}
	for _, key := range order {
		pos := positions[key]
		result.Positions = append(result.Positions, pos)
		if pos.Quantity < 0 || pos.CostBasis < 0 {
			result.Warnings = append(result.Warnings, &InconsistencyWarning{
				PortfolioID: pos.PortfolioID,
				Symbol:      pos.Symbol,
				Quantity:    pos.Quantity,
				CostBasis:   pos.CostBasis,
			})
		}
	}
	for _, id := range portfolioOrder {
		sum := summaries[id]
		sum.DividendYieldPct = window.Round2Ptr(
			window.SafeDivide(sum.TotalDividends*100, sum.TotalInvested))
		sum.FeeRatioPct = window.Round2Ptr(
			window.SafeDivide(sum.TotalFees*100, sum.TotalInvested+sum.TotalDivested))
		sum.Sectors = sectors[id]
		result.Summaries = append(result.Summaries, sum)
	}

	return result
}

// bumpSector increments the sector's count, appending it in first-seen order
// until the cap is reached. Transactions in sectors beyond the cap are not
// counted.
func bumpSector(counts []domain.SectorCount, sector string) []domain.SectorCount {
	for i := range counts {
		if counts[i].Sector == sector {
			counts[i].Count++
			return counts
		}
	}
	if len(counts) >= domain.MaxSectorBreakdown {
		return counts
	}
	return append(counts, domain.SectorCount{Sector: sector, Count: 1})
}
