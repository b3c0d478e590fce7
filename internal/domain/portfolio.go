package domain

// PositionState is the running position per (portfolio_id, symbol), folded
// from transactions in timestamp order. This is a running-sum model, not
// lot-based accounting: cost basis can go negative when sells exceed recorded
// buys, and the ledger only accumulates, it does not validate short-selling.
type PositionState struct {
	PortfolioID string
	Symbol      string
	Quantity    float64
	CostBasis   float64 // BUY adds amount+fees, SELL subtracts amount-fees
	Dividends   float64 // cumulative DIVIDEND amounts, never touches cost basis
}

// SectorCount is one (sector, transaction count) pair of a portfolio
// breakdown. Breakdowns are capped at MaxSectorBreakdown entries and kept in
// first-seen aggregation order; callers wanting sorted output sort themselves.
type SectorCount struct {
	Sector string
	Count  int
}

// MaxSectorBreakdown caps the per-portfolio sector breakdown length.
const MaxSectorBreakdown = 10

// PortfolioSummary represents per-portfolio derived metrics over the folded
// transaction range.
type PortfolioSummary struct {
	PortfolioID      string
	TotalInvested    float64 // sum of BUY amounts+fees
	TotalDivested    float64 // sum of SELL amounts-fees
	TotalDividends   float64
	TotalFees        float64
	DividendYieldPct *float64 // total_dividends / total_invested * 100
	FeeRatioPct      *float64 // total_fees / (total_invested + total_divested) * 100
	Sectors          []SectorCount
}
