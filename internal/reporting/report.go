package reporting

import (
	"time"

	"market-analytics-lab/internal/domain"
)

// Report is the run summary: what data was analyzed, what each query
// produced and what it would cost.
type Report struct {
	GeneratedAt time.Time
	From        time.Time
	To          time.Time

	DataSummary DataSummary

	// One section per executed query, in AllQueries order.
	Sections []QuerySection
}

// DataSummary describes the dataset under analysis.
type DataSummary struct {
	Symbols      int
	Portfolios   int
	Bars         int
	Trades       int
	Transactions int
}

// QuerySection summarizes one query run.
type QuerySection struct {
	Query    domain.QueryName
	Rows     int
	Estimate domain.CostEstimate
	Elapsed  time.Duration

	// Warnings carries data-quality and ledger-consistency findings.
	Warnings []string

	// Err is set when the query failed (budget refusal, store error);
	// the report still renders so partial runs stay inspectable.
	Err error
}
