package reporting

import (
	"context"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/eventstore"
)

// Generator produces run reports by executing every query variant against
// the engine and summarizing the stored dataset.
type Generator struct {
	store  *eventstore.Store
	engine *engine.Engine
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(store *eventstore.Store, eng *engine.Engine) *Generator {
	return &Generator{
		store:  store,
		engine: eng,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate runs every query over the given range and assembles the report.
// A failing query does not abort the run; its section records the error.
func (g *Generator) Generate(ctx context.Context, params domain.QueryParams) (*Report, map[domain.QueryName]*domain.ResultTable, error) {
	summary, err := g.dataSummary(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		GeneratedAt: g.now(),
		From:        params.From,
		To:          params.To,
		DataSummary: summary,
	}
	tables := make(map[domain.QueryName]*domain.ResultTable, len(domain.AllQueries))

	for _, query := range domain.AllQueries {
		section := QuerySection{Query: query}

		est, err := g.engine.Estimate(ctx, query, params)
		if err != nil {
			section.Err = err
			report.Sections = append(report.Sections, section)
			continue
		}
		section.Estimate = est

		start := g.now()
		table, err := g.engine.Compute(ctx, query, params)
		section.Elapsed = g.now().Sub(start)
		if err != nil {
			section.Err = err
		} else {
			section.Rows = table.NumRows()
			section.Warnings = table.Warnings
			tables[query] = table
		}
		report.Sections = append(report.Sections, section)
	}

	return report, tables, nil
}

func (g *Generator) dataSummary(ctx context.Context, params domain.QueryParams) (DataSummary, error) {
	var s DataSummary

	symbols, err := g.store.Bars.Symbols(ctx)
	if err != nil {
		return s, err
	}
	s.Symbols = len(symbols)

	portfolios, err := g.store.Transactions.Portfolios(ctx)
	if err != nil {
		return s, err
	}
	s.Portfolios = len(portfolios)

	bars, err := g.store.Bars.GetByDateRange(ctx, nil, params.From, params.To)
	if err != nil {
		return s, err
	}
	s.Bars = len(bars)

	trades, err := g.store.Trades.GetByDateRange(ctx, nil, params.From, params.To)
	if err != nil {
		return s, err
	}
	s.Trades = len(trades)

	txs, err := g.store.Transactions.GetByDateRange(ctx, nil, params.From, params.To)
	if err != nil {
		return s, err
	}
	s.Transactions = len(txs)

	return s, nil
}
