package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/eventstore/memory"
	"market-analytics-lab/internal/querycache"
)

func setupTestData(t *testing.T) *eventstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	day := func(n int) time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
	}

	var bars []*domain.PriceBar
	for i := 1; i <= 10; i++ {
		c := 100.0 + float64(i)
		bars = append(bars, &domain.PriceBar{
			Symbol: "AAPL", Date: day(i),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
	if err := store.Bars.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("insert bars: %v", err)
	}

	txs := []*domain.Transaction{
		{TransactionID: "t1", PortfolioID: "p1", Timestamp: 1, Date: day(1),
			Symbol: "AAPL", Sector: "Technology", Type: domain.TransactionBuy,
			Quantity: 10, Price: 100, TotalAmount: 1000, Fees: 1},
	}
	if err := store.Transactions.InsertBulk(ctx, txs); err != nil {
		t.Fatalf("insert transactions: %v", err)
	}
	return store
}

func testGenerator(store *eventstore.Store) *Generator {
	eng := engine.New(store, querycache.New(16), costs.NewEstimator(0, 0, 0), nil)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewGenerator(store, eng).WithClock(func() time.Time { return fixed })
}

func TestGenerateReport(t *testing.T) {
	store := setupTestData(t)
	g := testGenerator(store)

	params := domain.QueryParams{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	report, tables, err := g.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Sections) != len(domain.AllQueries) {
		t.Fatalf("sections = %d, want %d", len(report.Sections), len(domain.AllQueries))
	}
	for _, s := range report.Sections {
		if s.Err != nil {
			t.Errorf("query %s failed: %v", s.Query, s.Err)
		}
		if s.Estimate.RowsScanned == 0 {
			t.Errorf("query %s has empty estimate", s.Query)
		}
	}
	if report.DataSummary.Symbols != 1 || report.DataSummary.Bars != 10 || report.DataSummary.Transactions != 1 {
		t.Fatalf("data summary = %+v", report.DataSummary)
	}
	if tables[domain.QueryStockTrend].NumRows() != 10 {
		t.Fatalf("stock_trend rows = %d", tables[domain.QueryStockTrend].NumRows())
	}
}

func TestRenderMarkdown(t *testing.T) {
	store := setupTestData(t)
	g := testGenerator(store)

	params := domain.QueryParams{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	report, _, err := g.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Analytics Run Report",
		"## Data Summary",
		"| Symbols | 1 |",
		"## Queries",
		"| stock_trend |",
		"| portfolio_performance |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	table := &domain.ResultTable{
		Query:   domain.QueryStockTrend,
		Columns: []string{"date", "symbol", "close", "sma_7"},
	}
	table.AppendRow("2024-01-02", "AAPL", 105.5, nil)
	table.AppendRow("2024-01-03", "AAPL", 106.0, 104.25)

	got := RenderCSV(table)
	want := "date,symbol,close,sma_7\n2024-01-02,AAPL,105.5,\n2024-01-03,AAPL,106,104.25\n"
	if got != want {
		t.Fatalf("csv mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestRenderCSVQuotesCommaCells(t *testing.T) {
	table := &domain.ResultTable{
		Query:   domain.QueryPortfolioPerf,
		Columns: []string{"portfolio_id", "sector_breakdown"},
	}
	table.AppendRow("p1", "Technology:2,Finance:1")

	got := RenderCSV(table)
	if !strings.Contains(got, "\"Technology:2,Finance:1\"") {
		t.Fatalf("comma cell not quoted: %q", got)
	}
}
