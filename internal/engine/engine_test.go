package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/eventstore/memory"
	"market-analytics-lab/internal/querycache"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func newTestEngine(store *eventstore.Store) *Engine {
	return New(store, querycache.New(16), costs.NewEstimator(0, 0, 0), nil)
}

// seedOutlierSeries ingests 90 days of close 100 with a single 150 outlier
// on day 45.
func seedOutlierSeries(t *testing.T, store *eventstore.Store, symbol string) {
	t.Helper()
	var bars []*domain.PriceBar
	for i := 1; i <= 90; i++ {
		close := 100.0
		if i == 45 {
			close = 150.0
		}
		bars = append(bars, &domain.PriceBar{
			Symbol: symbol, Date: day(i),
			Open: close, High: close, Low: close, Close: close,
			Volume: 1000,
		})
	}
	if err := store.Bars.InsertBulk(context.Background(), bars); err != nil {
		t.Fatal(err)
	}
}

func rangeParams(from, to int, entities ...string) domain.QueryParams {
	return domain.QueryParams{From: day(from), To: day(to), Entities: entities}
}

func TestComputeStockTrendEndToEnd(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	e := newTestEngine(store)

	table, err := e.Compute(context.Background(), domain.QueryStockTrend, rangeParams(1, 90, "AAPL"))
	if err != nil {
		t.Fatal(err)
	}
	if table.NumRows() != 90 {
		t.Fatalf("rows = %d, want 90", table.NumRows())
	}

	cols := map[string]int{}
	for i, c := range table.Columns {
		cols[c] = i
	}

	// daily_return_pct: +50.0 on day 45, -33.33 on day 46.
	if got := table.Rows[44][cols["daily_return_pct"]]; got != 50.0 {
		t.Errorf("day 45 return = %v, want 50.0", got)
	}
	if got := table.Rows[45][cols["daily_return_pct"]]; got != -33.33 {
		t.Errorf("day 46 return = %v, want -33.33", got)
	}
	// sma_90 on day 90 reflects the outlier: (89*100+150)/90 = 100.56.
	if got := table.Rows[89][cols["sma_90"]]; got != 100.56 {
		t.Errorf("day 90 sma_90 = %v, want 100.56", got)
	}
	// Null prefix renders as nil cells.
	if got := table.Rows[0][cols["daily_return_pct"]]; got != nil {
		t.Errorf("day 1 return = %v, want nil", got)
	}
}

func TestComputeIdempotent(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	e := newTestEngine(store)
	ctx := context.Background()
	params := rangeParams(1, 90, "AAPL")

	first, err := e.Compute(ctx, domain.QueryStockTrend, params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Compute(ctx, domain.QueryStockTrend, params)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeat compute with no intervening ingestion must return identical results")
	}
}

// countingBarStore wraps a PriceBarStore counting range scans.
type countingBarStore struct {
	eventstore.PriceBarStore
	scans int32
}

func (s *countingBarStore) GetByDateRange(ctx context.Context, symbols []string, from, to time.Time) ([]*domain.PriceBar, error) {
	atomic.AddInt32(&s.scans, 1)
	return s.PriceBarStore.GetByDateRange(ctx, symbols, from, to)
}

func TestConcurrentComputeSingleScan(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	counting := &countingBarStore{PriceBarStore: store.Bars}
	store.Bars = counting
	e := newTestEngine(store)

	params := rangeParams(1, 90, "AAPL")
	const callers = 10
	results := make([]*domain.ResultTable, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table, err := e.Compute(context.Background(), domain.QueryStockTrend, params)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = table
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&counting.scans); got != 1 {
		t.Fatalf("partition scans = %d, want exactly 1", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent callers must share the identical payload")
		}
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	counting := &countingBarStore{PriceBarStore: store.Bars}
	store.Bars = counting
	e := newTestEngine(store)
	ctx := context.Background()
	params := rangeParams(1, 90, "AAPL")

	e.Compute(ctx, domain.QueryStockTrend, params)
	e.Compute(ctx, domain.QueryStockTrend, params)
	if atomic.LoadInt32(&counting.scans) != 1 {
		t.Fatalf("scans = %d, want 1 before invalidation", counting.scans)
	}

	e.Invalidate("AAPL")
	e.Compute(ctx, domain.QueryStockTrend, params)
	if got := atomic.LoadInt32(&counting.scans); got != 2 {
		t.Fatalf("scans = %d, want 2 after invalidation", got)
	}
}

func TestIngestInvalidatesCache(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	e := newTestEngine(store)
	ctx := context.Background()
	params := rangeParams(1, 91, "AAPL")

	before, _ := e.Compute(ctx, domain.QueryStockTrend, params)

	err := store.Bars.Insert(ctx, &domain.PriceBar{
		Symbol: "AAPL", Date: day(91),
		Open: 100, High: 100, Low: 100, Close: 100, Volume: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	after, _ := e.Compute(ctx, domain.QueryStockTrend, params)
	if after.NumRows() != before.NumRows()+1 {
		t.Fatalf("ingest must invalidate: before=%d after=%d", before.NumRows(), after.NumRows())
	}
}

func TestBudgetRefusal(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	e := New(store, querycache.New(16), costs.NewEstimator(25, 120, 1), nil)

	params := rangeParams(1, 90, "AAPL")
	params.MaxCostUSD = 0.0001 // far below 90 days of rows at $1/byte

	_, err := e.Compute(context.Background(), domain.QueryStockTrend, params)
	var budgetErr *costs.BudgetExceededError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("expected BudgetExceededError, got %v", err)
	}

	// Refusal happens before execution: the estimate path is still fine.
	if _, err := e.Estimate(context.Background(), domain.QueryStockTrend, params); err != nil {
		t.Fatalf("estimate must not fail on budget: %v", err)
	}
}

func TestUnknownQuery(t *testing.T) {
	e := newTestEngine(memory.NewStore())
	_, err := e.Compute(context.Background(), "made_up", domain.QueryParams{})
	if !errors.Is(err, ErrUnknownQuery) {
		t.Fatalf("expected ErrUnknownQuery, got %v", err)
	}
	_, err = e.Estimate(context.Background(), "made_up", domain.QueryParams{})
	if !errors.Is(err, ErrUnknownQuery) {
		t.Fatalf("expected ErrUnknownQuery from estimate, got %v", err)
	}
}

func TestEstimateNeverScansPartitions(t *testing.T) {
	store := memory.NewStore()
	seedOutlierSeries(t, store, "AAPL")
	counting := &countingBarStore{PriceBarStore: store.Bars}
	store.Bars = counting
	e := newTestEngine(store)

	if _, err := e.Estimate(context.Background(), domain.QueryStockTrend, rangeParams(1, 90, "AAPL")); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&counting.scans); got != 0 {
		t.Fatalf("estimate performed %d partition scans, want 0", got)
	}
}

func TestPortfolioPerformanceEndToEnd(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	txs := []*domain.Transaction{
		{TransactionID: "t1", PortfolioID: "p1", Timestamp: 1, Date: day(1), Symbol: "AAPL", Sector: "Technology", Type: domain.TransactionBuy, Quantity: 10, Price: 100, TotalAmount: 1000, Fees: 1},
		{TransactionID: "t2", PortfolioID: "p1", Timestamp: 2, Date: day(2), Symbol: "AAPL", Sector: "Technology", Type: domain.TransactionSell, Quantity: 4, Price: 120, TotalAmount: 480, Fees: 1},
	}
	if err := store.Transactions.InsertBulk(ctx, txs); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(store)
	table, err := e.Compute(ctx, domain.QueryPortfolioPerf, rangeParams(1, 10, "p1"))
	if err != nil {
		t.Fatal(err)
	}
	if table.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", table.NumRows())
	}

	cols := map[string]int{}
	for i, c := range table.Columns {
		cols[c] = i
	}
	row := table.Rows[0]
	if row[cols["quantity"]] != 6.0 {
		t.Errorf("quantity = %v, want 6", row[cols["quantity"]])
	}
	if row[cols["cost_basis"]] != 522.0 {
		t.Errorf("cost_basis = %v, want 522", row[cols["cost_basis"]])
	}
	if row[cols["sector_breakdown"]] != "Technology:2" {
		t.Errorf("sector_breakdown = %v", row[cols["sector_breakdown"]])
	}
}

func TestRankingQueryOrdering(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	var bars []*domain.PriceBar
	closes := map[string][]float64{
		"AAA": {100, 110}, // +10%
		"BBB": {100, 105}, // +5%
	}
	for sym, cs := range closes {
		for i, c := range cs {
			bars = append(bars, &domain.PriceBar{
				Symbol: sym, Date: day(i + 1),
				Open: c, High: c, Low: c, Close: c, Volume: 1000,
			})
		}
	}
	if err := store.Bars.InsertBulk(ctx, bars); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(store)
	table, err := e.Compute(ctx, domain.QueryPerformanceRank, rangeParams(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	// Only day 2 has returns; AAA outranks BBB.
	if table.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", table.NumRows())
	}
	if table.Rows[0][1] != "AAA" || table.Rows[1][1] != "BBB" {
		t.Fatalf("rank order = %v, %v; want AAA then BBB", table.Rows[0][1], table.Rows[1][1])
	}
	if table.Rows[0][7] != true {
		t.Fatal("rank 1 must be a top performer")
	}
}
