// Package main provides the end-to-end analytics pipeline entry point.
// Loads CSV data (or generates a synthetic dataset), executes every query
// variant against an in-memory event store and writes CSV and Markdown
// reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/eventstore/memory"
	"market-analytics-lab/internal/ingestion"
	"market-analytics-lab/internal/querycache"
	"market-analytics-lab/internal/reporting"
)

func main() {
	barsPath := flag.String("bars", "", "Price bars CSV (empty: generate synthetic data)")
	tradesPath := flag.String("trades", "", "Market trades CSV")
	txsPath := flag.String("transactions", "", "Portfolio transactions CSV")
	days := flag.Int("days", 90, "Calendar days to generate when no CSVs are given")
	seed := flag.Int64("seed", 42, "Generator seed")
	start := flag.String("start", "2024-01-01", "First day of the generated range (YYYY-MM-DD)")
	budget := flag.Float64("budget", 0, "Per-query cost ceiling in USD (0: unlimited)")
	outputDir := flag.String("output-dir", "output", "Output directory for reports")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling pipeline...\n", sig)
		cancel()
	}()

	startDate, err := time.ParseInLocation(domain.DateLayout, *start, time.UTC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -start date: %v\n", err)
		os.Exit(1)
	}

	store := memory.NewStore()
	from, to, err := loadData(ctx, store, *barsPath, *tradesPath, *txsPath, *seed, startDate, *days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(store, querycache.New(64), costs.NewEstimator(0, 0, 0), nil)
	params := domain.QueryParams{From: from, To: to, MaxCostUSD: *budget}

	fmt.Println("=== Analytics Pipeline ===")
	gen := reporting.NewGenerator(store, eng)
	report, tables, err := gen.Generate(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Report generation error: %v\n", err)
		os.Exit(1)
	}

	for _, section := range report.Sections {
		if section.Err != nil {
			fmt.Printf("  %-26s FAILED: %v\n", section.Query, section.Err)
			continue
		}
		fmt.Printf("  %-26s %6d rows  est $%.6f  %s\n",
			section.Query, section.Rows, section.Estimate.CostUSD,
			section.Elapsed.Round(time.Millisecond))
	}

	if err := writeOutputs(*outputDir, report, tables); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing outputs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nReports written to %s/\n", *outputDir)
}

// loadData fills the store from CSVs when given, otherwise from the
// synthetic generator. Returns the date range covering the dataset.
func loadData(ctx context.Context, store *eventstore.Store, barsPath, tradesPath, txsPath string, seed int64, start time.Time, days int) (time.Time, time.Time, error) {
	var bars []*domain.PriceBar
	var trades []*domain.Trade
	var txs []*domain.Transaction

	if barsPath == "" {
		gen := ingestion.NewGenerator(seed, start)
		bars = gen.Bars(days)
		trades = gen.Trades(bars, 20)
		txs = gen.Transactions(1000, 50, days)
		fmt.Printf("Generated %d bars, %d trades, %d transactions (seed %d)\n",
			len(bars), len(trades), len(txs), seed)
	} else {
		var res ingestion.LoadResult
		var err error
		bars, res, err = ingestion.LoadBarsFile(barsPath)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("load bars: %w", err)
		}
		fmt.Printf("Loaded %d bars (%d skipped)\n", res.Loaded, res.Skipped)

		if tradesPath != "" {
			trades, res, err = ingestion.LoadTradesFile(tradesPath)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("load trades: %w", err)
			}
			fmt.Printf("Loaded %d trades (%d skipped)\n", res.Loaded, res.Skipped)
		}
		if txsPath != "" {
			txs, res, err = ingestion.LoadTransactionsFile(txsPath)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("load transactions: %w", err)
			}
			fmt.Printf("Loaded %d transactions (%d skipped)\n", res.Loaded, res.Skipped)
		}
	}

	if len(bars) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("no price bars to analyze")
	}
	if err := store.Bars.InsertBulk(ctx, bars); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("insert bars: %w", err)
	}
	if len(trades) > 0 {
		if err := store.Trades.InsertBulk(ctx, trades); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("insert trades: %w", err)
		}
	}
	if len(txs) > 0 {
		if err := store.Transactions.InsertBulk(ctx, txs); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("insert transactions: %w", err)
		}
	}

	from, to := bars[0].Date, bars[0].Date
	for _, b := range bars {
		if b.Date.Before(from) {
			from = b.Date
		}
		if b.Date.After(to) {
			to = b.Date
		}
	}
	for _, x := range txs {
		if x.Date.Before(from) {
			from = x.Date
		}
		if x.Date.After(to) {
			to = x.Date
		}
	}
	return from, to, nil
}

func writeOutputs(dir string, report *reporting.Report, tables map[domain.QueryName]*domain.ResultTable) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	md := reporting.RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(dir, "REPORT.md"), []byte(md), 0o644); err != nil {
		return err
	}
	for query, table := range tables {
		path := filepath.Join(dir, string(query)+".csv")
		if err := os.WriteFile(path, []byte(reporting.RenderCSV(table)), 0o644); err != nil {
			return err
		}
	}
	return nil
}
