// Package main provides the synthetic dataset generator: writes price bar,
// trade and portfolio transaction CSVs that the pipeline can load back.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/ingestion"
)

func main() {
	days := flag.Int("days", 90, "Calendar days to generate")
	seed := flag.Int64("seed", 42, "Generator seed")
	start := flag.String("start", "2024-01-01", "First day of the range (YYYY-MM-DD)")
	tradesPerBar := flag.Int("trades-per-bar", 50, "Trades generated per bar")
	transactions := flag.Int("transactions", 1000, "Portfolio transactions to generate")
	portfolios := flag.Int("portfolios", 50, "Distinct portfolios")
	outputDir := flag.String("output-dir", "data", "Output directory for CSV files")
	flag.Parse()

	startDate, err := time.ParseInLocation(domain.DateLayout, *start, time.UTC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -start date: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	gen := ingestion.NewGenerator(*seed, startDate)
	bars := gen.Bars(*days)
	trades := gen.Trades(bars, *tradesPerBar)
	txs := gen.Transactions(*transactions, *portfolios, *days)

	outputs := []struct {
		name  string
		count int
		write func(string) error
	}{
		{"stock_prices.csv", len(bars), func(p string) error { return ingestion.WriteBarsFile(p, bars) }},
		{"market_trades.csv", len(trades), func(p string) error { return ingestion.WriteTradesFile(p, trades) }},
		{"portfolio_transactions.csv", len(txs), func(p string) error { return ingestion.WriteTransactionsFile(p, txs) }},
	}
	for _, out := range outputs {
		path := filepath.Join(*outputDir, out.name)
		if err := out.write(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d rows to %s\n", out.count, path)
	}
}
