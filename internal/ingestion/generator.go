package ingestion

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/window"
)

// DefaultSymbols is the synthetic universe.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA", "JPM"}

var generatorExchanges = []string{"NASDAQ", "NYSE"}

var generatorSectors = map[string]string{
	"AAPL": "Technology", "GOOGL": "Technology", "MSFT": "Technology",
	"AMZN": "Consumer", "TSLA": "Automotive", "META": "Technology",
	"NVDA": "Technology", "JPM": "Finance",
}

// Generator produces synthetic but statistically plausible market data:
// random-walk OHLC bars on trading days, lognormal trade sizes, mixed
// BUY/SELL/DIVIDEND portfolio activity. The same seed yields the same data.
type Generator struct {
	rng     *rand.Rand
	symbols []string
	start   time.Time
}

// NewGenerator creates a deterministic generator. start is the first
// calendar day of the generated range, truncated to UTC midnight.
func NewGenerator(seed int64, start time.Time) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		symbols: DefaultSymbols,
		start:   time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Bars generates OHLC bars for the given number of calendar days.
// Weekends are skipped; each symbol follows an independent random walk.
func (g *Generator) Bars(days int) []*domain.PriceBar {
	base := make(map[string]float64, len(g.symbols))
	for _, sym := range g.symbols {
		base[sym] = 50 + g.rng.Float64()*450
	}

	var bars []*domain.PriceBar
	for offset := 0; offset < days; offset++ {
		date := g.start.AddDate(0, 0, offset)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, sym := range g.symbols {
			dailyReturn := g.rng.NormFloat64()*0.02 + 0.0005
			open := base[sym] * (1 + dailyReturn)
			high := open * (1 + math.Abs(g.rng.NormFloat64())*0.01)
			low := open * (1 - math.Abs(g.rng.NormFloat64())*0.01)
			close := low + g.rng.Float64()*(high-low)
			base[sym] = close

			bars = append(bars, &domain.PriceBar{
				Symbol: sym,
				Date:   date,
				Open:   window.Round2(open),
				High:   window.Round2(high),
				Low:    window.Round2(low),
				Close:  window.Round2(close),
				Volume: 1_000_000 + int64(g.rng.Float64()*99_000_000),
			})
		}
	}
	return bars
}

// Trades generates individual executions inside each bar's daily range.
// Quantities are lognormal, timestamps fall in market hours.
func (g *Generator) Trades(bars []*domain.PriceBar, tradesPerBar int) []*domain.Trade {
	var trades []*domain.Trade
	id := 1
	for _, bar := range bars {
		for i := 0; i < tradesPerBar; i++ {
			hour := 9 + g.rng.Intn(7)
			minute := g.rng.Intn(60)
			second := g.rng.Intn(60)
			ts := bar.Date.Add(time.Duration(hour)*time.Hour +
				time.Duration(minute)*time.Minute +
				time.Duration(second)*time.Second)

			price := bar.Low + g.rng.Float64()*(bar.High-bar.Low)
			quantity := int64(math.Exp(g.rng.NormFloat64()*1.5 + 10))
			if quantity < 1 {
				quantity = 1
			}
			side := domain.TradeSideBuy
			if g.rng.Intn(2) == 1 {
				side = domain.TradeSideSell
			}

			trades = append(trades, &domain.Trade{
				TradeID:    fmt.Sprintf("TRADE_%010d", id),
				Symbol:     bar.Symbol,
				Timestamp:  ts.UnixMilli(),
				Date:       bar.Date,
				Side:       side,
				Quantity:   quantity,
				Price:      window.Round2(price),
				TradeValue: window.Round2(float64(quantity) * price),
				Exchange:   generatorExchanges[g.rng.Intn(len(generatorExchanges))],
			})
			id++
		}
	}
	return trades
}

// Transactions generates portfolio activity spread over the given number of
// calendar days: 50% BUY, 40% SELL, 10% DIVIDEND, with random fees.
func (g *Generator) Transactions(n, portfolios, days int) []*domain.Transaction {
	ids := make([]string, portfolios)
	for i := range ids {
		ids[i] = fmt.Sprintf("PORT_%06d", i+1)
	}

	var txs []*domain.Transaction
	for i := 0; i < n; i++ {
		date := g.start.AddDate(0, 0, g.rng.Intn(days))
		symbol := g.symbols[g.rng.Intn(len(g.symbols))]
		price := 50 + g.rng.Float64()*450

		var txType string
		switch r := g.rng.Float64(); {
		case r < 0.5:
			txType = domain.TransactionBuy
		case r < 0.9:
			txType = domain.TransactionSell
		default:
			txType = domain.TransactionDividend
		}

		var quantity, total float64
		if txType == domain.TransactionDividend {
			total = 100 + g.rng.Float64()*4900
		} else {
			quantity = math.Floor(math.Exp(g.rng.NormFloat64()*1.2 + 5))
			if quantity < 1 {
				quantity = 1
			}
			total = quantity * price
		}

		sector, ok := generatorSectors[symbol]
		if !ok {
			sector = "Other"
		}

		txs = append(txs, &domain.Transaction{
			TransactionID: fmt.Sprintf("TXN_%010d", i+1),
			PortfolioID:   ids[g.rng.Intn(len(ids))],
			Timestamp:     date.UnixMilli(),
			Date:          date,
			Symbol:        symbol,
			Sector:        sector,
			Type:          txType,
			Quantity:      quantity,
			Price:         window.Round2(price),
			TotalAmount:   window.Round2(total),
			Fees:          window.Round2(g.rng.Float64() * 50),
		})
	}
	return txs
}
