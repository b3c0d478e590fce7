// Package ingestion loads market data into the event store: CSV files,
// the synthetic generator and the websocket ingest endpoint.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/observability"
)

// LoadResult reports the outcome of one CSV load. Malformed lines are
// skipped, not fatal; the caller decides whether a high skip count matters.
type LoadResult struct {
	Loaded  int
	Skipped int
}

type csvReader struct {
	r      *csv.Reader
	cols   map[string]int
	line   int
	fields []string
}

// newCSVReader reads the header line and builds the column index. Column
// order in the file does not matter; extra columns are ignored.
func newCSVReader(r io.Reader, required []string) (*csvReader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return &csvReader{r: cr, cols: cols, line: 1}, nil
}

func (c *csvReader) next() (bool, error) {
	fields, err := c.r.Read()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.line++
	c.fields = fields
	return true, nil
}

func (c *csvReader) str(name string) string {
	idx, ok := c.cols[name]
	if !ok || idx >= len(c.fields) {
		return ""
	}
	return c.fields[idx]
}

func (c *csvReader) float(name string) (float64, error) {
	v, err := strconv.ParseFloat(c.str(name), 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

func (c *csvReader) int(name string) (int64, error) {
	v, err := strconv.ParseInt(c.str(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

func (c *csvReader) date(name string) (time.Time, error) {
	v, err := time.ParseInLocation(domain.DateLayout, c.str(name), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

// timestamp accepts either RFC 3339 or a unix-millisecond integer.
func (c *csvReader) timestamp(name string) (int64, error) {
	raw := c.str(name)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return t.UnixMilli(), nil
}

// LoadBars parses daily OHLC bars from CSV. Expected columns:
// date, symbol, open, high, low, close, volume.
func LoadBars(r io.Reader, log zerolog.Logger) ([]*domain.PriceBar, LoadResult, error) {
	cr, err := newCSVReader(r, []string{"date", "symbol", "open", "high", "low", "close", "volume"})
	if err != nil {
		return nil, LoadResult{}, err
	}

	var bars []*domain.PriceBar
	var res LoadResult
	for {
		ok, err := cr.next()
		if err != nil {
			return nil, res, fmt.Errorf("line %d: %w", cr.line+1, err)
		}
		if !ok {
			break
		}
		bar, err := parseBar(cr)
		if err != nil {
			res.Skipped++
			log.Warn().Int("line", cr.line).Err(err).Msg("skipping malformed bar")
			continue
		}
		bars = append(bars, bar)
		res.Loaded++
	}
	return bars, res, nil
}

func parseBar(cr *csvReader) (*domain.PriceBar, error) {
	date, err := cr.date("date")
	if err != nil {
		return nil, err
	}
	open, err := cr.float("open")
	if err != nil {
		return nil, err
	}
	high, err := cr.float("high")
	if err != nil {
		return nil, err
	}
	low, err := cr.float("low")
	if err != nil {
		return nil, err
	}
	close, err := cr.float("close")
	if err != nil {
		return nil, err
	}
	volume, err := cr.int("volume")
	if err != nil {
		return nil, err
	}
	bar := &domain.PriceBar{
		Symbol: cr.str("symbol"),
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
	if err := bar.Validate(); err != nil {
		return nil, err
	}
	return bar, nil
}

// LoadTrades parses market trades from CSV. Expected columns:
// trade_id, timestamp, date, symbol, price, quantity, side, trade_value, exchange.
func LoadTrades(r io.Reader, log zerolog.Logger) ([]*domain.Trade, LoadResult, error) {
	cr, err := newCSVReader(r, []string{"trade_id", "timestamp", "date", "symbol", "price", "quantity", "side"})
	if err != nil {
		return nil, LoadResult{}, err
	}

	var trades []*domain.Trade
	var res LoadResult
	for {
		ok, err := cr.next()
		if err != nil {
			return nil, res, fmt.Errorf("line %d: %w", cr.line+1, err)
		}
		if !ok {
			break
		}
		trade, err := parseTrade(cr)
		if err != nil {
			res.Skipped++
			log.Warn().Int("line", cr.line).Err(err).Msg("skipping malformed trade")
			continue
		}
		trades = append(trades, trade)
		res.Loaded++
	}
	return trades, res, nil
}

func parseTrade(cr *csvReader) (*domain.Trade, error) {
	ts, err := cr.timestamp("timestamp")
	if err != nil {
		return nil, err
	}
	date, err := cr.date("date")
	if err != nil {
		return nil, err
	}
	price, err := cr.float("price")
	if err != nil {
		return nil, err
	}
	quantity, err := cr.int("quantity")
	if err != nil {
		return nil, err
	}
	trade := &domain.Trade{
		TradeID:    cr.str("trade_id"),
		Symbol:     cr.str("symbol"),
		Timestamp:  ts,
		Date:       date,
		Side:       cr.str("side"),
		Quantity:   quantity,
		Price:      price,
		TradeValue: float64(quantity) * price,
		Exchange:   cr.str("exchange"),
	}
	if err := trade.Validate(); err != nil {
		return nil, err
	}
	return trade, nil
}

// LoadTransactions parses portfolio transactions from CSV. Expected columns:
// transaction_id, portfolio_id, date, timestamp, symbol, transaction_type,
// quantity, price, total_amount, fees, sector.
func LoadTransactions(r io.Reader, log zerolog.Logger) ([]*domain.Transaction, LoadResult, error) {
	cr, err := newCSVReader(r, []string{"transaction_id", "portfolio_id", "date", "timestamp", "symbol", "transaction_type", "quantity", "price", "total_amount", "fees"})
	if err != nil {
		return nil, LoadResult{}, err
	}

	var txs []*domain.Transaction
	var res LoadResult
	for {
		ok, err := cr.next()
		if err != nil {
			return nil, res, fmt.Errorf("line %d: %w", cr.line+1, err)
		}
		if !ok {
			break
		}
		tx, err := parseTransaction(cr)
		if err != nil {
			res.Skipped++
			log.Warn().Int("line", cr.line).Err(err).Msg("skipping malformed transaction")
			continue
		}
		txs = append(txs, tx)
		res.Loaded++
	}
	return txs, res, nil
}

func parseTransaction(cr *csvReader) (*domain.Transaction, error) {
	ts, err := cr.timestamp("timestamp")
	if err != nil {
		return nil, err
	}
	date, err := cr.date("date")
	if err != nil {
		return nil, err
	}
	quantity, err := cr.float("quantity")
	if err != nil {
		return nil, err
	}
	price, err := cr.float("price")
	if err != nil {
		return nil, err
	}
	total, err := cr.float("total_amount")
	if err != nil {
		return nil, err
	}
	fees, err := cr.float("fees")
	if err != nil {
		return nil, err
	}
	tx := &domain.Transaction{
		TransactionID: cr.str("transaction_id"),
		PortfolioID:   cr.str("portfolio_id"),
		Timestamp:     ts,
		Date:          date,
		Symbol:        cr.str("symbol"),
		Sector:        cr.str("sector"),
		Type:          cr.str("transaction_type"),
		Quantity:      quantity,
		Price:         price,
		TotalAmount:   total,
		Fees:          fees,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// LoadBarsFile loads bars from a file path.
func LoadBarsFile(path string) ([]*domain.PriceBar, LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadResult{}, err
	}
	defer f.Close()
	return LoadBars(f, observability.NewLogger("csv"))
}

// LoadTradesFile loads trades from a file path.
func LoadTradesFile(path string) ([]*domain.Trade, LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadResult{}, err
	}
	defer f.Close()
	return LoadTrades(f, observability.NewLogger("csv"))
}

// LoadTransactionsFile loads transactions from a file path.
func LoadTransactionsFile(path string) ([]*domain.Transaction, LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadResult{}, err
	}
	defer f.Close()
	return LoadTransactions(f, observability.NewLogger("csv"))
}
