package ingestion

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"market-analytics-lab/internal/domain"
)

// WriteBars writes bars as CSV in the layout LoadBars reads back.
func WriteBars(w io.Writer, bars []*domain.PriceBar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "symbol", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.DateKey(), b.Symbol,
			formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low), formatFloat(b.Close),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrades writes trades as CSV in the layout LoadTrades reads back.
func WriteTrades(w io.Writer, trades []*domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trade_id", "timestamp", "date", "symbol", "price", "quantity", "side", "trade_value", "exchange"}); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.TradeID,
			time.UnixMilli(t.Timestamp).UTC().Format(time.RFC3339),
			t.Date.Format(domain.DateLayout), t.Symbol,
			formatFloat(t.Price), strconv.FormatInt(t.Quantity, 10), t.Side,
			formatFloat(t.TradeValue), t.Exchange,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTransactions writes transactions as CSV in the layout
// LoadTransactions reads back.
func WriteTransactions(w io.Writer, txs []*domain.Transaction) error {
	cw := csv.NewWriter(w)
	header := []string{
		"transaction_id", "portfolio_id", "date", "timestamp", "symbol",
		"transaction_type", "quantity", "price", "total_amount", "fees", "sector",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, x := range txs {
		rec := []string{
			x.TransactionID, x.PortfolioID,
			x.Date.Format(domain.DateLayout),
			time.UnixMilli(x.Timestamp).UTC().Format(time.RFC3339),
			x.Symbol, x.Type,
			formatFloat(x.Quantity), formatFloat(x.Price),
			formatFloat(x.TotalAmount), formatFloat(x.Fees),
			x.Sector,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBarsFile writes bars to a file path.
func WriteBarsFile(path string, bars []*domain.PriceBar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBars(f, bars); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTradesFile writes trades to a file path.
func WriteTradesFile(path string, trades []*domain.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTrades(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTransactionsFile writes transactions to a file path.
func WriteTransactionsFile(path string, txs []*domain.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTransactions(f, txs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
