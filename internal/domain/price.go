package domain

import (
	"fmt"
	"time"
)

// PriceBar represents one daily OHLC bar for a symbol.
// Corresponds to the stock_prices table.
type PriceBar struct {
	Symbol    string    // partition key
	Date      time.Time // order key, UTC midnight
	Seq       int64     // insertion sequence, breaks order-key ties
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	CreatedAt int64 // record creation timestamp (ms)
}

// Validate checks OHLC consistency.
// Invariants: high >= max(open, close, low), low <= min(open, close, high),
// prices > 0, volume >= 0.
func (b *PriceBar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("non-positive price (open=%v high=%v low=%v close=%v)", b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume %d", b.Volume)
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return fmt.Errorf("high %v below open/close/low", b.High)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("low %v above open/close", b.Low)
	}
	return nil
}

// DateKey formats the bar date as YYYY-MM-DD.
func (b *PriceBar) DateKey() string {
	return b.Date.Format(DateLayout)
}

// DateLayout is the canonical date format used across result tables and CSV files.
const DateLayout = "2006-01-02"
