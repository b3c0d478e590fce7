package domain

import (
	"fmt"
	"time"
)

// Trade represents a single market execution for a symbol.
// Corresponds to the market_trades table.
type Trade struct {
	TradeID    string // unique trade identifier
	Symbol     string // partition key
	Timestamp  int64  // Unix timestamp in milliseconds, order key
	Date       time.Time
	Side       string // "BUY" | "SELL"
	Quantity   int64
	Price      float64
	TradeValue float64 // quantity * price
	Exchange   string
	CreatedAt  int64 // record creation timestamp (ms)
}

// Trade side constants
const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

// Validate checks trade consistency: positive quantity and price, known side.
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if t.Side != TradeSideBuy && t.Side != TradeSideSell {
		return fmt.Errorf("unknown side %q", t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("non-positive quantity %d", t.Quantity)
	}
	if t.Price <= 0 {
		return fmt.Errorf("non-positive price %v", t.Price)
	}
	return nil
}
