package domain

import (
	"fmt"
	"time"
)

// Transaction represents a portfolio transaction.
// Corresponds to the portfolio_transactions table.
type Transaction struct {
	TransactionID string
	PortfolioID   string // partition key
	Timestamp     int64  // Unix timestamp in milliseconds, order key
	Date          time.Time
	Symbol        string
	Sector        string
	Type          string // "BUY" | "SELL" | "DIVIDEND"
	Quantity      float64
	Price         float64
	TotalAmount   float64
	Fees          float64
	CreatedAt     int64 // record creation timestamp (ms)
}

// Transaction type constants
const (
	TransactionBuy      = "BUY"
	TransactionSell     = "SELL"
	TransactionDividend = "DIVIDEND"
)

// Validate checks transaction consistency. DIVIDEND rows carry zero quantity;
// BUY/SELL rows require positive quantity. Fees are never negative.
func (x *Transaction) Validate() error {
	if x.PortfolioID == "" {
		return fmt.Errorf("empty portfolio id")
	}
	switch x.Type {
	case TransactionBuy, TransactionSell:
		if x.Quantity <= 0 {
			return fmt.Errorf("non-positive quantity %v for %s", x.Quantity, x.Type)
		}
	case TransactionDividend:
	default:
		return fmt.Errorf("unknown transaction type %q", x.Type)
	}
	if x.Fees < 0 {
		return fmt.Errorf("negative fees %v", x.Fees)
	}
	return nil
}
