package domain

import "time"

// SignalRow represents trend signals derived per (symbol, date).
// Nullable fields are nil until enough in-partition history exists.
type SignalRow struct {
	Symbol         string
	Date           time.Time
	Close          float64
	SMA7           *float64 // 7-row trailing mean, NULL before 7 rows
	SMA30          *float64 // 30-row trailing mean, NULL before 30 rows
	SMA90          *float64 // 90-row trailing mean, NULL before 90 rows
	DailyReturnPct *float64 // (close - prev close) / prev close * 100, NULL on first row
	TrendStatus    string
}

// Trend status constants. NEUTRAL covers both "close equals the 90-row mean"
// and "insufficient history for the 90-row mean".
const (
	TrendUp      = "UPTREND"
	TrendDown    = "DOWNTREND"
	TrendNeutral = "NEUTRAL"
)

// DailyMetricRow represents per (symbol, date) aggregates joined from the
// price bar and that day's trades. Corresponds to the market_metrics table.
type DailyMetricRow struct {
	Symbol         string
	Date           time.Time
	AvgPrice       float64 // (open + high + low + close) / 4
	PriceRange     float64 // high - low
	Volatility     float64 // price_range / open
	TotalVolume    int64
	BuyVolume      int64
	SellVolume     int64
	BuySellRatio   *float64 // buy_volume / sell_volume, NULL if sell_volume is 0
	PriceChangePct *float64 // (close - open) / open * 100
	TradingSignal  string
}

// Trading signal constants
const (
	SignalBuy     = "BUY_SIGNAL"
	SignalSell    = "SELL_SIGNAL"
	SignalNeutral = "NEUTRAL"
)

// AnomalyRow represents volatility/volume anomaly factors and percentile
// classifications per (symbol, date).
type AnomalyRow struct {
	Symbol                  string
	Date                    time.Time
	Volatility              float64
	Volume                  int64
	VolatilityAnomalyFactor *float64 // volatility / 30-row trailing mean, NULL before 30 rows
	VolumeAnomalyFactor     *float64 // volume / 30-row trailing mean, NULL before 30 rows
	VolatilityClass         string
	VolumeClass             string
}

// Percentile classification constants. Classes compare each row against the
// 25th/75th percentile of the full partition, not a trailing window.
const (
	ClassHighVolatility   = "HIGH_VOLATILITY"
	ClassLowVolatility    = "LOW_VOLATILITY"
	ClassNormalVolatility = "NORMAL_VOLATILITY"

	ClassHighVolume   = "HIGH_VOLUME"
	ClassLowVolume    = "LOW_VOLUME"
	ClassNormalVolume = "NORMAL_VOLUME"
)
