package signals

import (
	"sort"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/window"
)

type symbolDate struct {
	symbol string
	date   time.Time
}

type dayVolumes struct {
	total int64
	buy   int64
	sell  int64
}

// ComputeDailyMetrics joins price bars with same-day trade volumes into one
// aggregate row per (symbol, date).
//
// Formulas:
//   - avg_price = (open + high + low + close) / 4
//   - price_range = high - low
//   - volatility = price_range / open
//   - buy_sell_ratio = buy_volume / sell_volume, NULL if sell_volume = 0
//   - price_change_pct = (close - open) / open * 100, rounded to 2 decimals
//   - trading_signal per TradingSignal
func ComputeDailyMetrics(bars []*domain.PriceBar, trades []*domain.Trade) ([]*domain.DailyMetricRow, []*DataQualityError) {
	if len(bars) == 0 {
		return nil, nil
	}

	volumes := make(map[symbolDate]*dayVolumes)
	var dqErrs []*DataQualityError
	for _, t := range trades {
		if err := t.Validate(); err != nil {
			dqErrs = append(dqErrs, &DataQualityError{
				Symbol: t.Symbol, Date: t.Date, Reason: err.Error(),
			})
			continue
		}
		key := symbolDate{symbol: t.Symbol, date: t.Date}
		v, ok := volumes[key]
		if !ok {
			v = &dayVolumes{}
			volumes[key] = v
		}
		v.total += t.Quantity
		switch t.Side {
		case domain.TradeSideBuy:
			v.buy += t.Quantity
		case domain.TradeSideSell:
			v.sell += t.Quantity
		}
	}

	sorted := sortBars(bars)

	result := make([]*domain.DailyMetricRow, 0, len(sorted))
	for _, b := range sorted {
		if err := b.Validate(); err != nil {
			dqErrs = append(dqErrs, &DataQualityError{
				Symbol: b.Symbol, Date: b.Date, Reason: err.Error(),
			})
			continue
		}
		if n := len(result); n > 0 && result[n-1].Symbol == b.Symbol && !result[n-1].Date.Before(b.Date) {
			dqErrs = append(dqErrs, &DataQualityError{
				Symbol: b.Symbol, Date: b.Date, Reason: "non-monotonic date within partition",
			})
			continue
		}

		row := &domain.DailyMetricRow{
			Symbol:     b.Symbol,
			Date:       b.Date,
			AvgPrice:   window.Round2((b.Open + b.High + b.Low + b.Close) / 4),
			PriceRange: window.Round2(b.High - b.Low),
			Volatility: (b.High - b.Low) / b.Open,
		}

		if v, ok := volumes[symbolDate{symbol: b.Symbol, date: b.Date}]; ok {
			row.TotalVolume = v.total
			row.BuyVolume = v.buy
			row.SellVolume = v.sell
			row.BuySellRatio = window.Round2Ptr(
				window.SafeDivide(float64(v.buy), float64(v.sell)))
		}

		row.PriceChangePct = window.Round2Ptr(
			window.SafeDivide((b.Close-b.Open)*100, b.Open))
		row.TradingSignal = TradingSignal(row.PriceChangePct, row.BuySellRatio)

		result = append(result, row)
	}

	return result, dqErrs
}

// TradingSignal classifies a day from its return and buy/sell pressure:
// BUY_SIGNAL if returnPct > 2 and ratio > 1.1, SELL_SIGNAL if returnPct < -2
// and ratio < 0.9, NEUTRAL otherwise (including NULL inputs).
func TradingSignal(returnPct, buySellRatio *float64) string {
	if returnPct == nil || buySellRatio == nil {
		return domain.SignalNeutral
	}
	switch {
	case *returnPct > 2 && *buySellRatio > 1.1:
		return domain.SignalBuy
	case *returnPct < -2 && *buySellRatio < 0.9:
		return domain.SignalSell
	default:
		return domain.SignalNeutral
	}
}

// sortMetrics orders rows by (symbol, date) in place.
func sortMetrics(rows []*domain.DailyMetricRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}
