package signals

import (
	"testing"

	"market-analytics-lab/internal/domain"
)

func trade(symbol string, n int, side string, qty int64) *domain.Trade {
	return &domain.Trade{
		TradeID:    "t",
		Symbol:     symbol,
		Timestamp:  day(n).UnixMilli(),
		Date:       day(n),
		Side:       side,
		Quantity:   qty,
		Price:      100,
		TradeValue: float64(qty) * 100,
		Exchange:   "NYSE",
	}
}

func TestComputeDailyMetricsJoinsVolumes(t *testing.T) {
	bars := []*domain.PriceBar{
		{Symbol: "AAPL", Date: day(1), Open: 100, High: 110, Low: 90, Close: 104, Volume: 5000},
	}
	trades := []*domain.Trade{
		trade("AAPL", 1, domain.TradeSideBuy, 300),
		trade("AAPL", 1, domain.TradeSideBuy, 100),
		trade("AAPL", 1, domain.TradeSideSell, 200),
		trade("MSFT", 1, domain.TradeSideSell, 999), // other symbol, ignored
	}

	rows, dqErrs := ComputeDailyMetrics(bars, trades)
	if len(dqErrs) != 0 {
		t.Fatalf("unexpected data quality errors: %v", dqErrs)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.AvgPrice != 101 {
		t.Errorf("avg_price = %f, want 101", r.AvgPrice)
	}
	if r.PriceRange != 20 {
		t.Errorf("price_range = %f, want 20", r.PriceRange)
	}
	if r.Volatility != 0.2 {
		t.Errorf("volatility = %f, want 0.2", r.Volatility)
	}
	if r.TotalVolume != 600 || r.BuyVolume != 400 || r.SellVolume != 200 {
		t.Errorf("volumes = %d/%d/%d, want 600/400/200", r.TotalVolume, r.BuyVolume, r.SellVolume)
	}
	if r.BuySellRatio == nil || *r.BuySellRatio != 2 {
		t.Errorf("buy_sell_ratio = %v, want 2", r.BuySellRatio)
	}
	if r.PriceChangePct == nil || *r.PriceChangePct != 4 {
		t.Errorf("price_change_pct = %v, want 4", r.PriceChangePct)
	}
}

func TestComputeDailyMetricsRatioNullOnZeroSells(t *testing.T) {
	bars := []*domain.PriceBar{
		{Symbol: "AAPL", Date: day(1), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1},
	}
	trades := []*domain.Trade{trade("AAPL", 1, domain.TradeSideBuy, 100)}

	rows, _ := ComputeDailyMetrics(bars, trades)
	if rows[0].BuySellRatio != nil {
		t.Fatal("buy_sell_ratio must be nil with zero sell volume")
	}
	if rows[0].TradingSignal != domain.SignalNeutral {
		t.Fatalf("signal = %s, want NEUTRAL with nil ratio", rows[0].TradingSignal)
	}
}

func TestTradingSignal(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		name   string
		ret    *float64
		ratio  *float64
		expect string
	}{
		{"buy", f(2.5), f(1.2), domain.SignalBuy},
		{"sell", f(-2.5), f(0.8), domain.SignalSell},
		{"return too small", f(1.9), f(1.2), domain.SignalNeutral},
		{"ratio too small", f(2.5), f(1.1), domain.SignalNeutral},
		{"sell ratio boundary", f(-2.5), f(0.9), domain.SignalNeutral},
		{"nil return", nil, f(1.2), domain.SignalNeutral},
		{"nil ratio", f(2.5), nil, domain.SignalNeutral},
	}
	for _, c := range cases {
		if got := TradingSignal(c.ret, c.ratio); got != c.expect {
			t.Errorf("%s: got %s, want %s", c.name, got, c.expect)
		}
	}
}
