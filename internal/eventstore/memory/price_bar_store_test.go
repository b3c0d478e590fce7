package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func bar(symbol string, n int) *domain.PriceBar {
	return &domain.PriceBar{
		Symbol: symbol,
		Date:   day(n),
		Open:   100, High: 110, Low: 90, Close: 105,
		Volume: 1000,
	}
}

func TestPriceBarStoreInsertAndDuplicate(t *testing.T) {
	versions := eventstore.NewVersions()
	s := NewPriceBarStore(versions)
	ctx := context.Background()

	if err := s.Insert(ctx, bar("AAPL", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, bar("AAPL", 1)); !errors.Is(err, eventstore.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if v := versions.Get("AAPL"); v != 1 {
		t.Fatalf("version = %d, want 1 (failed insert must not bump)", v)
	}
}

func TestPriceBarStoreBulkAtomic(t *testing.T) {
	s := NewPriceBarStore(eventstore.NewVersions())
	ctx := context.Background()

	if err := s.Insert(ctx, bar("AAPL", 2)); err != nil {
		t.Fatal(err)
	}
	// Batch containing a duplicate fails entirely.
	err := s.InsertBulk(ctx, []*domain.PriceBar{bar("AAPL", 3), bar("AAPL", 2)})
	if !errors.Is(err, eventstore.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	got, _ := s.GetBySymbol(ctx, "AAPL")
	if len(got) != 1 {
		t.Fatalf("failed batch must insert nothing, have %d bars", len(got))
	}
}

func TestPriceBarStoreRangeOrdering(t *testing.T) {
	s := NewPriceBarStore(eventstore.NewVersions())
	ctx := context.Background()

	// Inserted out of order across two symbols.
	for _, b := range []*domain.PriceBar{
		bar("MSFT", 2), bar("AAPL", 3), bar("AAPL", 1), bar("MSFT", 1), bar("AAPL", 2),
	} {
		if err := s.Insert(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetByDateRange(ctx, nil, day(1), day(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 bars, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		if a.Symbol > b.Symbol || (a.Symbol == b.Symbol && a.Date.After(b.Date)) {
			t.Fatalf("rows out of (symbol, date) order at %d", i)
		}
	}

	filtered, _ := s.GetByDateRange(ctx, []string{"MSFT"}, day(1), day(3))
	if len(filtered) != 2 {
		t.Fatalf("expected 2 MSFT bars, got %d", len(filtered))
	}

	narrow, _ := s.GetByDateRange(ctx, nil, day(2), day(2))
	if len(narrow) != 2 {
		t.Fatalf("expected 2 bars on day 2, got %d", len(narrow))
	}
}

func TestPriceBarStoreCopiesOnRead(t *testing.T) {
	s := NewPriceBarStore(eventstore.NewVersions())
	ctx := context.Background()
	if err := s.Insert(ctx, bar("AAPL", 1)); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetBySymbol(ctx, "AAPL")
	got[0].Close = -1

	again, _ := s.GetBySymbol(ctx, "AAPL")
	if again[0].Close != 105 {
		t.Fatal("mutating a read result must not affect stored rows")
	}
}

func TestPriceBarStoreSymbols(t *testing.T) {
	s := NewPriceBarStore(eventstore.NewVersions())
	ctx := context.Background()
	for _, sym := range []string{"MSFT", "AAPL", "GOOG"} {
		if err := s.Insert(ctx, bar(sym, 1)); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.Symbols(ctx)
	want := []string{"AAPL", "GOOG", "MSFT"}
	if len(got) != len(want) {
		t.Fatalf("symbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("symbols = %v, want %v", got, want)
		}
	}
}
