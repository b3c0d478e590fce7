// Package memory provides in-memory implementations of the eventstore
// contracts. Primary backend for tests and the pipeline binary. Every
// ingest bumps the entity's data version through the shared tracker.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

// PriceBarStore is an in-memory implementation of eventstore.PriceBarStore.
type PriceBarStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.PriceBar // keyed by (symbol, date)
	seq      int64
	versions *eventstore.Versions
}

// NewPriceBarStore creates a new in-memory price bar store.
func NewPriceBarStore(versions *eventstore.Versions) *PriceBarStore {
	return &PriceBarStore{
		data:     make(map[string]*domain.PriceBar),
		versions: versions,
	}
}

func barKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, date.Format(domain.DateLayout))
}

// Insert adds one bar. Returns ErrDuplicateKey if (symbol, date) exists.
func (s *PriceBarStore) Insert(_ context.Context, b *domain.PriceBar) error {
	if b == nil || b.Symbol == "" {
		return eventstore.ErrInvalidInput
	}

	key := barKey(b.Symbol, b.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return eventstore.ErrDuplicateKey
	}

	s.seq++
	cp := *b
	cp.Seq = s.seq
	s.data[key] = &cp
	s.versions.Bump(b.Symbol)
	return nil
}

// InsertBulk adds multiple bars. Fails the entire batch on any duplicate.
func (s *PriceBarStore) InsertBulk(_ context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return eventstore.ErrInvalidInput
		}
		key := barKey(b.Symbol, b.Date)
		if _, exists := s.data[key]; exists {
			return eventstore.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return eventstore.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		s.seq++
		cp := *b
		cp.Seq = s.seq
		s.data[barKey(b.Symbol, b.Date)] = &cp
		s.versions.Bump(b.Symbol)
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by (date, seq) ASC.
func (s *PriceBarStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if b.Symbol == symbol {
			cp := *b
			result = append(result, &cp)
		}
	}
	sortBars(result)
	return result, nil
}

// GetByDateRange retrieves bars for the symbols within [from, to] inclusive,
// ordered by (symbol, date, seq) ASC. Empty symbols means all.
func (s *PriceBarStore) GetByDateRange(_ context.Context, symbols []string, from, to time.Time) ([]*domain.PriceBar, error) {
	wanted := symbolSet(symbols)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if wanted != nil {
			if _, ok := wanted[b.Symbol]; !ok {
				continue
			}
		}
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		cp := *b
		result = append(result, &cp)
	}
	sortBars(result)
	return result, nil
}

// Symbols lists distinct symbols in sorted order.
func (s *PriceBarStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, b := range s.data {
		seen[b.Symbol] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for sym := range seen {
		result = append(result, sym)
	}
	sort.Strings(result)
	return result, nil
}

func sortBars(bars []*domain.PriceBar) {
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		if !bars[i].Date.Equal(bars[j].Date) {
			return bars[i].Date.Before(bars[j].Date)
		}
		return bars[i].Seq < bars[j].Seq
	})
}

func symbolSet(symbols []string) map[string]struct{} {
	if len(symbols) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

var _ eventstore.PriceBarStore = (*PriceBarStore)(nil)
