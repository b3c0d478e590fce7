package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

// TradeStore is an in-memory implementation of eventstore.TradeStore.
type TradeStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Trade // keyed by trade_id
	versions *eventstore.Versions
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore(versions *eventstore.Versions) *TradeStore {
	return &TradeStore{
		data:     make(map[string]*domain.Trade),
		versions: versions,
	}
}

// Insert adds one trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.Symbol == "" {
		return eventstore.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return eventstore.ErrDuplicateKey
	}

	cp := *t
	s.data[t.TradeID] = &cp
	s.versions.Bump(t.Symbol)
	return nil
}

// InsertBulk adds multiple trades. Fails the entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.Symbol == "" {
			return eventstore.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return eventstore.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return eventstore.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		cp := *t
		s.data[t.TradeID] = &cp
		s.versions.Bump(t.Symbol)
	}
	return nil
}

// GetByDateRange retrieves trades for the symbols within [from, to]
// inclusive, ordered by (symbol, timestamp) ASC. Empty symbols means all.
func (s *TradeStore) GetByDateRange(_ context.Context, symbols []string, from, to time.Time) ([]*domain.Trade, error) {
	wanted := symbolSet(symbols)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if wanted != nil {
			if _, ok := wanted[t.Symbol]; !ok {
				continue
			}
		}
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}

var _ eventstore.TradeStore = (*TradeStore)(nil)
