package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

// TransactionStore is an in-memory implementation of
// eventstore.TransactionStore. Versions are tracked per portfolio id.
type TransactionStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Transaction // keyed by transaction_id
	versions *eventstore.Versions
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore(versions *eventstore.Versions) *TransactionStore {
	return &TransactionStore{
		data:     make(map[string]*domain.Transaction),
		versions: versions,
	}
}

// Insert adds one transaction. Returns ErrDuplicateKey if transaction_id
// exists.
func (s *TransactionStore) Insert(_ context.Context, x *domain.Transaction) error {
	if x == nil || x.TransactionID == "" || x.PortfolioID == "" {
		return eventstore.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[x.TransactionID]; exists {
		return eventstore.ErrDuplicateKey
	}

	cp := *x
	s.data[x.TransactionID] = &cp
	s.versions.Bump(x.PortfolioID)
	return nil
}

// InsertBulk adds multiple transactions. Fails the entire batch on any
// duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(txs))
	for _, x := range txs {
		if x == nil || x.TransactionID == "" || x.PortfolioID == "" {
			return eventstore.ErrInvalidInput
		}
		if _, exists := s.data[x.TransactionID]; exists {
			return eventstore.ErrDuplicateKey
		}
		if _, exists := batchKeys[x.TransactionID]; exists {
			return eventstore.ErrDuplicateKey
		}
		batchKeys[x.TransactionID] = struct{}{}
	}

	for _, x := range txs {
		cp := *x
		s.data[x.TransactionID] = &cp
		s.versions.Bump(x.PortfolioID)
	}
	return nil
}

// GetByDateRange retrieves transactions for the portfolios within [from, to]
// inclusive, ordered by (portfolio_id, timestamp) ASC. Empty portfolios
// means all.
func (s *TransactionStore) GetByDateRange(_ context.Context, portfolios []string, from, to time.Time) ([]*domain.Transaction, error) {
	wanted := symbolSet(portfolios)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, x := range s.data {
		if wanted != nil {
			if _, ok := wanted[x.PortfolioID]; !ok {
				continue
			}
		}
		if x.Date.Before(from) || x.Date.After(to) {
			continue
		}
		cp := *x
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PortfolioID != result[j].PortfolioID {
			return result[i].PortfolioID < result[j].PortfolioID
		}
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].TransactionID < result[j].TransactionID
	})
	return result, nil
}

// Portfolios lists distinct portfolio ids in sorted order.
func (s *TransactionStore) Portfolios(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, x := range s.data {
		seen[x.PortfolioID] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

var _ eventstore.TransactionStore = (*TransactionStore)(nil)
