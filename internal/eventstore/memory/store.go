package memory

import "market-analytics-lab/internal/eventstore"

// NewStore assembles a fully in-memory event store with a fresh version
// tracker. Tests and the pipeline binary construct isolated instances so no
// state leaks between runs.
func NewStore() *eventstore.Store {
	versions := eventstore.NewVersions()
	return &eventstore.Store{
		Bars:         NewPriceBarStore(versions),
		Trades:       NewTradeStore(versions),
		Transactions: NewTransactionStore(versions),
		Versions:     versions,
	}
}
