// Package querycache memoizes computed result tables keyed by query
// identity and data version.
//
// Per-key state machine: EMPTY -> COMPUTING -> READY. At most one
// computation runs per key; concurrent callers for the same key await the
// in-flight result instead of recomputing. A READY entry whose data version
// no longer matches the caller's is treated as EMPTY, which is the only
// invalidation path. Bounded LRU eviction applies to READY entries only;
// COMPUTING entries are never evicted mid-flight.
package querycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"market-analytics-lab/internal/domain"
)

type state int

const (
	stateComputing state = iota
	stateReady
)

type entry struct {
	key     string
	state   state
	payload *domain.ResultTable
	version uint64
	// computedAt is set on the COMPUTING->READY transition.
	computedAt time.Time
	elem       *list.Element

	// done is closed when the computation finishes; err is valid after.
	done chan struct{}
	err  error
}

// ComputeFunc produces the payload for a cache key. It runs detached from
// any single waiter's context so that cancelling one waiter never aborts
// the computation for the others.
type ComputeFunc func(ctx context.Context) (*domain.ResultTable, error)

// Stats are cumulative cache counters.
type Stats struct {
	Hits       int64
	Misses     int64
	StaleDrops int64
	Evictions  int64
}

// Cache is a bounded, version-aware memoization layer. Safe for concurrent
// use. The zero value is not usable; construct with New.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lru      *list.List // READY entries, most recent at front
	capacity int
	stats    Stats
}

// New creates a cache holding at most capacity READY entries.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		entries:  make(map[string]*entry),
		lru:      list.New(),
		capacity: capacity,
	}
}

// GetOrCompute returns the cached payload for (key, version), starting
// compute if no fresh entry exists. The boolean reports a cache hit.
//
// Waiters block until the in-flight computation finishes or their own ctx
// is cancelled; cancellation abandons the wait without aborting the
// computation. A compute error is returned to every waiter of that flight
// and the entry is discarded so the next call retries.
func (c *Cache) GetOrCompute(ctx context.Context, key string, version uint64, compute ComputeFunc) (*domain.ResultTable, bool, error) {
	first := true
	for {
		c.mu.Lock()
		e, ok := c.entries[key]

		if ok && e.state == stateReady {
			if e.version == version {
				c.lru.MoveToFront(e.elem)
				if first {
					c.stats.Hits++
				}
				payload := e.payload
				c.mu.Unlock()
				return payload, first, nil
			}
			// Stale version: drop and recompute.
			c.stats.StaleDrops++
			c.removeReadyLocked(e)
			ok = false
		}

		if !ok {
			if first {
				c.stats.Misses++
			}
			e = &entry{
				key:     key,
				state:   stateComputing,
				version: version,
				done:    make(chan struct{}),
			}
			c.entries[key] = e
			c.mu.Unlock()
			// Detach from the caller's context: waiters come and go, the
			// computation belongs to the key.
			go c.run(context.WithoutCancel(ctx), e, compute)
		} else {
			c.mu.Unlock()
		}
		first = false

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-e.done:
		}
		if e.err != nil {
			return nil, false, e.err
		}
		// Loop to re-read the entry: the finished flight may already be
		// stale against this caller's version.
	}
}

// run executes the computation and publishes the COMPUTING->READY
// transition, or discards the entry on error.
func (c *Cache) run(ctx context.Context, e *entry, compute ComputeFunc) {
	payload, err := compute(ctx)

	c.mu.Lock()
	if err != nil {
		e.err = err
		delete(c.entries, e.key)
	} else {
		e.state = stateReady
		e.payload = payload
		e.computedAt = time.Now()
		e.elem = c.lru.PushFront(e)
		c.evictLocked()
	}
	c.mu.Unlock()
	close(e.done)
}

// evictLocked trims the LRU tail down to capacity. Only READY entries live
// in the LRU, so in-flight computations are never touched.
func (c *Cache) evictLocked() {
	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest == nil {
			return
		}
		c.removeReadyLocked(oldest.Value.(*entry))
		c.stats.Evictions++
	}
}

func (c *Cache) removeReadyLocked(e *entry) {
	c.lru.Remove(e.elem)
	e.elem = nil
	delete(c.entries, e.key)
}

// Len returns the number of READY entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cumulative counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
