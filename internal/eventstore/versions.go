package eventstore

import "sync"

// Versions tracks a monotonically increasing data version per entity.
// Every ingest for an entity bumps its counter; cache entries keyed to an
// older version become stale. Process-local: backends share one Versions
// instance through Store.
type Versions struct {
	mu sync.RWMutex
	v  map[string]uint64
}

// NewVersions creates an empty version tracker.
func NewVersions() *Versions {
	return &Versions{v: make(map[string]uint64)}
}

// Bump increments the entity's version and returns the new value.
func (s *Versions) Bump(entity string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v[entity]++
	return s.v[entity]
}

// Get returns the entity's current version, zero if never ingested.
func (s *Versions) Get(entity string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v[entity]
}

// Combined folds the versions of several entities into one value that
// changes whenever any member entity changes. An empty slice folds every
// tracked entity, so unfiltered queries also observe ingestion.
func (s *Versions) Combined(entities []string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum uint64
	if len(entities) == 0 {
		for _, v := range s.v {
			sum += v
		}
		return sum
	}
	for _, e := range entities {
		sum += s.v[e]
	}
	return sum
}
