package cache

import (
	"strings"
	"sync"
	"sync/atomic"
)

// #region key
// Key identifies one memoized feasibility result.
type Key struct {
	Model    string // model digest
	Pruner   string // pruner ID
	Solution string // solution.Key()
}

func (k Key) String() string {
	return strings.Join([]string{k.Model, k.Pruner, k.Solution}, "|")
}

// #endregion key

// #region stats
// Stats reports lookup counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// #endregion stats

// #region memory
// Memory is an unbounded in-process result cache. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]bool
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]bool)}
}

// Lookup returns the stored result for key and whether it was present.
func (m *Memory) Lookup(key Key) (bool, bool, error) {
	m.mu.RLock()
	v, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return v, ok, nil
}

// Store records the result for key.
func (m *Memory) Store(key Key, feasible bool) error {
	m.mu.Lock()
	m.entries[key] = feasible
	m.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the counters.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), Entries: n}
}

// #endregion memory
