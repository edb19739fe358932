package knowledge

import (
	"context"
	"sync"
)

// HistoryStore persists the append-only history of applied fixes.
//
// Implementations must treat entries as immutable: Append copies, and
// nothing ever mutates or deletes a stored entry.
type HistoryStore interface {
	// Append stores a new history entry.
	Append(ctx context.Context, entry *HistoryEntry) error

	// List returns all entries in insertion order.
	List(ctx context.Context) ([]HistoryEntry, error)

	// RuleStats returns per-rule attempt/success aggregates.
	RuleStats(ctx context.Context) (map[string]RuleStats, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-memory HistoryStore used by tests and by deployments
// that do not need persistence across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the entry.
func (s *MemoryStore) Append(ctx context.Context, entry *HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

// List returns a copy of all entries in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// RuleStats aggregates attempts and successes per rule.
func (s *MemoryStore) RuleStats(ctx context.Context) (map[string]RuleStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[string]RuleStats)
	for _, e := range s.entries {
		if e.RuleID == "" {
			continue
		}
		st := stats[e.RuleID]
		st.Attempts++
		if e.Success {
			st.Successes++
		}
		stats[e.RuleID] = st
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
