package store

import (
	"sync"
	"time"

	"github.com/psantana5/botkeeper/pkg/models"
)

// defaultKeep bounds the ring when no size is configured
const defaultKeep = 200

// MemoryStore keeps the most recent cycles in a bounded in-memory ring.
// This is the default backend: history survives only as long as the daemon.
type MemoryStore struct {
	mu     sync.RWMutex
	cycles []*models.Cycle // oldest first
	keep   int
}

// NewMemoryStore creates a memory store holding at most keep cycles
func NewMemoryStore(keep int) *MemoryStore {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &MemoryStore{keep: keep}
}

// SaveCycle appends a copy, evicting the oldest entry when full
func (s *MemoryStore) SaveCycle(c *models.Cycle) error {
	cp := *c

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, &cp)
	if len(s.cycles) > s.keep {
		s.cycles = s.cycles[len(s.cycles)-s.keep:]
	}
	return nil
}

// ListCycles returns up to limit cycles, newest first
func (s *MemoryStore) ListCycles(limit int) ([]*models.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.cycles)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*models.Cycle, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *s.cycles[i]
		out = append(out, &cp)
	}
	return out, nil
}

// CountCycles returns the number of stored cycles
func (s *MemoryStore) CountCycles() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cycles), nil
}

// PruneOlderThan drops cycles that started before cutoff
func (s *MemoryStore) PruneOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cycles[:0]
	removed := 0
	for _, c := range s.cycles {
		if c.StartedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.cycles = kept
	return removed, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// HealthCheck is always healthy for the memory store
func (s *MemoryStore) HealthCheck() error {
	return nil
}

// Vacuum is a no-op for the memory store
func (s *MemoryStore) Vacuum() error {
	return nil
}
