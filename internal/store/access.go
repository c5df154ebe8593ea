package store

import (
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

// Access performs the single-memory reinforcement step: bump access_count
// and last_accessed, boost salience by a diminishing amount (spec.md §4.4
// "accessMemory").
func (s *Store) Access(id string) (*storage.Memory, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.db.Touch(id, now); err != nil {
		return nil, err
	}

	bump := 0.05 / float64(1+m.AccessCount)
	newSalience := m.Salience + bump
	if newSalience > 1.0 {
		newSalience = 1.0
	}
	if err := s.db.UpdateMemory(id, &storage.MemoryUpdate{Salience: &newSalience}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	ids := []string{id}
	for otherID := range s.lastAccess {
		if otherID != id {
			ids = append(ids, otherID)
		}
	}
	lastAccessSnapshot := make(map[string]time.Time, len(s.lastAccess))
	for k, v := range s.lastAccess {
		lastAccessSnapshot[k] = v
	}
	s.lastAccess[id] = now
	s.mu.Unlock()

	s.graph.ReinforceCoAccess(ids, now, lastAccessSnapshot)

	return s.Get(id)
}
