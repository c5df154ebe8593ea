package store

import (
	"fmt"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/engineerr"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

// BulkDeleteSafetyThreshold is the default count above which forget requires
// an explicit confirm (spec.md §4.4 "forget"), used when the Store wasn't
// constructed with a configuration override.
const BulkDeleteSafetyThreshold = 50

// ForgetOptions carries forget's filter parameters.
type ForgetOptions struct {
	IDs       []string
	Category  storage.Category
	OlderThan time.Duration
	DryRun    bool
	Confirm   bool
}

// ForgetResult reports how many memories were (or would be) deleted.
type ForgetResult struct {
	Deleted int
	Preview []*storage.Memory
}

// Forget deletes memories matching the given filters, previewing the
// candidate set first. If the candidate count exceeds the safety
// threshold, it refuses to delete unless Confirm is set.
func (s *Store) Forget(opts *ForgetOptions) (*ForgetResult, error) {
	candidates, err := s.candidatesFor(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forget candidates: %w", err)
	}

	if opts.DryRun {
		return &ForgetResult{Deleted: 0, Preview: candidates}, nil
	}

	if len(candidates) > s.bulkDeleteSafetyThreshold && !opts.Confirm {
		return nil, engineerr.New(engineerr.CodeBulkDeleteBlocked,
			fmt.Sprintf("%d memories match; exceeds the safety threshold of %d", len(candidates), s.bulkDeleteSafetyThreshold))
	}

	deleted := 0
	for _, m := range candidates {
		if err := s.db.DeleteMemory(m.ID); err != nil {
			log.Warn("forget delete failed", "id", m.ID, "error", err)
			continue
		}
		deleted++
	}

	return &ForgetResult{Deleted: deleted}, nil
}

func (s *Store) candidatesFor(opts *ForgetOptions) ([]*storage.Memory, error) {
	if len(opts.IDs) > 0 {
		var candidates []*storage.Memory
		for _, id := range opts.IDs {
			m, err := s.db.GetMemory(id)
			if err != nil {
				return nil, err
			}
			if m != nil {
				candidates = append(candidates, m)
			}
		}
		return candidates, nil
	}

	memories, err := s.db.ListMemories(&storage.MemoryFilters{
		Category: opts.Category, IncludeGlobal: true, Limit: 100000,
	})
	if err != nil {
		return nil, err
	}

	if opts.OlderThan <= 0 {
		return memories, nil
	}

	cutoff := time.Now().UTC().Add(-opts.OlderThan)
	var filtered []*storage.Memory
	for _, m := range memories {
		if m.CreatedAt.Before(cutoff) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}
