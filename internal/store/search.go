package store

import (
	"sort"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/decay"
	"github.com/michaelv2/claude-cortex-core/internal/similarity"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

// Relevance component weights (spec.md §4.4 step 3).
const (
	weightBM25        = 0.30
	weightDecayed     = 0.25
	weightSalience    = 0.10
	weightRecencyMax  = 0.10
	weightCategoryMax = 0.10
	weightLinkMax     = 0.15
	weightTagMax      = 0.10
)

// reinforcementTopN is how many top results receive the search-time
// access/salience bump and participate in Hebbian co-linking.
const reinforcementTopN = 5

// queryEnrichmentTokenThreshold is the minimum count of net-new tokens a
// query must contribute before it's appended to the top result as context.
const queryEnrichmentTokenThreshold = 30

// SearchMode selects recall's ordering strategy.
type SearchMode string

const (
	ModeQuery     SearchMode = "query"
	ModeRecent    SearchMode = "recent"
	ModeImportant SearchMode = "important"
)

// SearchOptions carries recall's input parameters.
type SearchOptions struct {
	Query          string
	Project        string
	Category       storage.Category
	MinSalience    float64
	IncludeGlobal  bool
	IncludeDecayed bool
	Limit          int
	Mode           SearchMode
}

// SearchResult pairs a memory with its computed relevance score.
type SearchResult struct {
	Memory    *storage.Memory
	Relevance float64
}

// Search ranks memories by the blended relevance function, applies
// reinforcement side effects to the top hits, and returns the ordered list
// (spec.md §4.4 "Search").
func (s *Store) Search(opts *SearchOptions) ([]*SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	if opts.Mode == ModeRecent || (opts.Query == "" && opts.Mode == "") {
		return s.searchByFilter(opts, limit, "recent")
	}
	if opts.Mode == ModeImportant {
		return s.searchByFilter(opts, limit, "important")
	}

	candidates, err := s.db.SearchFTS(opts.Query, opts.Project, opts.IncludeGlobal, limit*3)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inferredCategory := decay.SuggestCategory(opts.Query)

	var results []*SearchResult
	for _, c := range candidates {
		m := c.Memory
		if opts.Category != "" && m.Category != opts.Category {
			continue
		}
		if opts.MinSalience > 0 && m.Salience < opts.MinSalience {
			continue
		}

		freshDecayed := decay.DecayedScore(m.Salience, m.LastAccessed, now, m.AccessCount, m.Type == storage.TypeLongTerm, s.baseDecayRate)
		if !opts.IncludeDecayed && freshDecayed < decay.DeletionThreshold(m.Category) {
			continue
		}

		relevance := weightBM25 * c.BM25
		relevance += weightDecayed * freshDecayed
		relevance += weightSalience * m.Salience
		relevance += recencyBoost(now, m.LastAccessed)
		if m.Category == inferredCategory {
			relevance += weightCategoryMax
		}
		relevance += weightLinkMax * s.linkBoost(m.ID)
		relevance += weightTagMax * TagSimilarity(opts.Query, m.Tags)

		results = append(results, &SearchResult{Memory: m, Relevance: relevance})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	if len(results) > limit {
		results = results[:limit]
	}

	s.applyReinforcement(results, opts.Query, now)

	return results, nil
}

// searchByFilter covers recall's "recent" and "important" modes, and the
// empty-query default, which skip the FTS join entirely and order purely by
// stored fields (spec.md §8 property 7).
func (s *Store) searchByFilter(opts *SearchOptions, limit int, mode string) ([]*SearchResult, error) {
	memories, err := s.db.ListMemories(&storage.MemoryFilters{
		Project:       opts.Project,
		IncludeGlobal: opts.IncludeGlobal,
		Category:      opts.Category,
		MinSalience:   opts.MinSalience,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}

	if mode == "important" {
		sort.SliceStable(memories, func(i, j int) bool { return memories[i].Salience > memories[j].Salience })
	}
	// "recent"/default ordering is already decayed_score DESC, last_accessed
	// DESC from ListMemories.

	results := make([]*SearchResult, 0, len(memories))
	for _, m := range memories {
		relevance := m.DecayedScore
		if mode == "important" {
			relevance = m.Salience
		}
		results = append(results, &SearchResult{Memory: m, Relevance: relevance})
	}
	return results, nil
}

func recencyBoost(now, lastAccessed time.Time) float64 {
	age := now.Sub(lastAccessed)
	switch {
	case age < time.Hour:
		return weightRecencyMax
	case age < 24*time.Hour:
		return weightRecencyMax / 2
	default:
		return 0
	}
}

func (s *Store) linkBoost(id string) float64 {
	mean := s.graph.MeanLinkedSalience(id, func(target string) (float64, bool) {
		m, err := s.db.GetMemory(target)
		if err != nil || m == nil {
			return 0, false
		}
		return m.Salience, true
	})
	return mean
}

// applyReinforcement bumps access stats and Hebbian-links the top search
// hits; failures here never fail the search itself (spec.md §7).
func (s *Store) applyReinforcement(results []*SearchResult, query string, now time.Time) {
	top := results
	if len(top) > reinforcementTopN {
		top = top[:reinforcementTopN]
	}

	var ids []string
	s.mu.Lock()
	for _, r := range top {
		ids = append(ids, r.Memory.ID)
		if err := s.db.Touch(r.Memory.ID, now); err != nil {
			log.Warn("reinforcement touch failed", "id", r.Memory.ID, "error", err)
			continue
		}
		bump := 0.05 / float64(1+r.Memory.AccessCount)
		newSalience := r.Memory.Salience + bump
		if newSalience > 1.0 {
			newSalience = 1.0
		}
		if err := s.db.UpdateMemory(r.Memory.ID, &storage.MemoryUpdate{Salience: &newSalience}); err != nil {
			log.Warn("reinforcement salience update failed", "id", r.Memory.ID, "error", err)
		}
		s.lastAccess[r.Memory.ID] = now
	}
	lastAccessSnapshot := make(map[string]time.Time, len(s.lastAccess))
	for k, v := range s.lastAccess {
		lastAccessSnapshot[k] = v
	}
	s.mu.Unlock()

	s.graph.ReinforceCoAccess(ids, now, lastAccessSnapshot)

	if len(top) > 0 && query != "" {
		s.maybeEnrichWithQuery(top[0].Memory, query)
	}
}

// maybeEnrichWithQuery appends the query to the top result's content as
// enrichment context when it contributes enough new tokens, bounded so the
// result still fits the content-size limit (spec.md §4.4 step 5).
func (s *Store) maybeEnrichWithQuery(m *storage.Memory, query string) {
	existingTokens := similarity.Tokenize(m.Content)
	queryTokens := similarity.Tokenize(query)

	newTokenCount := 0
	for tok := range queryTokens {
		if _, ok := existingTokens[tok]; !ok {
			newTokenCount++
		}
	}
	if newTokenCount < queryEnrichmentTokenThreshold {
		return
	}

	enriched := m.Content + "\n\n[context] " + query
	if len(enriched) > maxContentBytes {
		enriched = truncate(enriched, maxContentBytes)
	}

	if err := s.db.UpdateMemory(m.ID, &storage.MemoryUpdate{Content: &enriched}); err != nil {
		log.Warn("query enrichment failed", "id", m.ID, "error", err)
	}
}
