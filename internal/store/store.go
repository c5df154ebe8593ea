// Package store implements the engine's memory lifecycle operations:
// insert with salience scoring and auto-linking, relevance-ranked search
// with reinforcement side effects, access, and forget (spec.md §4.4).
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/decay"
	"github.com/michaelv2/claude-cortex-core/internal/engineerr"
	"github.com/michaelv2/claude-cortex-core/internal/linkgraph"
	"github.com/michaelv2/claude-cortex-core/internal/logging"
	"github.com/michaelv2/claude-cortex-core/internal/similarity"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

var log = logging.GetLogger("store")

// maxContentBytes is the hard content-size bound (spec.md §4.4 step 1).
const maxContentBytes = 10 * 1024

const truncationSuffix = "\n[truncated]"

// softThresholdRatio triggers a scheduled consolidation once short-term
// count crosses this fraction of its cap.
const softThresholdRatio = 0.9

// Store wires storage, decay, similarity, and the link graph into the
// engine's memory CRUD and search surface.
type Store struct {
	db                        *storage.Database
	graph                     *linkgraph.Graph
	maxShortTerm              int
	onSoftThreshold           func()
	baseDecayRate             float64
	bulkDeleteSafetyThreshold int

	mu         sync.Mutex
	lastAccess map[string]time.Time
}

// Tuning carries config-driven thresholds consumed by store operations
// (spec.md §6); a zero value in any field falls back to its documented
// default.
type Tuning struct {
	BaseDecayRate             float64
	BulkDeleteSafetyThreshold int
}

// AddOptions carries insert parameters; StrictMode requests a hard
// ContentTooLarge error instead of silent truncation.
type AddOptions struct {
	Title         string
	Content       string
	Category      storage.Category
	Tags          []string
	Importance    decay.ImportanceHint
	Type          storage.MemoryType
	Project       string
	Scope         storage.Scope
	Transferable  bool
	SupplySalience *float64
	CreatedAt     *time.Time
	StrictMode    bool
}

// New builds a Store over db, wiring the link graph and a soft-threshold
// callback the caller uses to schedule asynchronous consolidation, applying
// documented defaults for any tuning value left at zero.
func New(db *storage.Database, maxShortTerm int, onSoftThreshold func(), tuning Tuning) *Store {
	baseDecayRate := tuning.BaseDecayRate
	if baseDecayRate <= 0 {
		baseDecayRate = decay.BaseDecayRate
	}
	bulkDeleteSafetyThreshold := tuning.BulkDeleteSafetyThreshold
	if bulkDeleteSafetyThreshold <= 0 {
		bulkDeleteSafetyThreshold = BulkDeleteSafetyThreshold
	}
	return &Store{
		db:                        db,
		graph:                     linkgraph.New(db),
		maxShortTerm:              maxShortTerm,
		onSoftThreshold:           onSoftThreshold,
		baseDecayRate:             baseDecayRate,
		bulkDeleteSafetyThreshold: bulkDeleteSafetyThreshold,
		lastAccess:                make(map[string]time.Time),
	}
}

// Add inserts a new memory: enforces the content bound, scores salience,
// suggests a category, extracts tags, inserts transactionally, auto-links
// against existing neighbors, and schedules consolidation if the
// short-term population has crossed its soft threshold.
func (s *Store) Add(opts *AddOptions) (*storage.Memory, error) {
	content := opts.Content
	if len(content) > maxContentBytes {
		if opts.StrictMode {
			return nil, engineerr.New(engineerr.CodeContentTooLarge, fmt.Sprintf("content is %d bytes, exceeds %d byte limit", len(content), maxContentBytes))
		}
		content = truncate(content, maxContentBytes)
	}

	salience := decay.ScoreSalience(content, opts.Importance)
	if opts.SupplySalience != nil {
		salience = *opts.SupplySalience
	}

	category := opts.Category
	if category == "" {
		category = decay.SuggestCategory(content)
	} else if !storage.IsValidCategory(category) {
		return nil, engineerr.New(engineerr.CodeInvalidQuery, fmt.Sprintf("unknown category: %s", category))
	}

	tags := decay.ExtractTags(content, opts.Tags)

	memType := opts.Type
	if memType == "" {
		memType = storage.TypeShortTerm
	}

	scope := opts.Scope
	if scope == "" {
		scope = storage.ScopeProject
	}

	if err := s.db.CheckSize(); err != nil {
		return nil, err
	}

	m := &storage.Memory{
		Type:         memType,
		Category:     category,
		Title:        opts.Title,
		Content:      content,
		Project:      opts.Project,
		Scope:        scope,
		Transferable: opts.Transferable,
		Tags:         tags,
		Salience:     salience,
		DecayedScore: salience,
	}
	if opts.CreatedAt != nil {
		m.CreatedAt = *opts.CreatedAt
	}

	if err := s.db.CreateMemory(m); err != nil {
		return nil, fmt.Errorf("failed to add memory: %w", err)
	}

	if err := s.graph.AutoLink(m); err != nil {
		log.Warn("auto-link failed", "memory_id", m.ID, "error", err)
	}

	if memType == storage.TypeShortTerm && s.maxShortTerm > 0 {
		count, err := s.shortTermCount(opts.Project)
		if err == nil && float64(count) >= float64(s.maxShortTerm)*softThresholdRatio {
			if s.onSoftThreshold != nil {
				s.onSoftThreshold()
			}
		}
	}

	log.LogOperation("memory_added", "id", m.ID, "category", m.Category, "salience", m.Salience)
	return m, nil
}

func (s *Store) shortTermCount(project string) (int, error) {
	memories, err := s.db.ListMemories(&storage.MemoryFilters{
		Project: project, IncludeGlobal: true, Type: storage.TypeShortTerm, Limit: 100000,
	})
	if err != nil {
		return 0, err
	}
	return len(memories), nil
}

func truncate(content string, max int) string {
	limit := max - len(truncationSuffix)
	if limit < 0 {
		limit = 0
	}
	if limit > len(content) {
		limit = len(content)
	}
	return content[:limit] + truncationSuffix
}

// Get fetches a memory by id without recording access.
func (s *Store) Get(id string) (*storage.Memory, error) {
	m, err := s.db.GetMemory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	if m == nil {
		return nil, engineerr.New(engineerr.CodeMemoryNotFound, fmt.Sprintf("no memory with id %s", id))
	}
	return m, nil
}

// List returns memories matching filters without affecting access stats.
func (s *Store) List(f *storage.MemoryFilters) ([]*storage.Memory, error) {
	return s.db.ListMemories(f)
}

// Link creates or strengthens an edge between two memories.
func (s *Store) Link(sourceID, targetID string, rel storage.Relationship, strength float64) error {
	source, err := s.Get(sourceID)
	if err != nil {
		return err
	}
	if _, err := s.Get(targetID); err != nil {
		return err
	}
	if err := s.graph.Link(source.ID, targetID, rel, strength); err != nil {
		return engineerr.Wrap(engineerr.CodeInvalidRelationship, err.Error(), err)
	}
	return nil
}

// GetRelated returns a memory's neighbors ordered by edge strength.
func (s *Store) GetRelated(id string) ([]*storage.MemoryLink, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.graph.GetRelated(id)
}

// TagSimilarity scores query tokens against a memory's tag set, used by the
// search ranking function's tag-match component.
func TagSimilarity(query string, tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	tagText := strings.Join(tags, " ")
	return similarity.Jaccard(query, tagText)
}
