// Package engine is the memory engine's composition root: it wires
// storage, decay, similarity, the store, the link graph, and consolidation
// together behind the 15 operations a tool host consumes (spec.md §6).
// It owns no transport of its own — wiring it to a stdio or RPC surface is
// left to the embedder.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/consolidation"
	"github.com/michaelv2/claude-cortex-core/internal/decay"
	"github.com/michaelv2/claude-cortex-core/internal/engineerr"
	"github.com/michaelv2/claude-cortex-core/internal/logging"
	"github.com/michaelv2/claude-cortex-core/internal/store"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
	"github.com/michaelv2/claude-cortex-core/pkg/config"
)

var log = logging.GetLogger("engine")

// Engine is the top-level facade embedders construct once per process.
type Engine struct {
	db            *storage.Database
	store         *store.Store
	consolidator  *consolidation.Consolidator
	cfg           *config.Config
	mu            sync.Mutex
	currentProject string
}

// Open opens the database at cfg's configured path (honoring the legacy
// fallback), runs migrations, and constructs a ready Engine.
func Open(cfg *config.Config) (*Engine, error) {
	path := config.ResolveDatabasePath(cfg.Database.Path)

	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	e := &Engine{
		db:             db,
		cfg:            cfg,
		currentProject: cfg.Project,
	}
	e.store = store.New(db, cfg.Limits.MaxShortTerm, e.scheduleConsolidation, store.Tuning{
		BaseDecayRate:             cfg.Decay.BaseDecayRate,
		BulkDeleteSafetyThreshold: cfg.Limits.BulkDeleteSafety,
	})
	e.consolidator = consolidation.New(db, consolidation.Limits{
		MaxShortTerm:             cfg.Limits.MaxShortTerm,
		MaxLongTerm:              cfg.Limits.MaxLongTerm,
		BaseDecayRate:            cfg.Decay.BaseDecayRate,
		PromotionThreshold:       cfg.Decay.SalienceThreshold,
		MergeSimilarityThreshold: cfg.Decay.MergeSimThreshold,
	})

	if e.consolidator.ShouldRun() {
		go e.runBackgroundConsolidation()
	}

	return e, nil
}

// Close releases the underlying database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// scheduleConsolidation is the Store's soft-threshold callback; it runs
// consolidation asynchronously so Add never blocks on it.
func (e *Engine) scheduleConsolidation() {
	go e.runBackgroundConsolidation()
}

func (e *Engine) runBackgroundConsolidation() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.consolidator.Run(ctx, false); err != nil {
		log.LogError("background_consolidation", err)
	}
}

// RememberOptions is remember's input (spec.md §6).
type RememberOptions struct {
	Title      string
	Content    string
	Category   storage.Category
	Tags       []string
	Importance string
	Type       storage.MemoryType
	Project    string
}

// Remember inserts a new memory and returns its id.
func (e *Engine) Remember(opts *RememberOptions) (string, error) {
	project := opts.Project
	if project == "" {
		project = e.GetProject()
	}

	m, err := e.store.Add(&store.AddOptions{
		Title:      opts.Title,
		Content:    opts.Content,
		Category:   opts.Category,
		Tags:       opts.Tags,
		Importance: decay.ImportanceHint(opts.Importance),
		Type:       opts.Type,
		Project:    project,
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// RecallOptions is recall's input.
type RecallOptions struct {
	Query         string
	Project       string
	Category      storage.Category
	MinSalience   float64
	Limit         int
	IncludeGlobal bool
	Mode          store.SearchMode
}

// Recall searches for memories ranked by relevance.
func (e *Engine) Recall(opts *RecallOptions) ([]*store.SearchResult, error) {
	project := opts.Project
	if project == "" {
		project = e.GetProject()
	}
	return e.store.Search(&store.SearchOptions{
		Query:         opts.Query,
		Project:       project,
		Category:      opts.Category,
		MinSalience:   opts.MinSalience,
		IncludeGlobal: opts.IncludeGlobal,
		Limit:         opts.Limit,
		Mode:          opts.Mode,
	})
}

// ContextSummary groups recent memories into the buckets a host renders as
// session-start context (spec.md §6 "get_context").
type ContextSummary struct {
	KeyDecisions []*storage.Memory
	Patterns     []*storage.Memory
	Pending      []*storage.Memory
	Recent       []*storage.Memory
}

// GetContext builds a structured context summary for a project, optionally
// narrowed by query.
func (e *Engine) GetContext(query, project string) (*ContextSummary, error) {
	if project == "" {
		project = e.GetProject()
	}

	fetch := func(category storage.Category, limit int) ([]*storage.Memory, error) {
		return e.store.List(&storage.MemoryFilters{
			Project: project, IncludeGlobal: true, Category: category, Limit: limit,
		})
	}

	decisions, err := fetch(storage.CategoryArchitecture, 10)
	if err != nil {
		return nil, err
	}
	patterns, err := fetch(storage.CategoryPattern, 10)
	if err != nil {
		return nil, err
	}
	pending, err := fetch(storage.CategoryTodo, 10)
	if err != nil {
		return nil, err
	}

	var recent []*storage.Memory
	if query != "" {
		results, err := e.store.Search(&store.SearchOptions{Query: query, Project: project, IncludeGlobal: true, Limit: 10})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			recent = append(recent, r.Memory)
		}
	} else {
		recent, err = e.store.List(&storage.MemoryFilters{Project: project, IncludeGlobal: true, Limit: 10})
		if err != nil {
			return nil, err
		}
	}

	return &ContextSummary{KeyDecisions: decisions, Patterns: patterns, Pending: pending, Recent: recent}, nil
}

// Forget deletes memories matching filters.
func (e *Engine) Forget(opts *store.ForgetOptions) (*store.ForgetResult, error) {
	return e.store.Forget(opts)
}

// AccessMemory performs the single-memory reinforcement step.
func (e *Engine) AccessMemory(id string) (*storage.Memory, error) {
	return e.store.Access(id)
}

// Consolidate runs (or previews) a maintenance pass, bypassing the
// startup/timer MinInterval guard since it was invoked explicitly.
func (e *Engine) Consolidate(ctx context.Context, dryRun bool) (*consolidation.Result, error) {
	return e.consolidator.Run(ctx, dryRun)
}

// MemoryStatsResult reports counts by type and category.
type MemoryStatsResult struct {
	Total        int
	ByType        map[storage.MemoryType]int
	ByCategory    map[storage.Category]int
	DatabaseBytes int64
}

// MemoryStats gathers engine-wide counts for reporting.
func (e *Engine) MemoryStats() (*MemoryStatsResult, error) {
	all, err := e.store.List(&storage.MemoryFilters{IncludeGlobal: true, Limit: 1000000})
	if err != nil {
		return nil, err
	}

	result := &MemoryStatsResult{
		ByType:     make(map[storage.MemoryType]int),
		ByCategory: make(map[storage.Category]int),
	}
	for _, m := range all {
		result.Total++
		result.ByType[m.Type]++
		result.ByCategory[m.Category]++
	}

	stats, err := e.db.GetStats()
	if err == nil {
		result.DatabaseBytes = stats.FileSizeBytes
	}

	return result, nil
}

// GetRelated returns a memory's neighbors ordered by edge strength.
func (e *Engine) GetRelated(id string) ([]*storage.MemoryLink, error) {
	return e.store.GetRelated(id)
}

// LinkMemories creates or strengthens an edge between two memories.
func (e *Engine) LinkMemories(sourceID, targetID string, rel storage.Relationship, strength float64) error {
	return e.store.Link(sourceID, targetID, rel, strength)
}

// GetProject returns the current scoping project.
func (e *Engine) GetProject() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentProject
}

// SetProject overrides the current scoping project.
func (e *Engine) SetProject(project string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentProject = project
}

// StartSession begins a bounded work period for a project.
func (e *Engine) StartSession(project string) (*storage.Session, error) {
	if project == "" {
		project = e.GetProject()
	}
	s := &storage.Session{Project: project, StartedAt: time.Now().UTC()}
	if err := e.db.CreateSession(s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// EndSession closes a session, recording its summary.
func (e *Engine) EndSession(sessionID, summary string) (*storage.Session, error) {
	if err := e.db.EndSession(sessionID, summary); err != nil {
		return nil, engineerr.New(engineerr.CodeSessionNotFound, fmt.Sprintf("no open session with id %s", sessionID))
	}
	return e.db.GetSession(sessionID)
}
