package engine

import (
	"fmt"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/store"
	"github.com/michaelv2/claude-cortex-core/internal/storage"
)

// ExportedMemory is the canonical-field-name JSON representation used by
// export/import (spec.md §6 "Import/export format").
type ExportedMemory struct {
	ID           string         `json:"id"`
	Type         storage.MemoryType `json:"type"`
	Category     storage.Category   `json:"category"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Project      string         `json:"project"`
	Scope        storage.Scope  `json:"scope"`
	Transferable bool           `json:"transferable"`
	Tags         []string       `json:"tags"`
	Salience     float64        `json:"salience"`
	DecayedScore float64        `json:"decayed_score"`
	AccessCount  int            `json:"access_count"`
	LastAccessed string         `json:"last_accessed"`
	CreatedAt    string         `json:"created_at"`
	Metadata     map[string]any `json:"metadata"`
}

// ExportMemories returns every memory scoped to project or to the global
// project as the canonical export representation. When project is empty it
// returns memories of all projects, leaving out those not marked
// transferable.
func (e *Engine) ExportMemories(project string) ([]*ExportedMemory, error) {
	memories, err := e.store.List(&storage.MemoryFilters{
		Project: project, IncludeGlobal: true, Limit: 1000000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export memories: %w", err)
	}

	exported := make([]*ExportedMemory, 0, len(memories))
	for _, m := range memories {
		if !m.Transferable && project == "" {
			continue
		}
		exported = append(exported, toExported(m))
	}
	return exported, nil
}

func toExported(m *storage.Memory) *ExportedMemory {
	return &ExportedMemory{
		ID: m.ID, Type: m.Type, Category: m.Category, Title: m.Title, Content: m.Content,
		Project: m.Project, Scope: m.Scope, Transferable: m.Transferable, Tags: m.Tags,
		Salience: m.Salience, DecayedScore: m.DecayedScore, AccessCount: m.AccessCount,
		LastAccessed: m.LastAccessed.Format("2006-01-02T15:04:05Z07:00"),
		CreatedAt:    m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Metadata:     m.Metadata,
	}
}

// ImportResult reports how many memories were inserted versus skipped as
// duplicates.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportMemories inserts memories from the canonical export format,
// additively and idempotently: rows whose (project, title, created_at)
// triple already exists are silently skipped (spec.md §6).
func (e *Engine) ImportMemories(data []*ExportedMemory) (*ImportResult, error) {
	result := &ImportResult{}

	existing, err := e.store.List(&storage.MemoryFilters{IncludeGlobal: true, Limit: 1000000})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing memories for import: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[dedupeKey(m.Project, m.Title, m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))] = true
	}

	for _, em := range data {
		key := dedupeKey(em.Project, em.Title, em.CreatedAt)
		if seen[key] {
			result.Skipped++
			continue
		}

		addOpts := &store.AddOptions{
			Title:          em.Title,
			Content:        em.Content,
			Category:       em.Category,
			Tags:           em.Tags,
			Type:           em.Type,
			Project:        em.Project,
			Scope:          em.Scope,
			Transferable:   em.Transferable,
			SupplySalience: &em.Salience,
		}
		if createdAt, err := time.Parse("2006-01-02T15:04:05Z07:00", em.CreatedAt); err == nil {
			addOpts.CreatedAt = &createdAt
		}

		if _, err := e.store.Add(addOpts); err != nil {
			return nil, fmt.Errorf("failed to import memory %q: %w", em.Title, err)
		}

		seen[key] = true
		result.Imported++
	}

	return result, nil
}

func dedupeKey(project, title, createdAt string) string {
	return project + "\x00" + title + "\x00" + createdAt
}
