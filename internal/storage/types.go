package storage

import (
	"encoding/json"
	"time"
)

// MemoryType is the lifecycle class of a Memory (spec.md §3).
type MemoryType string

const (
	TypeShortTerm MemoryType = "short_term"
	TypeLongTerm  MemoryType = "long_term"
	TypeEpisodic  MemoryType = "episodic"
)

// Category classifies a Memory; it affects its deletion threshold (§4.2).
type Category string

const (
	CategoryArchitecture Category = "architecture"
	CategoryPattern      Category = "pattern"
	CategoryPreference   Category = "preference"
	CategoryError        Category = "error"
	CategoryContext      Category = "context"
	CategoryLearning     Category = "learning"
	CategoryTodo         Category = "todo"
	CategoryNote         Category = "note"
	CategoryRelationship Category = "relationship"
	CategoryCustom       Category = "custom"
)

// Scope controls cross-project visibility.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeGlobal  Scope = "global"
)

// GlobalProject is the sentinel project value meaning "all projects".
const GlobalProject = "*"

// Relationship identifies the type of a MemoryLink edge (§3).
type Relationship string

const (
	RelReferences  Relationship = "references"
	RelExtends     Relationship = "extends"
	RelContradicts Relationship = "contradicts"
	RelRelated     Relationship = "related"
)

// ValidRelationships lists the authoritative relationship types (§4.6).
var ValidRelationships = []Relationship{RelReferences, RelExtends, RelContradicts, RelRelated}

// IsValidRelationship reports whether r is one of the authoritative types.
func IsValidRelationship(r Relationship) bool {
	for _, v := range ValidRelationships {
		if v == r {
			return true
		}
	}
	return false
}

// IsValidCategory reports whether c is a recognized category.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryArchitecture, CategoryPattern, CategoryPreference, CategoryError,
		CategoryContext, CategoryLearning, CategoryTodo, CategoryNote,
		CategoryRelationship, CategoryCustom:
		return true
	}
	return false
}

// Memory is the primary unit of the engine (spec.md §3).
type Memory struct {
	ID            string
	Type          MemoryType
	Category      Category
	Title         string
	Content       string
	Project       string
	Scope         Scope
	Transferable  bool
	Tags          []string
	Salience      float64
	DecayedScore  float64
	AccessCount   int
	LastAccessed  time.Time
	CreatedAt     time.Time
	Metadata      map[string]any
}

// TagsJSON serializes Tags as a JSON array for storage.
func (m *Memory) TagsJSON() string {
	if len(m.Tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(m.Tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// MetadataJSON serializes Metadata as a JSON object for storage.
func (m *Memory) MetadataJSON() string {
	if len(m.Metadata) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m.Metadata)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseTags parses a JSON tags array, defensively accepting malformed or
// empty input as an empty set (spec.md §9 "Dynamic content fields").
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

// ParseMetadata parses a JSON metadata object, defensively accepting
// unknown keys and malformed input as an empty map.
func ParseMetadata(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// MemoryLink is a typed, weighted directed edge between two Memory ids
// (spec.md §3).
type MemoryLink struct {
	ID           int64
	SourceID     string
	TargetID     string
	Relationship Relationship
	Strength     float64
	CreatedAt    time.Time
}

// Session is a bounded work period (spec.md §3).
type Session struct {
	ID               string
	Project          string
	StartedAt        time.Time
	EndedAt          *time.Time
	Summary          string
	MemoriesCreated  int
	MemoriesAccessed int
}

// MemoryFilters narrows ListMemories/consolidation scans.
type MemoryFilters struct {
	Project        string
	IncludeGlobal  bool
	Type           MemoryType
	Category       Category
	MinSalience    float64
	IncludeDecayed bool
	Limit          int
	Offset         int
}

// MemoryUpdate carries optional field updates (nil means "leave unchanged").
type MemoryUpdate struct {
	Content      *string
	Title        *string
	Tags         []string
	Salience     *float64
	DecayedScore *float64
	AccessCount  *int
	LastAccessed *time.Time
	Type         *MemoryType
	Metadata     map[string]any
}

// SearchResult pairs a raw FTS row with its bm25 relevance, before the
// store package's richer relevance blend (§4.4) is applied.
type SearchResult struct {
	Memory *Memory
	BM25   float64
}
