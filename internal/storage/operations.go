package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateMemory inserts a new memory, generating an id if m.ID is empty.
func (d *Database) CreateMemory(m *Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.LastAccessed.IsZero() {
		m.LastAccessed = m.CreatedAt
	}
	if m.Project == "" {
		m.Project = GlobalProject
	}
	if m.Type == "" {
		m.Type = TypeShortTerm
	}
	if m.Category == "" {
		m.Category = CategoryNote
	}
	if m.Scope == "" {
		m.Scope = ScopeProject
	}
	if m.DecayedScore == 0 {
		m.DecayedScore = m.Salience
	}

	_, err := d.db.Exec(`
		INSERT INTO memories (
			id, type, category, title, content, project, scope, transferable,
			tags, salience, decayed_score, access_count, last_accessed, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Type, m.Category, nullString(m.Title), m.Content, m.Project, m.Scope, m.Transferable,
		m.TagsJSON(), m.Salience, m.DecayedScore, m.AccessCount, m.LastAccessed, m.CreatedAt, m.MetadataJSON(),
	)
	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}
	return nil
}

// GetMemory fetches a memory by id. Returns (nil, nil) if not found.
func (d *Database) GetMemory(id string) (*Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRow(`
		SELECT id, type, category, title, content, project, scope, transferable,
		       tags, salience, decayed_score, access_count, last_accessed, created_at, metadata
		FROM memories WHERE id = ?`, id)

	m, err := scanMemoryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return m, nil
}

// UpdateMemory applies a sparse update to the row identified by id.
func (d *Database) UpdateMemory(id string, u *MemoryUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sets []string
	var args []any

	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Tags != nil {
		sets = append(sets, "tags = ?")
		tagsJSON, err := marshalTags(u.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		args = append(args, tagsJSON)
	}
	if u.Salience != nil {
		sets = append(sets, "salience = ?")
		args = append(args, *u.Salience)
	}
	if u.DecayedScore != nil {
		sets = append(sets, "decayed_score = ?")
		args = append(args, *u.DecayedScore)
	}
	if u.AccessCount != nil {
		sets = append(sets, "access_count = ?")
		args = append(args, *u.AccessCount)
	}
	if u.LastAccessed != nil {
		sets = append(sets, "last_accessed = ?")
		args = append(args, *u.LastAccessed)
	}
	if u.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *u.Type)
	}
	if u.Metadata != nil {
		sets = append(sets, "metadata = ?")
		metaJSON, err := marshalMetadata(u.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		args = append(args, metaJSON)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE memories SET %s WHERE id = ?", strings.Join(sets, ", "))
	result, err := d.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Touch bumps access_count and last_accessed, used on a search's top
// reinforced hits and on an explicit access.
func (d *Database) Touch(id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, at, id)
	return err
}

// DeleteMemory removes a memory and its links (ON DELETE CASCADE).
func (d *Database) DeleteMemory(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	result, err := d.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMemories returns memories matching filters, ordered by decayed_score
// descending.
func (d *Database) ListMemories(f *MemoryFilters) ([]*Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var whereClauses []string
	var args []any

	if f.Project != "" {
		if f.IncludeGlobal {
			whereClauses = append(whereClauses, "(project = ? OR project = ?)")
			args = append(args, f.Project, GlobalProject)
		} else {
			whereClauses = append(whereClauses, "project = ?")
			args = append(args, f.Project)
		}
	}
	if f.Type != "" {
		whereClauses = append(whereClauses, "type = ?")
		args = append(args, f.Type)
	}
	if f.Category != "" {
		whereClauses = append(whereClauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinSalience > 0 {
		whereClauses = append(whereClauses, "salience >= ?")
		args = append(args, f.MinSalience)
	}

	query := `SELECT id, type, category, title, content, project, scope, transferable,
		tags, salience, decayed_score, access_count, last_accessed, created_at, metadata
		FROM memories`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY decayed_score DESC, last_accessed DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, f.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// SearchFTS performs a full-text search and returns raw BM25-ranked hits,
// before the store package's relevance blend is applied.
func (d *Database) SearchFTS(query string, project string, includeGlobal bool, limit int) ([]*SearchResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}

	ftsQuery := EscapeFTS5Query(query)

	var whereClauses []string
	args := []any{ftsQuery}

	if project != "" {
		if includeGlobal {
			whereClauses = append(whereClauses, "(m.project = ? OR m.project = ?)")
			args = append(args, project, GlobalProject)
		} else {
			whereClauses = append(whereClauses, "m.project = ?")
			args = append(args, project)
		}
	}

	sqlQuery := `
		SELECT m.id, m.type, m.category, m.title, m.content, m.project, m.scope, m.transferable,
		       m.tags, m.salience, m.decayed_score, m.access_count, m.last_accessed, m.created_at, m.metadata,
		       bm25(memories_fts) as rank
		FROM memories_fts fts
		JOIN memories m ON m.id = fts.id
		WHERE memories_fts MATCH ?`

	if len(whereClauses) > 0 {
		sqlQuery += " AND " + strings.Join(whereClauses, " AND ")
	}
	sqlQuery += " ORDER BY rank"

	if limit <= 0 {
		limit = 20
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := d.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	var rawScores []float64
	for rows.Next() {
		var m Memory
		var title sql.NullString
		var tagsJSON, metaJSON string
		var bm25 float64

		err := rows.Scan(
			&m.ID, &m.Type, &m.Category, &title, &m.Content, &m.Project, &m.Scope, &m.Transferable,
			&tagsJSON, &m.Salience, &m.DecayedScore, &m.AccessCount, &m.LastAccessed, &m.CreatedAt, &metaJSON,
			&bm25,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		m.Title = title.String
		m.Tags = ParseTags(tagsJSON)
		m.Metadata = ParseMetadata(metaJSON)

		results = append(results, &SearchResult{Memory: &m, BM25: bm25})
		rawScores = append(rawScores, bm25)
	}

	normalizeBM25(results, rawScores)
	return results, nil
}

// normalizeBM25 rescales raw (negative-is-better) bm25 scores into [0,1],
// dividing by the strongest (most negative) score in the result set, so the
// best match becomes 1, rather than by a fixed constant, since SQLite's
// bm25() range varies by corpus size.
func normalizeBM25(results []*SearchResult, rawScores []float64) {
	if len(rawScores) == 0 {
		return
	}
	worst := rawScores[0]
	for _, s := range rawScores {
		if s < worst {
			worst = s
		}
	}
	if worst >= 0 {
		worst = -1
	}
	for _, r := range results {
		normalized := r.BM25 / worst
		if normalized > 1.0 {
			normalized = 1.0
		}
		if normalized < 0.0 {
			normalized = 0.0
		}
		r.BM25 = normalized
	}
}

// ftsSpecialChars are the characters spec.md §4.4 step 1 requires escaping
// before they reach FTS5's query parser.
const ftsSpecialChars = "-:*^()&|./,{}+"

var ftsBooleanOperators = map[string]bool{"AND": true, "OR": true, "NOT": true}

// EscapeFTS5Query quotes tokens that would otherwise be interpreted as FTS5
// syntax: the AND/OR/NOT operators and any token containing a double quote
// or one of ftsSpecialChars. Tokens with other punctuation are passed to
// FTS5 unquoted.
func EscapeFTS5Query(query string) string {
	fields := strings.Fields(query)
	escaped := make([]string, 0, len(fields))
	for _, field := range fields {
		if ftsBooleanOperators[field] || strings.ContainsAny(field, ftsSpecialChars) || strings.Contains(field, `"`) {
			quoted := strings.ReplaceAll(field, `"`, `""`)
			escaped = append(escaped, `"`+quoted+`"`)
		} else {
			escaped = append(escaped, field)
		}
	}
	return strings.Join(escaped, " ")
}

// CreateLink inserts or strengthens a directed edge between two memories.
// If an edge of the same relationship already exists, its strength is
// saturated (max 1.0) rather than duplicated, per spec.md §4.6.
func (d *Database) CreateLink(l *MemoryLink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !IsValidRelationship(l.Relationship) {
		return fmt.Errorf("invalid relationship type: %s", l.Relationship)
	}
	if l.SourceID == l.TargetID {
		return fmt.Errorf("source and target must differ")
	}

	_, err := d.db.Exec(`
		INSERT INTO memory_links (source_id, target_id, relationship, strength, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relationship) DO UPDATE SET
			strength = MIN(1.0, memory_links.strength + excluded.strength)`,
		l.SourceID, l.TargetID, l.Relationship, l.Strength, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// GetLinksFrom returns outgoing links for id, ordered by strength.
func (d *Database) GetLinksFrom(id string) ([]*MemoryLink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, source_id, target_id, relationship, strength, created_at
		FROM memory_links WHERE source_id = ? ORDER BY strength DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get links: %w", err)
	}
	defer rows.Close()

	var links []*MemoryLink
	for rows.Next() {
		l := &MemoryLink{}
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Relationship, &l.Strength, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, nil
}

// CountLinks returns the number of edges touching id in either direction.
// Consolidation's hub-bonus step runs the same count inside its own
// transaction and does not call this.
func (d *Database) CountLinks(id string) (int, error) {
	var count int
	err := d.QueryRow(`SELECT COUNT(*) FROM memory_links WHERE source_id = ? OR target_id = ?`, id, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// RewriteLinkTarget repoints every edge touching oldID to newID. Edges that
// would become self-referential or duplicate an existing edge are dropped
// instead. Consolidation's merge step does its own rewrite inside its
// transaction and does not call this.
func (d *Database) RewriteLinkTarget(oldID, newID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(`
		UPDATE OR IGNORE memory_links SET source_id = ? WHERE source_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("failed to rewrite outgoing links: %w", err)
	}
	if _, err := d.db.Exec(`
		UPDATE OR IGNORE memory_links SET target_id = ? WHERE target_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("failed to rewrite incoming links: %w", err)
	}
	if _, err := d.db.Exec(`DELETE FROM memory_links WHERE source_id = target_id`); err != nil {
		return fmt.Errorf("failed to drop self links: %w", err)
	}
	// Edges the UPDATE OR IGNORE statements skipped still point at oldID.
	if _, err := d.db.Exec(`DELETE FROM memory_links WHERE source_id = ? OR target_id = ?`, oldID, oldID); err != nil {
		return fmt.Errorf("failed to drop leftover links: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row.
func (d *Database) CreateSession(s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}

	_, err := d.db.Exec(`
		INSERT INTO sessions (id, project, started_at, summary, memories_created, memories_accessed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Project, s.StartedAt, nullString(s.Summary), s.MemoriesCreated, s.MemoriesAccessed,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession marks a session ended, recording its closing summary.
func (d *Database) EndSession(id, summary string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.Exec(`
		UPDATE sessions SET ended_at = ?, summary = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now().UTC(), nullString(summary), id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementSessionCounters bumps a session's memories_created or
// memories_accessed counter.
func (d *Database) IncrementSessionCounters(id string, created, accessed int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		UPDATE sessions SET memories_created = memories_created + ?, memories_accessed = memories_accessed + ?
		WHERE id = ?`, created, accessed, id)
	return err
}

// GetSession fetches a session by id. Returns (nil, nil) if not found.
func (d *Database) GetSession(id string) (*Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var s Session
	var summary sql.NullString
	var endedAt sql.NullTime
	err := d.db.QueryRow(`
		SELECT id, project, started_at, ended_at, summary, memories_created, memories_accessed
		FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Project, &s.StartedAt, &endedAt, &summary, &s.MemoriesCreated, &s.MemoriesAccessed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.Summary = summary.String
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return &s, nil
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var memories []*Memory
	for rows.Next() {
		m, err := scanMemoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which
// implement Scan with the same signature.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryRow(row rowScanner) (*Memory, error) {
	var m Memory
	var title sql.NullString
	var tagsJSON, metaJSON string

	err := row.Scan(
		&m.ID, &m.Type, &m.Category, &title, &m.Content, &m.Project, &m.Scope, &m.Transferable,
		&tagsJSON, &m.Salience, &m.DecayedScore, &m.AccessCount, &m.LastAccessed, &m.CreatedAt, &metaJSON,
	)
	if err != nil {
		return nil, err
	}
	m.Title = title.String
	m.Tags = ParseTags(tagsJSON)
	m.Metadata = ParseMetadata(metaJSON)
	return &m, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func marshalTags(tags []string) (string, error) {
	m := &Memory{Tags: tags}
	return m.TagsJSON(), nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	m := &Memory{Metadata: meta}
	return m.MetadataJSON(), nil
}
