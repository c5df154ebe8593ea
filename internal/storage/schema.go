package storage

// SchemaVersion is the current schema version for migration tracking.
const SchemaVersion = 2

// CoreSchema contains the main table definitions (spec.md §4.1).
const CoreSchema = `
PRAGMA foreign_keys = ON;
PRAGMA wal_autocheckpoint = 100;

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- =============================================================================
-- MEMORIES TABLE
-- =============================================================================
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL DEFAULT 'short_term' CHECK (type IN ('short_term', 'long_term', 'episodic')),
	category TEXT NOT NULL DEFAULT 'note',
	title TEXT,
	content TEXT NOT NULL,
	project TEXT NOT NULL DEFAULT '*',
	scope TEXT NOT NULL DEFAULT 'project' CHECK (scope IN ('project', 'global')),
	transferable BOOLEAN NOT NULL DEFAULT 1,
	tags TEXT NOT NULL DEFAULT '[]',
	salience REAL NOT NULL DEFAULT 0.25 CHECK (salience >= 0.0 AND salience <= 1.0),
	decayed_score REAL NOT NULL DEFAULT 0.25 CHECK (decayed_score >= 0.0 AND decayed_score <= 1.0),
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project);
CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
CREATE INDEX IF NOT EXISTS idx_memories_salience ON memories(salience);
CREATE INDEX IF NOT EXISTS idx_memories_decayed_score ON memories(decayed_score);
CREATE INDEX IF NOT EXISTS idx_memories_last_accessed ON memories(last_accessed);

-- =============================================================================
-- MEMORY LINKS TABLE
-- Typed, weighted graph edges (spec.md §3, §4.6).
-- =============================================================================
CREATE TABLE IF NOT EXISTS memory_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relationship TEXT NOT NULL CHECK (relationship IN ('references', 'extends', 'contradicts', 'related')),
	strength REAL NOT NULL CHECK (strength >= 0.0 AND strength <= 1.0),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_id) REFERENCES memories(id) ON DELETE CASCADE,
	FOREIGN KEY (target_id) REFERENCES memories(id) ON DELETE CASCADE,
	CHECK (source_id != target_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_links_unique ON memory_links(source_id, target_id, relationship);
CREATE INDEX IF NOT EXISTS idx_links_source ON memory_links(source_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON memory_links(target_id);
CREATE INDEX IF NOT EXISTS idx_links_source_strength ON memory_links(source_id, strength);

-- =============================================================================
-- SESSIONS TABLE
-- =============================================================================
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project TEXT NOT NULL DEFAULT '*',
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ended_at DATETIME,
	summary TEXT,
	memories_created INTEGER NOT NULL DEFAULT 0,
	memories_accessed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project);

-- =============================================================================
-- METADATA TABLE
-- Small key/value bag for engine state (last_consolidation_at, etc).
-- =============================================================================
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// FTS5Schema contains the full-text index and its sync triggers.
const FTS5Schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	id UNINDEXED,
	title,
	content,
	tags,
	tokenize = 'porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(id, title, content, tags)
	VALUES (new.id, new.title, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
	DELETE FROM memories_fts WHERE id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
	UPDATE memories_fts SET title = new.title, content = new.content, tags = new.tags
	WHERE id = old.id;
END;
`
