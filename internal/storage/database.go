package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/michaelv2/claude-cortex-core/internal/engineerr"
	"github.com/michaelv2/claude-cortex-core/internal/logging"
	_ "github.com/mattn/go-sqlite3"
)

var log = logging.GetLogger("storage")

// Size guardrails (spec.md §5 "Concurrency & Resource Model").
const (
	SizeWarningBytes = 50 * 1024 * 1024
	SizeBlockBytes   = 100 * 1024 * 1024
)

// Database is a single-writer SQLite connection over the memory schema.
type Database struct {
	db       *sql.DB
	path     string
	lockFile *os.File
	mu       sync.RWMutex
}

// Open opens (creating if necessary) the database at path, takes its
// advisory lock, and configures WAL mode with a busy timeout so concurrent
// readers don't immediately fail on a writer's lock (spec.md §5).
func Open(path string) (*Database, error) {
	log.Info("opening database", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, engineerr.Wrap(engineerr.CodeDBNotInit, "failed to create database directory", err)
	}

	lockFile, err := acquireLock(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.CodeDBLocked, "failed to acquire database lock", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=10000&_auto_vacuum=incremental&_wal_autocheckpoint=100", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		lockFile.Close()
		return nil, engineerr.Wrap(engineerr.CodeDBNotInit, "failed to open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		lockFile.Close()
		return nil, engineerr.Wrap(engineerr.CodeDBCorrupt, "failed to ping database", err)
	}

	log.Info("database connection established", "path", path)
	return &Database{db: db, path: path, lockFile: lockFile}, nil
}

// InitSchema creates tables, indexes, triggers, and the FTS5 index if they
// don't already exist.
func (d *Database) InitSchema() error {
	log.Info("initializing database schema", "version", SchemaVersion)

	d.mu.Lock()
	defer d.mu.Unlock()

	var tableName string
	err := d.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='memories' LIMIT 1`).Scan(&tableName)
	if err == nil && tableName != "" {
		log.Info("schema already initialized")
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return engineerr.Wrap(engineerr.CodeDBNotInit, "failed to begin schema transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(CoreSchema); err != nil {
		return engineerr.Wrap(engineerr.CodeDBNotInit, "failed to create core schema", err)
	}

	if _, err := tx.Exec(FTS5Schema); err != nil {
		return engineerr.Wrap(engineerr.CodeDBNotInit, "failed to create FTS5 schema", err)
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, SchemaVersion); err != nil {
		return engineerr.Wrap(engineerr.CodeDBNotInit, "failed to record schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return engineerr.Wrap(engineerr.CodeDBNotInit, "failed to commit schema", err)
	}

	log.Info("database schema initialized", "version", SchemaVersion)
	return nil
}

// Close closes the database connection and releases the advisory lock.
func (d *Database) Close() error {
	log.Info("closing database connection")
	d.mu.Lock()
	defer d.mu.Unlock()

	var closeErr error
	if d.db != nil {
		closeErr = d.db.Close()
	}
	releaseLock(d.lockFile)
	return closeErr
}

// DB returns the underlying sql.DB for packages that need raw access
// (migrations, operations).
func (d *Database) DB() *sql.DB { return d.db }

// Path returns the database file path.
func (d *Database) Path() string { return d.path }

// CheckSize verifies the database file size against the warning and hard
// block thresholds: at the hard limit it returns a DB_BLOCKED engine error;
// at the warning threshold it only logs a warning and returns nil. Store.Add
// calls this before each insert; other writes do not check the size.
func (d *Database) CheckSize() error {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil
	}
	size := info.Size()
	if size >= SizeBlockBytes {
		return engineerr.New(engineerr.CodeDBBlocked, fmt.Sprintf("database is %d bytes, at or over the %d byte hard limit", size, SizeBlockBytes))
	}
	if size >= SizeWarningBytes {
		log.Warn("database size exceeds warning threshold", "size", size, "threshold", SizeWarningBytes)
	}
	return nil
}

// Begin starts a new transaction.
func (d *Database) Begin() (*sql.Tx, error) {
	return d.db.Begin()
}

// Exec executes a statement under the writer lock.
func (d *Database) Exec(query string, args ...any) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Exec(query, args...)
}

// Query runs a query under the reader lock.
func (d *Database) Query(query string, args ...any) (*sql.Rows, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.Query(query, args...)
}

// QueryRow runs a single-row query under the reader lock.
func (d *Database) QueryRow(query string, args ...any) *sql.Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.QueryRow(query, args...)
}

// GetSchemaVersion returns the highest applied schema version.
func (d *Database) GetSchemaVersion() (int, error) {
	var version int
	err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// TableExists reports whether name is a table in the database.
func (d *Database) TableExists(name string) (bool, error) {
	var count int
	err := d.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Vacuum reclaims space after deletions (consolidation's final phase).
func (d *Database) Vacuum() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec("VACUUM")
	return err
}

// Checkpoint forces the WAL file to be truncated back into the main
// database file.
func (d *Database) Checkpoint() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Stats summarizes the database for the engine's stats operation.
type Stats struct {
	Path          string
	SchemaVersion int
	MemoryCount   int
	LinkCount     int
	SessionCount  int
	FileSizeBytes int64
}

// GetStats gathers row counts and file size for reporting.
func (d *Database) GetStats() (*Stats, error) {
	stats := &Stats{Path: d.path}

	if version, err := d.GetSchemaVersion(); err == nil {
		stats.SchemaVersion = version
	}

	d.QueryRow("SELECT COUNT(*) FROM memories").Scan(&stats.MemoryCount)
	d.QueryRow("SELECT COUNT(*) FROM memory_links").Scan(&stats.LinkCount)
	d.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&stats.SessionCount)

	if info, err := os.Stat(d.path); err == nil {
		stats.FileSizeBytes = info.Size()
	}

	return stats, nil
}

// GetMeta reads a single metadata key (e.g. "last_consolidation_at").
func (d *Database) GetMeta(key string) (string, bool) {
	var value string
	err := d.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// SetMeta upserts a single metadata key.
func (d *Database) SetMeta(key, value string) error {
	_, err := d.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
