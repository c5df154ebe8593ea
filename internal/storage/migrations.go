package storage

import (
	"database/sql"
	"fmt"
)

// migrationV1ToV2 adds the decay/scope columns and the metadata table
// introduced after the initial release. ALTER TABLE errors are ignored here because a database created
// from the current CoreSchema already has these columns; this path only
// matters for pre-existing files opened by an older build.
func migrationV1ToV2(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	alterStatements := []string{
		`ALTER TABLE memories ADD COLUMN scope TEXT NOT NULL DEFAULT 'project'`,
		`ALTER TABLE memories ADD COLUMN transferable BOOLEAN NOT NULL DEFAULT 1`,
		`ALTER TABLE memories ADD COLUMN decayed_score REAL NOT NULL DEFAULT 0.25`,
		`ALTER TABLE memories ADD COLUMN metadata TEXT NOT NULL DEFAULT '{}'`,
	}
	for _, stmt := range alterStatements {
		tx.Exec(stmt) // column may already exist; error is expected and ignored
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_memories_decayed_score ON memories(decayed_score)`); err != nil {
		return fmt.Errorf("failed to create decayed_score index: %w", err)
	}

	if _, err := tx.Exec(`UPDATE memories SET decayed_score = salience WHERE decayed_score = 0.25 AND salience != 0.25`); err != nil {
		return fmt.Errorf("failed to backfill decayed_score: %w", err)
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (2, CURRENT_TIMESTAMP)`); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// RunMigrations brings an existing database up to SchemaVersion.
func (d *Database) RunMigrations() error {
	version, err := d.GetSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= SchemaVersion {
		return nil
	}

	log.Info("running migrations", "from_version", version, "to_version", SchemaVersion)

	if version < 2 {
		if err := migrationV1ToV2(d.db); err != nil {
			return fmt.Errorf("migration v1->v2 failed: %w", err)
		}
		log.Info("migration applied", "version", 2)
	}

	return nil
}
