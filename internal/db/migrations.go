package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: listings are looked up by their source item when
	// migrating stale wardrobe entries.
	`CREATE INDEX IF NOT EXISTS idx_catalog_items_source
	     ON catalog_items(listed_from, source_id) WHERE collection = 'listings'`,
	// Migration 2: stored order is read back on every load.
	`CREATE INDEX IF NOT EXISTS idx_catalog_items_position
	     ON catalog_items(collection, position)`,
}

// Migrate creates the schema and runs the database migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
