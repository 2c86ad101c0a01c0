package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS catalog_items (
    collection   TEXT    NOT NULL CHECK (collection IN ('items', 'outfits', 'listings')),
    id           INTEGER NOT NULL,
    position     INTEGER NOT NULL,
    name         TEXT    NOT NULL DEFAULT '',
    type         TEXT    NOT NULL DEFAULT '',
    kind         TEXT    NOT NULL DEFAULT 'single' CHECK (kind IN ('single', 'composite')),
    image        BLOB,
    features     TEXT,
    last_worn    TEXT,
    wear_count   INTEGER NOT NULL DEFAULT 0 CHECK (wear_count >= 0),
    reset_period INTEGER NOT NULL DEFAULT 0 CHECK (reset_period >= 0),
    ai_analysis  TEXT,
    created_at   TEXT,
    listed_from  TEXT,
    source_id    INTEGER,
    date_listed  TEXT,
    PRIMARY KEY (collection, id)
);

CREATE TABLE IF NOT EXISTS item_views (
    collection TEXT    NOT NULL,
    item_id    INTEGER NOT NULL,
    position   INTEGER NOT NULL,
    image      BLOB,
    features   TEXT    NOT NULL,
    PRIMARY KEY (collection, item_id, position),
    FOREIGN KEY (collection, item_id) REFERENCES catalog_items(collection, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS catalog_counters (
    collection TEXT PRIMARY KEY,
    next_id    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
