package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateIdempotent(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	for i := range 2 {
		if err := Migrate(database); err != nil {
			t.Fatalf("Migrate run %d: %v", i+1, err)
		}
	}

	var n int
	err = database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('catalog_items', 'item_views', 'catalog_counters', 'settings')`,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying tables: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 tables, got %d", n)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	database := NewTestDB(t)

	var on int
	if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("querying pragma: %v", err)
	}
	if on != 1 {
		t.Error("expected foreign keys to be enabled")
	}
}
