package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/vestique/internal/db"
	"github.com/erazemk/vestique/internal/model"
)

// SQLiteStore keeps the catalog in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// recovered is reported by the first Load after the database file
	// was found unreadable and replaced.
	recovered *RecoveryError
}

// OpenSQLite opens (and migrates) the database at path. A file that is
// not a SQLite database, or is corrupt, is moved aside to
// <path>.corrupt-<unix> and replaced by a fresh database; the next Load
// then returns an empty catalog with a *RecoveryError.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	database, err := openMigrated(path)
	if err == nil {
		return NewSQLiteStore(database, logger), nil
	}
	if !isCorrupt(err) || path == db.MemoryPath {
		return nil, err
	}

	rerr := &RecoveryError{Err: err}
	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if rnerr := os.Rename(path, backup); rnerr != nil {
		return nil, fmt.Errorf("moving corrupt database aside: %w", rnerr)
	}
	rerr.Backup = backup
	for _, suffix := range []string{"-wal", "-shm"} {
		if rmerr := os.Remove(path + suffix); rmerr != nil && !errors.Is(rmerr, os.ErrNotExist) {
			logger.Warn("failed to remove stale database journal", "path", path+suffix, "error", rmerr)
		}
	}

	database, err = openMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("reinitializing database: %w", err)
	}
	logger.Warn("database was corrupt and has been reinitialized",
		"path", path,
		"backup", backup,
		"error", rerr.Err,
	)

	s := NewSQLiteStore(database, logger)
	s.recovered = rerr
	return s, nil
}

func openMigrated(path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// isCorrupt reports whether err is SQLite refusing the file itself.
func isCorrupt(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(database *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: database, logger: logger}
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (*model.Catalog, error) {
	c, err := LoadCatalog(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if c.Normalize() {
		s.logger.Debug("normalized catalog loaded from database")
	}
	if rerr := s.recovered; rerr != nil {
		s.recovered = nil
		return c, rerr
	}
	return c, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, c *model.Catalog) error {
	return SaveCatalog(ctx, s.db, c)
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// LoadCatalog reads the full catalog from the database.
func LoadCatalog(ctx context.Context, database *sql.DB) (*model.Catalog, error) {
	c := model.NewCatalog()

	rows, err := database.QueryContext(ctx,
		`SELECT collection, id, name, type, kind, image, features, last_worn, wear_count,
		        reset_period, ai_analysis, created_at, listed_from, source_id, date_listed
		 FROM catalog_items ORDER BY collection, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}

	type key struct {
		collection model.Collection
		id         int64
	}
	index := map[key]*model.Item{}
	var order []key

	for rows.Next() {
		var (
			it                                      model.Item
			collection                              string
			features, lastWorn, analysis, createdAt sql.NullString
			listedFrom, dateListed                  sql.NullString
			sourceID                                sql.NullInt64
		)
		if err := rows.Scan(&collection, &it.ID, &it.Name, &it.Type, &it.Kind, &it.Image, &features,
			&lastWorn, &it.WearCount, &it.ResetPeriod, &analysis, &createdAt, &listedFrom, &sourceID, &dateListed,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning catalog item: %w", err)
		}
		if features.Valid {
			if err := json.Unmarshal([]byte(features.String), &it.Features); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decoding features of %s/%d: %w", collection, it.ID, err)
			}
		}
		if analysis.Valid && analysis.String != "" {
			it.AIAnalysis = json.RawMessage(analysis.String)
		}
		it.LastWorn = parseTime(lastWorn)
		it.CreatedAt = parseTime(createdAt)
		if dateListed.Valid {
			t := parseTime(dateListed)
			it.DateListed = &t
		}
		it.ListedFrom = model.Collection(listedFrom.String)
		if sourceID.Valid {
			id := sourceID.Int64
			it.SourceID = &id
		}

		name := model.Collection(collection)
		if _, err := c.List(name); err != nil {
			rows.Close()
			return nil, err
		}
		k := key{name, it.ID}
		order = append(order, k)
		index[k] = &it
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	rows.Close()

	// Views are read after the item cursor is closed; the pool holds a
	// single connection.
	views, err := database.QueryContext(ctx,
		`SELECT collection, item_id, image, features FROM item_views ORDER BY collection, item_id, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item views: %w", err)
	}
	for views.Next() {
		var (
			collection string
			itemID     int64
			image      []byte
			features   string
		)
		if err := views.Scan(&collection, &itemID, &image, &features); err != nil {
			views.Close()
			return nil, fmt.Errorf("scanning item view: %w", err)
		}
		it, ok := index[key{model.Collection(collection), itemID}]
		if !ok {
			continue
		}
		var d model.Descriptor
		if err := json.Unmarshal([]byte(features), &d); err != nil {
			views.Close()
			return nil, fmt.Errorf("decoding view of %s/%d: %w", collection, itemID, err)
		}
		it.ReferenceImages = append(it.ReferenceImages, image)
		it.ReferenceFeatures = append(it.ReferenceFeatures, d)
	}
	if err := views.Err(); err != nil {
		views.Close()
		return nil, fmt.Errorf("listing item views: %w", err)
	}
	views.Close()

	for _, k := range order {
		it := *index[k]
		switch k.collection {
		case model.CollectionItems:
			c.Items = append(c.Items, it)
		case model.CollectionOutfits:
			c.Outfits = append(c.Outfits, it)
		case model.CollectionListings:
			c.Listings = append(c.Listings, it)
		}
	}

	counters, err := database.QueryContext(ctx, `SELECT collection, next_id FROM catalog_counters`)
	if err != nil {
		return nil, fmt.Errorf("listing id counters: %w", err)
	}
	defer counters.Close()
	for counters.Next() {
		var collection string
		var next int64
		if err := counters.Scan(&collection, &next); err != nil {
			return nil, fmt.Errorf("scanning id counter: %w", err)
		}
		c.NextIDs[model.Collection(collection)] = next
	}
	return c, counters.Err()
}

// SaveCatalog replaces the stored catalog with c in one transaction.
func SaveCatalog(ctx context.Context, database *sql.DB, c *model.Catalog) error {
	if c == nil {
		return fmt.Errorf("saving catalog: nil catalog")
	}
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM item_views`,
		`DELETE FROM catalog_items`,
		`DELETE FROM catalog_counters`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing catalog: %w", err)
		}
	}

	for _, name := range model.Collections {
		items, err := c.List(name)
		if err != nil {
			return err
		}
		for pos, it := range items {
			if err := insertItem(ctx, tx, name, pos, it); err != nil {
				return err
			}
		}
	}

	for name, next := range c.NextIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_counters (collection, next_id) VALUES (?, ?)`,
			string(name), next,
		); err != nil {
			return fmt.Errorf("storing id counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, name model.Collection, pos int, it model.Item) error {
	features, err := encodeDescriptor(it.Features)
	if err != nil {
		return fmt.Errorf("encoding features of %s/%d: %w", name, it.ID, err)
	}
	var analysis, listedFrom, dateListed sql.NullString
	if len(it.AIAnalysis) > 0 {
		analysis = sql.NullString{String: string(it.AIAnalysis), Valid: true}
	}
	if it.ListedFrom != "" {
		listedFrom = sql.NullString{String: string(it.ListedFrom), Valid: true}
	}
	if it.DateListed != nil {
		dateListed = formatTime(*it.DateListed)
	}
	var sourceID sql.NullInt64
	if it.SourceID != nil {
		sourceID = sql.NullInt64{Int64: *it.SourceID, Valid: true}
	}
	kind := it.Kind
	if kind == "" {
		kind = name.Kind()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO catalog_items (collection, id, position, name, type, kind, image, features, last_worn,
		     wear_count, reset_period, ai_analysis, created_at, listed_from, source_id, date_listed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(name), it.ID, pos, it.Name, it.Type, string(kind), it.Image, features, formatTime(it.LastWorn),
		it.WearCount, it.ResetPeriod, analysis, formatTime(it.CreatedAt), listedFrom, sourceID, dateListed,
	)
	if err != nil {
		return fmt.Errorf("storing %s/%d: %w", name, it.ID, err)
	}

	for i := range it.ReferenceFeatures {
		var image []byte
		if i < len(it.ReferenceImages) {
			image = it.ReferenceImages[i]
		}
		d, err := encodeDescriptor(it.ReferenceFeatures[i])
		if err != nil {
			return fmt.Errorf("encoding view %d of %s/%d: %w", i, name, it.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_views (collection, item_id, position, image, features) VALUES (?, ?, ?, ?, ?)`,
			string(name), it.ID, i, image, d,
		); err != nil {
			return fmt.Errorf("storing view %d of %s/%d: %w", i, name, it.ID, err)
		}
	}
	return nil
}

func encodeDescriptor(d model.Descriptor) (string, error) {
	if d == nil {
		return "[]", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
