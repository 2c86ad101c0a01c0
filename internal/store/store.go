// Package store persists the wardrobe catalog.
//
// Two backends are available: FileStore keeps the whole catalog in one JSON
// document and SQLiteStore keeps it in a SQLite database. Both load the
// full catalog into memory and rewrite it completely on every save.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erazemk/vestique/internal/model"
)

// ErrCorrupt reports that the persisted catalog could not be read and was
// replaced by an empty one.
var ErrCorrupt = errors.New("catalog corrupt")

// Store loads and saves the full catalog.
type Store interface {
	Load(ctx context.Context) (*model.Catalog, error)
	Save(ctx context.Context, c *model.Catalog) error
	Close() error
}

// RecoveryError is returned by Load together with a usable empty catalog
// when the persisted state was unreadable.
type RecoveryError struct {
	// Backup is where the unreadable data was copied, if anywhere.
	Backup string
	Err    error
}

func (e *RecoveryError) Error() string {
	if e.Backup != "" {
		return fmt.Sprintf("%v: %v (backup at %s)", ErrCorrupt, e.Err, e.Backup)
	}
	return fmt.Sprintf("%v: %v", ErrCorrupt, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorrupt) hold for recovery errors.
func (e *RecoveryError) Is(target error) bool { return target == ErrCorrupt }

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case "", BackendFile:
		return NewFileStore(path, logger), nil
	case BackendSQLite:
		return OpenSQLite(path, logger)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}
