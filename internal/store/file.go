package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/erazemk/vestique/internal/model"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps the catalog in a single JSON document.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
}

// NewFileStore returns a store for the JSON document at path. The file is
// created on first load if it does not exist.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the catalog document path.
func (s *FileStore) Path() string { return s.path }

// Load reads the catalog. A missing or empty file yields an empty catalog
// which is written back immediately. An unreadable file is backed up and
// replaced; the empty catalog is returned together with a *RecoveryError.
func (s *FileStore) Load(ctx context.Context) (*model.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	if len(data) == 0 {
		c := model.NewCatalog()
		if err := s.Save(ctx, c); err != nil {
			return c, fmt.Errorf("initializing catalog: %w", err)
		}
		s.logger.Info("initialized empty catalog", "path", s.path)
		return c, nil
	}

	var c model.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return s.recover(ctx, data, err)
	}

	if c.Normalize() {
		if err := s.Save(ctx, &c); err != nil {
			s.logger.Warn("failed to write normalized catalog", "path", s.path, "error", err)
		}
	}

	s.logger.Debug("loaded catalog",
		"path", s.path,
		"items", len(c.Items),
		"outfits", len(c.Outfits),
		"listings", len(c.Listings),
	)
	return &c, nil
}

func (s *FileStore) recover(ctx context.Context, data []byte, cause error) (*model.Catalog, error) {
	rerr := &RecoveryError{Err: cause}

	backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		s.logger.Error("failed to back up corrupt catalog", "path", s.path, "error", err)
	} else {
		rerr.Backup = backup
	}

	c := model.NewCatalog()
	if err := s.Save(ctx, c); err != nil {
		s.logger.Error("failed to reinitialize catalog", "path", s.path, "error", err)
	}
	s.logger.Warn("catalog was corrupt and has been reinitialized",
		"path", s.path,
		"backup", rerr.Backup,
		"error", cause,
	)
	return c, rerr
}

// Save writes the catalog atomically via a temp file and rename, holding an
// exclusive lock so concurrent processes do not interleave writes.
func (s *FileStore) Save(ctx context.Context, c *model.Catalog) error {
	if c == nil {
		return errors.New("saving catalog: nil catalog")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking catalog: %w", err)
	}
	if !locked {
		return errors.New("locking catalog: lock not acquired")
	}
	defer s.lock.Unlock()

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return s.lock.Close()
}
