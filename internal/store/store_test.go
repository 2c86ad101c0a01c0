package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/vestique/internal/db"
	"github.com/erazemk/vestique/internal/model"
)

func sampleCatalog() *model.Catalog {
	c := model.NewCatalog()
	worn := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	hoodie, _ := c.Append(model.CollectionItems, model.Item{
		Name:      "Red Hoodie",
		Type:      "Hoodie",
		Kind:      model.KindSingle,
		Image:     []byte{0xff, 0xd8, 1, 2},
		Features:  model.Descriptor{1, 0, 0},
		LastWorn:  worn,
		WearCount: 2,
		CreatedAt: worn,
	})
	c.Update(model.CollectionItems, hoodie.ID, func(it *model.Item) {
		it.AddView([]byte{0xff, 0xd8, 3}, model.Descriptor{0.9, 0.1, 0})
	})
	c.Append(model.CollectionOutfits, model.Item{
		Name:        "Friday",
		Type:        model.TypeFullOutfit,
		Kind:        model.KindComposite,
		Features:    model.Descriptor{0, 1},
		LastWorn:    worn,
		WearCount:   1,
		ResetPeriod: 3,
		AIAnalysis:  json.RawMessage(`{"type":"jacket"}`),
	})
	jeans, _ := c.Append(model.CollectionItems, model.Item{Name: "Jeans", Type: "Pants", Kind: model.KindSingle})
	listed, _ := c.Move(model.CollectionItems, model.CollectionListings, jeans.ID)
	c.Update(model.CollectionListings, listed.ID, func(it *model.Item) { it.DateListed = &worn })
	return c
}

func assertSameCatalog(t *testing.T, want, got *model.Catalog) {
	t.Helper()
	for _, name := range model.Collections {
		w, _ := want.List(name)
		g, _ := got.List(name)
		if len(w) != len(g) {
			t.Fatalf("%s: expected %d entries, got %d", name, len(w), len(g))
		}
		for i := range w {
			a, b := w[i], g[i]
			if a.ID != b.ID || a.Name != b.Name || a.Type != b.Type || a.Kind != b.Kind {
				t.Errorf("%s[%d]: identity differs: %+v vs %+v", name, i, a, b)
			}
			if !bytes.Equal(a.Image, b.Image) {
				t.Errorf("%s[%d]: image differs", name, i)
			}
			if !a.LastWorn.Equal(b.LastWorn) || a.WearCount != b.WearCount || a.ResetPeriod != b.ResetPeriod {
				t.Errorf("%s[%d]: wear state differs", name, i)
			}
			if a.Features.Len() != b.Features.Len() || len(a.ReferenceFeatures) != len(b.ReferenceFeatures) {
				t.Errorf("%s[%d]: descriptors differ", name, i)
			}
			if (a.SourceID == nil) != (b.SourceID == nil) || a.ListedFrom != b.ListedFrom {
				t.Errorf("%s[%d]: listing provenance differs", name, i)
			}
			if (a.DateListed == nil) != (b.DateListed == nil) {
				t.Errorf("%s[%d]: date_listed differs", name, i)
			}
		}
	}
	for name, next := range want.NextIDs {
		if got.NextIDs[name] != next {
			t.Errorf("next id of %s: expected %d, got %d", name, next, got.NextIDs[name])
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "wardrobe.json"), nil)
	defer s.Close()

	want := sampleCatalog()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameCatalog(t, want, got)
}

func TestFileStoreMissingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "wardrobe.json")
	s := NewFileStore(path, nil)
	defer s.Close()

	c, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Items == nil || c.Outfits == nil || c.Listings == nil {
		t.Error("expected all collections to be present")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected catalog to be written immediately: %v", err)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "wardrobe.json")
	corrupt := []byte(`{"items": [{"id": 0, "type": "Hood`)
	if err := os.WriteFile(path, corrupt, 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path, nil)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	defer s.Close()

	c, err := s.Load(ctx)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	var rerr *RecoveryError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RecoveryError, got %T", err)
	}
	if c == nil || c.Len() != 0 || c.Items == nil || c.Outfits == nil || c.Listings == nil {
		t.Fatalf("expected empty valid catalog, got %+v", c)
	}

	backup, err := os.ReadFile(filepath.Join(dir, "wardrobe.json.corrupt-1700000000"))
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.Equal(backup, corrupt) {
		t.Error("backup does not match the corrupt document")
	}

	// A subsequent save overwrites the corrupt file.
	c.Append(model.CollectionItems, model.Item{Name: "Scarf"})
	if err := s.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if len(reloaded.Items) != 1 {
		t.Errorf("expected 1 item after save, got %d", len(reloaded.Items))
	}
}

func TestFileStoreNonObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wardrobe.json")
	os.WriteFile(path, []byte(`[1, 2, 3]`), 0o644)

	s := NewFileStore(path, nil)
	defer s.Close()
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for a non-object document, got %v", err)
	}
}

func TestFileStoreFillsMissingCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wardrobe.json")
	os.WriteFile(path, []byte(`{"items": [{"id": 3, "type": "Scarf", "features": [1]}]}`), 0o644)

	s := NewFileStore(path, nil)
	defer s.Close()
	c, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Outfits == nil || c.Listings == nil {
		t.Error("expected missing collections to be initialized")
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"listings"`) {
		t.Error("expected normalized catalog to be written back")
	}

	it, _ := c.Append(model.CollectionItems, model.Item{Name: "New"})
	if it.ID != 4 {
		t.Errorf("expected id after the highest existing one, got %d", it.ID)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(db.NewTestDB(t), nil)

	want := sampleCatalog()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameCatalog(t, want, got)

	if string(got.Outfits[0].AIAnalysis) != `{"type":"jacket"}` {
		t.Errorf("unexpected ai_analysis %s", got.Outfits[0].AIAnalysis)
	}
	if got.Items[0].ViewCount() != 2 {
		t.Errorf("expected 2 views, got %d", got.Items[0].ViewCount())
	}
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(db.NewTestDB(t), nil)

	c := sampleCatalog()
	s.Save(ctx, c)
	c.Remove(model.CollectionItems, c.Items[0].ID)
	if err := s.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Items) != 0 {
		t.Errorf("expected removed item to be gone, got %d items", len(got.Items))
	}
	next, _ := got.Append(model.CollectionItems, model.Item{Name: "x"})
	if next.ID != 2 {
		t.Errorf("expected id counter to survive, got id %d", next.ID)
	}
}

func TestSQLiteStoreEmpty(t *testing.T) {
	s := NewSQLiteStore(db.NewTestDB(t), nil)
	c, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 0 || c.Items == nil {
		t.Errorf("expected empty catalog, got %+v", c)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", "x", nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSQLiteStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	garbage := []byte(`{"items": [trunc`)
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(BackendSQLite, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	c, err := s.Load(ctx)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	var rerr *RecoveryError
	if !errors.As(err, &rerr) || rerr.Backup == "" {
		t.Fatalf("expected a RecoveryError with a backup, got %v", err)
	}
	if c == nil || c.Len() != 0 || c.Items == nil || c.Outfits == nil || c.Listings == nil {
		t.Fatalf("expected an empty usable catalog, got %+v", c)
	}

	backup, err := os.ReadFile(rerr.Backup)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.Equal(backup, garbage) {
		t.Errorf("backup does not hold the original bytes: %q", backup)
	}

	if _, err := c.Append(model.CollectionItems, model.Item{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, c); err != nil {
		t.Fatalf("Save after recovery: %v", err)
	}
	again, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if len(again.Items) != 1 {
		t.Errorf("expected the saved item, got %d items", len(again.Items))
	}
}
