package tracker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/vestique/internal/imaging"
	"github.com/erazemk/vestique/internal/model"
)

// CreateRequest describes a new wardrobe entry.
type CreateRequest struct {
	Collection model.Collection
	// Image is the decoded photo. Blob is its stored JPEG form; either may
	// be derived from the other.
	Image image.Image
	Blob  []byte
	// Descriptor is reused from a preceding NEW capture when set.
	Descriptor  model.Descriptor
	Type        string
	Name        string
	ResetPeriod int
}

// Create adds a new item that was just worn. Extraction failures do not
// prevent creation; the item is stored without descriptors and a warning is
// returned. The annotator, when configured, is consulted once and may fail
// without affecting the result.
func (t *Tracker) Create(ctx context.Context, req CreateRequest) (Result, error) {
	if !req.Collection.Wardrobe() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotWardrobe, req.Collection)
	}
	typ := model.NormalizeType(req.Type)
	if typ == "" && req.Collection == model.CollectionOutfits {
		typ = model.TypeFullOutfit
	}
	if typ == "" {
		return Result{}, fmt.Errorf("%w: type is required", ErrInvalid)
	}
	if req.ResetPeriod < 0 {
		return Result{}, fmt.Errorf("%w: reset period must not be negative", ErrInvalid)
	}

	res := Result{State: StateNew, Collection: req.Collection}

	img, blob := req.Image, req.Blob
	if img == nil && len(blob) > 0 {
		if decoded, ok := imaging.Decode(blob); ok {
			img = decoded
		}
	}
	if len(blob) == 0 && img != nil {
		encoded, err := imaging.Encode(img)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("image not stored: %v", err))
		}
		blob = encoded
	}

	d := req.Descriptor
	if !d.Valid() {
		var err error
		d, err = t.extractor.Extract(ctx, img, req.Collection.Kind())
		if err != nil {
			t.logger.Warn("creating item without descriptor", "collection", req.Collection, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("item will not be recognized automatically: %v", err))
			d = nil
		}
	}

	var analysis []byte
	if t.annotator != nil && len(blob) > 0 {
		a, err := t.annotator.Analyze(ctx, blob)
		if err != nil {
			t.logger.Warn("annotation failed", "collection", req.Collection, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("annotation unavailable: %v", err))
		} else {
			analysis = a
		}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = typ
	}
	now := t.now()
	item := model.Item{
		Name:        name,
		Type:        typ,
		Kind:        req.Collection.Kind(),
		Image:       blob,
		LastWorn:    now,
		WearCount:   1,
		ResetPeriod: req.ResetPeriod,
		AIAnalysis:  analysis,
		CreatedAt:   now,
	}
	if d != nil {
		item.Features = d
		item.ReferenceImages = [][]byte{blob}
		item.ReferenceFeatures = []model.Descriptor{d}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stored, err := t.catalog.Append(req.Collection, item)
	if err != nil {
		return Result{}, err
	}
	res.Item = &stored
	t.persist(ctx, &res)

	t.logger.Info("item created",
		"collection", req.Collection,
		"id", stored.ID,
		"name", stored.Name,
		"type", stored.Type,
		"annotated", len(analysis) > 0,
	)
	return res, nil
}

// AddView extracts img and appends it to the item's reference views.
func (t *Tracker) AddView(ctx context.Context, collection model.Collection, id int64, img image.Image, blob []byte) (model.Item, error) {
	if img == nil && len(blob) > 0 {
		if decoded, ok := imaging.Decode(blob); ok {
			img = decoded
		}
	}

	kind := collection.Kind()
	t.mu.Lock()
	if it, err := t.catalog.Find(collection, id); err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	} else if it.Kind != "" {
		kind = it.Kind
	}
	t.mu.Unlock()

	d, err := t.extractor.Extract(ctx, img, kind)
	if err != nil {
		return model.Item{}, fmt.Errorf("adding view: %w", err)
	}
	if len(blob) == 0 {
		if blob, err = imaging.Encode(img); err != nil {
			return model.Item{}, fmt.Errorf("adding view: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The item may have been removed while the view was being extracted.
	updated, err := t.catalog.Update(collection, id, func(it *model.Item) {
		it.AddView(blob, d)
	})
	if err != nil {
		return model.Item{}, err
	}
	if err := t.save(ctx); err != nil {
		return updated, err
	}
	t.logger.Info("view added", "collection", collection, "id", id, "views", updated.ViewCount())
	return updated, nil
}

// Edit lists the fields a user may set directly. Nil fields are left alone.
type Edit struct {
	LastWorn    *time.Time
	WearCount   *int
	ResetPeriod *int
	Name        *string
	Type        *string
}

// Update writes the given fields verbatim. It is never a wear event.
func (t *Tracker) Update(ctx context.Context, collection model.Collection, id int64, e Edit) (model.Item, error) {
	now := t.now()
	if e.WearCount != nil && *e.WearCount < 0 {
		return model.Item{}, fmt.Errorf("%w: wear count must not be negative", ErrInvalid)
	}
	if e.ResetPeriod != nil && *e.ResetPeriod < 1 {
		return model.Item{}, fmt.Errorf("%w: reset period must be at least one day", ErrInvalid)
	}
	if e.LastWorn != nil && e.LastWorn.IsZero() {
		return model.Item{}, fmt.Errorf("%w: last worn must be set", ErrInvalid)
	}
	if e.LastWorn != nil && e.LastWorn.After(now) {
		return model.Item{}, fmt.Errorf("%w: last worn is in the future", ErrInvalid)
	}
	if e.Type != nil && model.NormalizeType(*e.Type) == "" {
		return model.Item{}, fmt.Errorf("%w: type must not be empty", ErrInvalid)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	updated, err := t.catalog.Update(collection, id, func(it *model.Item) {
		if e.LastWorn != nil {
			it.LastWorn = *e.LastWorn
		}
		if e.WearCount != nil {
			it.WearCount = *e.WearCount
		}
		if e.ResetPeriod != nil {
			it.ResetPeriod = *e.ResetPeriod
		}
		if e.Type != nil {
			it.Type = model.NormalizeType(*e.Type)
		}
		if e.Name != nil {
			it.Name = strings.TrimSpace(*e.Name)
		}
	})
	if err != nil {
		return model.Item{}, err
	}
	if err := t.save(ctx); err != nil {
		return updated, err
	}
	t.logger.Info("item edited", "collection", collection, "id", id, "wear_count", updated.WearCount)
	return updated, nil
}

// Delete removes an item.
func (t *Tracker) Delete(ctx context.Context, collection model.Collection, id int64) (model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed, err := t.catalog.Remove(collection, id)
	if err != nil {
		return model.Item{}, err
	}
	if err := t.save(ctx); err != nil {
		return removed, err
	}
	t.logger.Info("item deleted", "collection", collection, "id", id, "name", removed.DisplayName())
	return removed, nil
}

// Get returns a copy of an item.
func (t *Tracker) Get(collection model.Collection, id int64) (model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.catalog.Find(collection, id)
	if err != nil {
		return model.Item{}, err
	}
	return *it, nil
}

// List returns a copy of a collection in stored order.
func (t *Tracker) List(collection model.Collection) ([]model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	items, err := t.catalog.List(collection)
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// IsNotFound reports whether err means the item or collection does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrUnknownCollection)
}
