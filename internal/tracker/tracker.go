// Package tracker decides whether a photographed garment is new, a fresh
// wear of a catalogued item, or a repeat capture inside the item's reset
// period, and keeps the catalog in step with that decision.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/vestique/internal/model"
	"github.com/erazemk/vestique/internal/similarity"
	"github.com/erazemk/vestique/internal/store"
)

// State is the outcome of a capture event.
type State string

// Capture outcomes.
const (
	StateNew      State = "NEW"
	StateExisting State = "EXISTING"
	StateTooSoon  State = "TOO_SOON"
	StateError    State = "ERROR"
)

// DefaultThreshold is the similarity at or above which a capture matches.
const DefaultThreshold = 0.80

var (
	// ErrInvalid is returned for rejected arguments.
	ErrInvalid = errors.New("invalid request")
	// ErrNotWardrobe is returned when a wardrobe-only operation targets listings.
	ErrNotWardrobe = errors.New("collection is not part of the wardrobe")
	// ErrAnnotationDisabled is returned by Annotate without an annotator.
	ErrAnnotationDisabled = errors.New("annotation is not configured")
)

// Extractor turns images into descriptors.
type Extractor interface {
	Extract(ctx context.Context, img image.Image, kind model.Kind) (model.Descriptor, error)
}

// Annotator describes a garment photo as a JSON object.
type Annotator interface {
	Analyze(ctx context.Context, jpeg []byte) (json.RawMessage, error)
}

// Config holds the decision parameters.
type Config struct {
	// Threshold is the inclusive similarity threshold.
	Threshold float64
	// ResetPeriod is the default number of days before a re-capture counts
	// as a new wear.
	ResetPeriod int
	// ListingThreshold is the number of idle days after which an item is
	// moved to listings.
	ListingThreshold int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetPeriod < 1 {
		c.ResetPeriod = model.DefaultResetPeriod
	}
	if c.ListingThreshold < 1 {
		c.ListingThreshold = model.DefaultListingThreshold
	}
	return c
}

// Result describes the outcome of a capture or creation.
type Result struct {
	State      State            `json:"state"`
	Collection model.Collection `json:"collection"`
	// Item is the matched or created item; nil for NEW and ERROR.
	Item          *model.Item `json:"item,omitempty"`
	Score         float64     `json:"score"`
	DaysSince     int         `json:"days_since"`
	DaysRemaining int         `json:"days_remaining"`
	// Descriptor is the extracted descriptor of a NEW capture so that a
	// following Create does not extract again.
	Descriptor model.Descriptor `json:"-"`
	Err        error            `json:"-"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// Tracker owns the in-memory catalog and serializes every mutation.
type Tracker struct {
	mu      sync.Mutex
	store   store.Store
	catalog *model.Catalog

	extractor Extractor
	annotator Annotator
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	loadErr error
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithAnnotator sets the annotation collaborator used on creation.
func WithAnnotator(a Annotator) Option {
	return func(t *Tracker) {
		t.annotator = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New loads the catalog from st. A catalog that had to be reinitialized is
// not fatal; the recovery error is logged and kept for LoadWarning.
func New(ctx context.Context, st store.Store, ext Extractor, cfg Config, opts ...Option) (*Tracker, error) {
	if st == nil || ext == nil {
		return nil, errors.New("tracker requires a store and an extractor")
	}
	t := &Tracker{
		store:     st,
		extractor: ext,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	c, err := st.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrCorrupt) || c == nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		t.logger.Warn("catalog reinitialized", "error", err)
		t.loadErr = err
	}
	t.catalog = c
	return t, nil
}

// LoadWarning returns the recovery error of the initial load, if any.
func (t *Tracker) LoadWarning() error { return t.loadErr }

// Config returns the effective decision parameters.
func (t *Tracker) Config() Config { return t.cfg }

// Capture classifies img against the given wardrobe collection and records
// a wear event when the best match is outside its reset period. Extraction
// failures produce an ERROR result, not an error; errors are reserved for
// invalid arguments.
func (t *Tracker) Capture(ctx context.Context, img image.Image, collection model.Collection) (Result, error) {
	if !collection.Wardrobe() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotWardrobe, collection)
	}
	res := Result{Collection: collection}

	d, err := t.extractor.Extract(ctx, img, collection.Kind())
	if err != nil {
		t.logger.Warn("capture extraction failed", "collection", collection, "error", err)
		res.State = StateError
		res.Err = err
		return res, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	items, err := t.catalog.List(collection)
	if err != nil {
		return Result{}, err
	}

	match, ok := similarity.Best(d, items, t.cfg.Threshold)
	if !ok {
		res.State = StateNew
		res.Descriptor = d
		t.persist(ctx, &res)
		t.logger.Info("capture classified", "state", res.State, "collection", collection, "candidates", len(items))
		return res, nil
	}

	now := t.now()
	it := &items[match.Index]
	reset := it.EffectiveResetPeriod(t.cfg.ResetPeriod)
	res.Score = match.Score
	res.DaysSince = it.DaysSinceWorn(now)

	prev := *it
	if it.NeverWorn() || res.DaysSince >= reset {
		it.WearCount++
		it.LastWorn = now
		res.State = StateExisting
	} else {
		res.State = StateTooSoon
		res.DaysRemaining = max(0, reset-res.DaysSince)
	}
	snapshot := *it
	res.Item = &snapshot

	if !t.persist(ctx, &res) && res.State == StateExisting {
		// An unsaved wear is dropped so the next capture records it again.
		it.WearCount = prev.WearCount
		it.LastWorn = prev.LastWorn
	}
	t.logger.Info("capture classified",
		"state", res.State,
		"collection", collection,
		"id", it.ID,
		"name", it.DisplayName(),
		"score", res.Score,
		"days_since", res.DaysSince,
		"wear_count", it.WearCount,
	)
	return res, nil
}

// persist saves the catalog, turning a failure into a result warning, and
// reports whether the save succeeded. Callers hold t.mu.
func (t *Tracker) persist(ctx context.Context, res *Result) bool {
	if err := t.store.Save(ctx, t.catalog); err != nil {
		t.logger.Error("failed to save catalog", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("catalog not saved: %v", err))
		return false
	}
	return true
}

// save persists the catalog and reports failures as errors. Callers hold t.mu.
func (t *Tracker) save(ctx context.Context) error {
	if err := t.store.Save(ctx, t.catalog); err != nil {
		t.logger.Error("failed to save catalog", "error", err)
		return fmt.Errorf("saving catalog: %w", err)
	}
	return nil
}
