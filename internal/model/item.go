package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Item is a catalogued garment (kind single) or full outfit (kind composite).
// Listings reuse the same shape with the listing fields populated.
type Item struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	Kind              Kind            `json:"kind,omitempty"`
	Image             []byte          `json:"image,omitempty"`
	Features          Descriptor      `json:"features,omitempty"`
	ReferenceImages   [][]byte        `json:"reference_images,omitempty"`
	ReferenceFeatures []Descriptor    `json:"reference_features,omitempty"`
	LastWorn          time.Time       `json:"last_worn"`
	WearCount         int             `json:"wear_count"`
	ResetPeriod       int             `json:"reset_period,omitempty"`
	AIAnalysis        json.RawMessage `json:"ai_analysis,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ListedFrom        Collection      `json:"listed_from,omitempty"`
	SourceID          *int64          `json:"source_id,omitempty"`
	DateListed        *time.Time      `json:"date_listed,omitempty"`
}

// Kind discriminates single garments from composite outfits.
type Kind string

// Item kinds.
const (
	KindSingle    Kind = "single"
	KindComposite Kind = "composite"
)

// TypeFullOutfit is the category tag historically used for outfits.
const TypeFullOutfit = "Full Outfit"

// Categories lists the garment types offered by the capture flow.
var Categories = []string{
	"T-Shirt", "Hoodie", "Jacket", "Pants", "Shorts", "Dress",
	"Skirt", "Shoes", "Hat", "Accessory", TypeFullOutfit,
}

// DefaultResetPeriod is the global rest period in days.
const DefaultResetPeriod = 7

// DefaultListingThreshold is the number of unworn days after which an item
// becomes eligible for the marketplace.
const DefaultListingThreshold = 8

var titleCaser = cases.Title(language.English)

// NormalizeType trims and title-cases a category tag ("full outfit" -> "Full Outfit").
func NormalizeType(t string) string {
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return ""
	}
	return titleCaser.String(t)
}

// References returns every reference descriptor of the item. Legacy items
// that only carry a primary descriptor yield that descriptor alone.
func (it *Item) References() []Descriptor {
	if len(it.ReferenceFeatures) > 0 {
		return it.ReferenceFeatures
	}
	if len(it.Features) > 0 {
		return []Descriptor{it.Features}
	}
	return nil
}

// ViewCount returns the number of captured reference views.
func (it *Item) ViewCount() int {
	if len(it.ReferenceImages) > 0 {
		return len(it.ReferenceImages)
	}
	if len(it.Image) > 0 {
		return 1
	}
	return 0
}

// AddView appends a captured view. Items stored in the legacy single-view
// shape get their primary view copied into the reference set first so both
// sequences stay the same length.
func (it *Item) AddView(image []byte, d Descriptor) {
	if len(it.ReferenceImages) == 0 && len(it.ReferenceFeatures) == 0 && len(it.Features) > 0 {
		it.ReferenceImages = append(it.ReferenceImages, it.Image)
		it.ReferenceFeatures = append(it.ReferenceFeatures, it.Features)
	}
	it.ReferenceImages = append(it.ReferenceImages, image)
	it.ReferenceFeatures = append(it.ReferenceFeatures, d)
	if len(it.Image) == 0 {
		it.Image = image
	}
	if len(it.Features) == 0 {
		it.Features = d
	}
}

// EffectiveResetPeriod returns the item override, or def when unset.
func (it *Item) EffectiveResetPeriod(def int) int {
	if it.ResetPeriod >= 1 {
		return it.ResetPeriod
	}
	if def >= 1 {
		return def
	}
	return DefaultResetPeriod
}

// NeverWorn reports whether the item has no recorded wear date. Such an item
// is outside any reset period.
func (it *Item) NeverWorn() bool { return it.LastWorn.IsZero() }

// DaysSinceWorn returns the whole days elapsed between last_worn and now.
func (it *Item) DaysSinceWorn(now time.Time) int {
	return DaysBetween(it.LastWorn, now)
}

// DisplayName returns the name, falling back to the type.
func (it *Item) DisplayName() string {
	if it.Name != "" {
		return it.Name
	}
	return it.Type
}

// DaysBetween returns the number of whole days from -> to, floored, and never
// negative.
func DaysBetween(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}

// UnmarshalJSON accepts both RFC 3339 timestamps and the naive ISO timestamps
// written by older catalog files.
func (it *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	aux := struct {
		*alias
		LastWorn   string `json:"last_worn"`
		CreatedAt  string `json:"created_at"`
		DateListed string `json:"date_listed"`
	}{alias: (*alias)(it)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if it.LastWorn, err = parseTimestamp(aux.LastWorn); err != nil {
		return fmt.Errorf("parsing last_worn: %w", err)
	}
	if it.CreatedAt, err = parseTimestamp(aux.CreatedAt); err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	listed, err := parseTimestamp(aux.DateListed)
	if err != nil {
		return fmt.Errorf("parsing date_listed: %w", err)
	}
	if !listed.IsZero() {
		it.DateListed = &listed
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp parses the layouts seen in catalog files. Naive timestamps
// are interpreted in local time. The empty string yields the zero time.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
