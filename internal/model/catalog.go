package model

import (
	"errors"
	"fmt"
	"strings"
)

// Collection names a top-level array of the catalog document.
type Collection string

// Catalog collections.
const (
	CollectionItems    Collection = "items"
	CollectionOutfits  Collection = "outfits"
	CollectionListings Collection = "listings"
)

// Collections lists every collection in document order.
var Collections = []Collection{CollectionItems, CollectionOutfits, CollectionListings}

var (
	// ErrNotFound is returned when no item has the requested id.
	ErrNotFound = errors.New("item not found")
	// ErrUnknownCollection is returned for collection names outside Collections.
	ErrUnknownCollection = errors.New("unknown collection")
)

// ParseCollection validates a collection name. Singular forms are accepted.
func ParseCollection(s string) (Collection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "items", "item":
		return CollectionItems, nil
	case "outfits", "outfit":
		return CollectionOutfits, nil
	case "listings", "listing":
		return CollectionListings, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

// Wardrobe reports whether items in c are subject to wear tracking.
func (c Collection) Wardrobe() bool {
	return c == CollectionItems || c == CollectionOutfits
}

// Kind returns the item kind stored in a wardrobe collection.
func (c Collection) Kind() Kind {
	if c == CollectionOutfits {
		return KindComposite
	}
	return KindSingle
}

// Catalog is the full persisted state: three ordered collections plus the
// per-collection id counters.
type Catalog struct {
	Items    []Item               `json:"items"`
	Outfits  []Item               `json:"outfits"`
	Listings []Item               `json:"listings"`
	NextIDs  map[Collection]int64 `json:"next_ids,omitempty"`
}

// NewCatalog returns an empty catalog with all collections present.
func NewCatalog() *Catalog {
	return &Catalog{
		Items:    []Item{},
		Outfits:  []Item{},
		Listings: []Item{},
		NextIDs:  map[Collection]int64{},
	}
}

func (c *Catalog) slice(name Collection) (*[]Item, error) {
	switch name {
	case CollectionItems:
		return &c.Items, nil
	case CollectionOutfits:
		return &c.Outfits, nil
	case CollectionListings:
		return &c.Listings, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// List returns the items of a collection in stored order. The returned slice
// aliases catalog storage.
func (c *Catalog) List(name Collection) ([]Item, error) {
	s, err := c.slice(name)
	if err != nil {
		return nil, err
	}
	return *s, nil
}

// Find returns a pointer to the stored item with the given id.
func (c *Catalog) Find(name Collection, id int64) (*Item, error) {
	s, err := c.slice(name)
	if err != nil {
		return nil, err
	}
	for i := range *s {
		if (*s)[i].ID == id {
			return &(*s)[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, name, id)
}

// Append stores item under a freshly assigned id and returns the stored copy.
func (c *Catalog) Append(name Collection, item Item) (Item, error) {
	s, err := c.slice(name)
	if err != nil {
		return Item{}, err
	}
	item.ID = c.nextID(name)
	*s = append(*s, item)
	return item, nil
}

// Update applies fn to the stored item and returns the updated copy.
func (c *Catalog) Update(name Collection, id int64, fn func(*Item)) (Item, error) {
	it, err := c.Find(name, id)
	if err != nil {
		return Item{}, err
	}
	fn(it)
	return *it, nil
}

// Remove deletes the item and returns it. Its id is not reused.
func (c *Catalog) Remove(name Collection, id int64) (Item, error) {
	s, err := c.slice(name)
	if err != nil {
		return Item{}, err
	}
	for i := range *s {
		if (*s)[i].ID == id {
			removed := (*s)[i]
			*s = append((*s)[:i:i], (*s)[i+1:]...)
			return removed, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %s/%d", ErrNotFound, name, id)
}

// Move removes the item from one collection and appends it to another under
// a new id, recording where it came from.
func (c *Catalog) Move(from, to Collection, id int64) (Item, error) {
	if from == to {
		return Item{}, fmt.Errorf("moving %s/%d: source and target are the same", from, id)
	}
	if _, err := c.slice(to); err != nil {
		return Item{}, err
	}
	item, err := c.Remove(from, id)
	if err != nil {
		return Item{}, err
	}
	sourceID := item.ID
	item.ListedFrom = from
	item.SourceID = &sourceID
	return c.Append(to, item)
}

// IsListed reports whether an item from collection from with the given id
// already has a listing.
func (c *Catalog) IsListed(from Collection, id int64) bool {
	for _, l := range c.Listings {
		if l.ListedFrom == from && l.SourceID != nil && *l.SourceID == id {
			return true
		}
	}
	return false
}

// Len returns the total number of stored items.
func (c *Catalog) Len() int {
	return len(c.Items) + len(c.Outfits) + len(c.Listings)
}

func (c *Catalog) nextID(name Collection) int64 {
	if c.NextIDs == nil {
		c.NextIDs = map[Collection]int64{}
	}
	s, _ := c.slice(name)
	next := c.NextIDs[name]
	for _, it := range *s {
		if it.ID >= next {
			next = it.ID + 1
		}
	}
	c.NextIDs[name] = next + 1
	return next
}

// Normalize fills the defaults older catalog files omit and repairs shapes
// that would break invariants. It reports whether anything changed.
func (c *Catalog) Normalize() bool {
	changed := false
	if c.NextIDs == nil {
		c.NextIDs = map[Collection]int64{}
		changed = true
	}
	for _, name := range Collections {
		s, _ := c.slice(name)
		if *s == nil {
			*s = []Item{}
			changed = true
		}
		for i := range *s {
			if normalizeItem(&(*s)[i], name) {
				changed = true
			}
		}
	}
	return changed
}

func normalizeItem(it *Item, name Collection) bool {
	changed := false
	if it.Kind == "" {
		kind := name.Kind()
		if it.Type == TypeFullOutfit || it.ListedFrom == CollectionOutfits {
			kind = KindComposite
		}
		it.Kind = kind
		changed = true
	}
	if it.Name == "" && it.Type != "" {
		it.Name = it.Type
		changed = true
	}
	if it.WearCount < 0 {
		it.WearCount = 0
		changed = true
	}
	if it.ResetPeriod < 0 {
		it.ResetPeriod = 0
		changed = true
	}
	if n, m := len(it.ReferenceImages), len(it.ReferenceFeatures); n != m {
		k := min(n, m)
		it.ReferenceImages = it.ReferenceImages[:k]
		it.ReferenceFeatures = it.ReferenceFeatures[:k]
		changed = true
	}
	return changed
}
