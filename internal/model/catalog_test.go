package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	c := NewCatalog()

	a, _ := c.Append(CollectionItems, Item{Name: "Red Hoodie"})
	b, _ := c.Append(CollectionItems, Item{Name: "Blue Jeans"})
	o, _ := c.Append(CollectionOutfits, Item{Name: "Friday"})

	if a.ID != 0 || b.ID != 1 {
		t.Errorf("expected ids 0 and 1, got %d and %d", a.ID, b.ID)
	}
	if o.ID != 0 {
		t.Errorf("expected outfit ids to start at 0, got %d", o.ID)
	}
}

func TestRemovedIDsAreNotReused(t *testing.T) {
	c := NewCatalog()
	c.Append(CollectionItems, Item{Name: "a"})
	last, _ := c.Append(CollectionItems, Item{Name: "b"})

	if _, err := c.Remove(CollectionItems, last.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	next, _ := c.Append(CollectionItems, Item{Name: "c"})
	if next.ID == last.ID {
		t.Errorf("id %d reused after deletion", last.ID)
	}
}

func TestNextIDSurvivesRoundTrip(t *testing.T) {
	c := NewCatalog()
	c.Append(CollectionItems, Item{Name: "a"})
	b, _ := c.Append(CollectionItems, Item{Name: "b"})
	c.Remove(CollectionItems, b.ID)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var loaded Catalog
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	loaded.Normalize()

	next, _ := loaded.Append(CollectionItems, Item{Name: "c"})
	if next.ID != 2 {
		t.Errorf("expected id 2 after reload, got %d", next.ID)
	}
}

func TestFindUnknown(t *testing.T) {
	c := NewCatalog()

	if _, err := c.Find(CollectionItems, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Find("shoes", 0); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	c := NewCatalog()
	it, _ := c.Append(CollectionItems, Item{Name: "a", WearCount: 1})

	got, err := c.Update(CollectionItems, it.ID, func(i *Item) { i.WearCount = 5 })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.WearCount != 5 {
		t.Errorf("expected wear count 5, got %d", got.WearCount)
	}
	stored, _ := c.Find(CollectionItems, it.ID)
	if stored.WearCount != 5 {
		t.Errorf("update not applied to stored item")
	}
}

func TestMoveToListings(t *testing.T) {
	c := NewCatalog()
	c.Append(CollectionItems, Item{Name: "a"})
	b, _ := c.Append(CollectionItems, Item{Name: "b"})

	listed, err := c.Move(CollectionItems, CollectionListings, b.ID)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}

	if len(c.Items) != 1 || len(c.Listings) != 1 {
		t.Fatalf("expected 1 item and 1 listing, got %d and %d", len(c.Items), len(c.Listings))
	}
	if listed.ListedFrom != CollectionItems || listed.SourceID == nil || *listed.SourceID != b.ID {
		t.Errorf("listing does not record its source: %+v", listed)
	}
	if !c.IsListed(CollectionItems, b.ID) {
		t.Error("expected IsListed to report the moved item")
	}
	if c.IsListed(CollectionOutfits, b.ID) {
		t.Error("IsListed must distinguish source collections")
	}
}

func TestMoveSameCollection(t *testing.T) {
	c := NewCatalog()
	it, _ := c.Append(CollectionItems, Item{Name: "a"})
	if _, err := c.Move(CollectionItems, CollectionItems, it.ID); err == nil {
		t.Error("expected error moving to the same collection")
	}
}

func TestNormalizeLegacyDocument(t *testing.T) {
	legacy := `{
		"items": [{
			"id": 0,
			"type": "Hoodie",
			"image": "aGVsbG8=",
			"features": [1, 0, 0],
			"last_worn": "2024-11-20T10:11:12.123456",
			"wear_count": 1
		}],
		"outfits": [{
			"id": 0,
			"type": "Full Outfit",
			"name": "Casual Friday",
			"features": [0, 1],
			"reference_images": ["aGVsbG8=", "aGVsbG8="],
			"reference_features": [[0, 1]],
			"last_worn": "2024-11-18T08:00:00",
			"reset_period": 4,
			"wear_count": 3,
			"ai_analysis": "{\"type\": \"jacket\"}"
		}]
	}`

	var c Catalog
	if err := json.Unmarshal([]byte(legacy), &c); err != nil {
		t.Fatalf("unmarshal legacy: %v", err)
	}
	if !c.Normalize() {
		t.Error("expected Normalize to report changes")
	}

	if c.Listings == nil {
		t.Error("expected listings to be initialized")
	}

	hoodie := c.Items[0]
	if hoodie.Kind != KindSingle || hoodie.Name != "Hoodie" {
		t.Errorf("unexpected defaults: kind=%q name=%q", hoodie.Kind, hoodie.Name)
	}
	if string(hoodie.Image) != "hello" {
		t.Errorf("expected base64 image to decode, got %q", hoodie.Image)
	}
	want := time.Date(2024, 11, 20, 10, 11, 12, 123456000, time.Local)
	if !hoodie.LastWorn.Equal(want) {
		t.Errorf("expected last_worn %v, got %v", want, hoodie.LastWorn)
	}
	if refs := hoodie.References(); len(refs) != 1 || refs[0].Len() != 3 {
		t.Errorf("expected legacy primary descriptor as the only reference, got %v", refs)
	}

	outfit := c.Outfits[0]
	if outfit.Kind != KindComposite {
		t.Errorf("expected composite kind, got %q", outfit.Kind)
	}
	if len(outfit.ReferenceImages) != len(outfit.ReferenceFeatures) {
		t.Errorf("reference lengths differ: %d vs %d", len(outfit.ReferenceImages), len(outfit.ReferenceFeatures))
	}
	if len(outfit.AIAnalysis) == 0 {
		t.Error("expected ai_analysis to be preserved")
	}
}

func TestParseCollection(t *testing.T) {
	tests := []struct {
		in      string
		want    Collection
		wantErr bool
	}{
		{"items", CollectionItems, false},
		{"Outfit", CollectionOutfits, false},
		{" listings ", CollectionListings, false},
		{"shoes", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCollection(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCollection(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCollection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
