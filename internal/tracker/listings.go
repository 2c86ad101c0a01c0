package tracker

import (
	"context"

	"github.com/erazemk/vestique/internal/model"
)

// MigrateListings moves every wardrobe item that has not been worn for at
// least the listing threshold into listings. Running it again without an
// intervening wear moves nothing.
func (t *Tracker) MigrateListings(ctx context.Context) ([]model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var moved []model.Item
	for _, from := range []model.Collection{model.CollectionItems, model.CollectionOutfits} {
		items, err := t.catalog.List(from)
		if err != nil {
			return nil, err
		}

		var eligible []int64
		for i := range items {
			it := &items[i]
			if !it.NeverWorn() && it.DaysSinceWorn(now) < t.cfg.ListingThreshold {
				continue
			}
			if t.catalog.IsListed(from, it.ID) {
				continue
			}
			eligible = append(eligible, it.ID)
		}

		for _, id := range eligible {
			listed, err := t.catalog.Move(from, model.CollectionListings, id)
			if err != nil {
				return moved, err
			}
			listed, err = t.catalog.Update(model.CollectionListings, listed.ID, func(it *model.Item) {
				it.DateListed = &now
			})
			if err != nil {
				return moved, err
			}
			moved = append(moved, listed)
			t.logger.Info("item listed",
				"from", from,
				"source_id", id,
				"listing_id", listed.ID,
				"name", listed.DisplayName(),
			)
		}
	}

	if len(moved) == 0 {
		return nil, nil
	}
	if err := t.save(ctx); err != nil {
		return moved, err
	}
	return moved, nil
}

// ClaimListing removes a listing that was taken up on the marketplace.
func (t *Tracker) ClaimListing(ctx context.Context, id int64) (model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	claimed, err := t.catalog.Remove(model.CollectionListings, id)
	if err != nil {
		return model.Item{}, err
	}
	if err := t.save(ctx); err != nil {
		return claimed, err
	}
	t.logger.Info("listing claimed", "id", id, "name", claimed.DisplayName())
	return claimed, nil
}
