package tracker

import (
	"context"
	"fmt"

	"github.com/erazemk/vestique/internal/model"
)

// Annotate asks the annotator to describe an item that has no analysis yet
// and stores the result. Items that already have one are returned as is.
func (t *Tracker) Annotate(ctx context.Context, collection model.Collection, id int64) (model.Item, error) {
	if t.annotator == nil {
		return model.Item{}, ErrAnnotationDisabled
	}

	t.mu.Lock()
	it, err := t.catalog.Find(collection, id)
	if err != nil {
		t.mu.Unlock()
		return model.Item{}, err
	}
	current := *it
	t.mu.Unlock()

	if len(current.AIAnalysis) > 0 {
		return current, nil
	}
	if len(current.Image) == 0 {
		return current, fmt.Errorf("%w: %s/%d has no image", ErrInvalid, collection, id)
	}

	analysis, err := t.annotator.Analyze(ctx, current.Image)
	if err != nil {
		return current, fmt.Errorf("annotating %s/%d: %w", collection, id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	updated, err := t.catalog.Update(collection, id, func(it *model.Item) {
		it.AIAnalysis = analysis
	})
	if err != nil {
		return model.Item{}, err
	}
	if err := t.save(ctx); err != nil {
		return updated, err
	}
	t.logger.Info("item annotated", "collection", collection, "id", id)
	return updated, nil
}

// AnnotateMissing annotates every wardrobe item that lacks an analysis.
// Failures are collected per item and do not stop the run.
func (t *Tracker) AnnotateMissing(ctx context.Context) (annotated int, failures []error) {
	type ref struct {
		collection model.Collection
		id         int64
	}
	var pending []ref

	t.mu.Lock()
	for _, c := range []model.Collection{model.CollectionItems, model.CollectionOutfits} {
		items, _ := t.catalog.List(c)
		for _, it := range items {
			if len(it.AIAnalysis) == 0 && len(it.Image) > 0 {
				pending = append(pending, ref{c, it.ID})
			}
		}
	}
	t.mu.Unlock()

	for _, p := range pending {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		if _, err := t.Annotate(ctx, p.collection, p.id); err != nil {
			failures = append(failures, err)
			continue
		}
		annotated++
	}
	return annotated, failures
}
