// Package similarity compares image descriptors.
//
// Descriptors produced by different extractor configurations can differ in
// length; comparisons use the common prefix. Vectors are normalized to unit
// length before the cosine is taken, so scores lie in [-1, 1].
package similarity

import (
	"math"

	"github.com/erazemk/vestique/internal/model"
)

// Score returns the cosine similarity of a and b over their common prefix.
// Empty or zero-length input scores 0.
func Score(a, b model.Descriptor) float64 {
	n := min(a.Len(), b.Len())
	if n == 0 {
		return 0
	}
	ua := a.Truncate(n).Normalized()
	ub := b.Truncate(n).Normalized()
	if ua == nil || ub == nil {
		return 0
	}

	var dot float64
	for i := range n {
		dot += ua[i] * ub[i]
	}
	// Rounding can push a self-comparison a hair past 1.
	return math.Max(-1, math.Min(1, dot))
}

// ScoreMulti returns the best score of a against any reference view.
// An empty reference set scores 0.
func ScoreMulti(a model.Descriptor, refs []model.Descriptor) float64 {
	if len(refs) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, r := range refs {
		if s := Score(a, r); s > best {
			best = s
		}
	}
	return best
}

// ItemScore scores a against every reference view of item, falling back to
// the primary descriptor for items stored in the single-view shape.
func ItemScore(a model.Descriptor, item *model.Item) float64 {
	if item == nil {
		return 0
	}
	return ScoreMulti(a, item.References())
}

// Match is a scored candidate.
type Match struct {
	Index int
	Score float64
}

// Best returns the highest-scoring item whose score is at least threshold.
// Ties keep the earliest item. ok is false when nothing qualifies.
func Best(a model.Descriptor, items []model.Item, threshold float64) (m Match, ok bool) {
	for i := range items {
		s := ItemScore(a, &items[i])
		if s < threshold {
			continue
		}
		if !ok || s > m.Score {
			m = Match{Index: i, Score: s}
			ok = true
		}
	}
	return m, ok
}
