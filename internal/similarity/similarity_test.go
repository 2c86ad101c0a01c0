package similarity

import (
	"math"
	"testing"

	"github.com/erazemk/vestique/internal/model"
)

const tolerance = 1e-9

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]model.Descriptor{
		{{1, 2, 3}, {3, 2, 1}},
		{{0.5, -1, 4, 2}, {1, 1, 1, 1}},
		{{-1, 0}, {1, 0}},
	}
	for _, p := range pairs {
		ab, ba := Score(p[0], p[1]), Score(p[1], p[0])
		if math.Abs(ab-ba) > tolerance {
			t.Errorf("Score not symmetric for %v, %v: %f vs %f", p[0], p[1], ab, ba)
		}
	}
}

func TestScoreSelf(t *testing.T) {
	for _, d := range []model.Descriptor{{1}, {0.3, 0.4, 12}, {-5, 2, 0, 7}} {
		if got := Score(d, d); math.Abs(got-1) > tolerance {
			t.Errorf("Score(%v, %v) = %f, want 1", d, d, got)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	if got := Score(model.Descriptor{1, 0}, model.Descriptor{-1, 0}); math.Abs(got+1) > tolerance {
		t.Errorf("opposite vectors should score -1, got %f", got)
	}
	if got := Score(model.Descriptor{1, 0}, model.Descriptor{0, 1}); math.Abs(got) > tolerance {
		t.Errorf("orthogonal vectors should score 0, got %f", got)
	}
}

func TestScoreTruncates(t *testing.T) {
	short := model.Descriptor{1, 2}
	long := model.Descriptor{1, 2, 100, -100}

	got := Score(short, long)
	if math.Abs(got-1) > tolerance {
		t.Errorf("expected common prefix to match exactly, got %f", got)
	}
}

func TestScoreDegenerate(t *testing.T) {
	tests := []struct {
		a, b model.Descriptor
	}{
		{nil, model.Descriptor{1}},
		{model.Descriptor{1}, nil},
		{model.Descriptor{}, model.Descriptor{}},
		{model.Descriptor{0, 0}, model.Descriptor{1, 1}},
	}
	for _, tt := range tests {
		if got := Score(tt.a, tt.b); got != 0 {
			t.Errorf("Score(%v, %v) = %f, want 0", tt.a, tt.b, got)
		}
	}
}

func TestScoreMultiIsMax(t *testing.T) {
	x := model.Descriptor{1, 1, 0}
	refs := []model.Descriptor{{0, 0, 1}, {1, 0.9, 0}, {1, 0, 0}}

	multi := ScoreMulti(x, refs)
	for _, r := range refs {
		if s := Score(x, r); multi < s {
			t.Errorf("ScoreMulti = %f is below Score against %v = %f", multi, r, s)
		}
	}
	if math.Abs(multi-Score(x, refs[1])) > tolerance {
		t.Errorf("expected ScoreMulti to equal best view score")
	}
}

func TestScoreMultiEmpty(t *testing.T) {
	if got := ScoreMulti(model.Descriptor{1}, nil); got != 0 {
		t.Errorf("expected 0 for empty references, got %f", got)
	}
}

func TestItemScoreLegacyShape(t *testing.T) {
	item := &model.Item{Features: model.Descriptor{1, 0}}
	if got := ItemScore(model.Descriptor{1, 0}, item); math.Abs(got-1) > tolerance {
		t.Errorf("expected primary descriptor fallback to match, got %f", got)
	}
	if got := ItemScore(model.Descriptor{1, 0}, &model.Item{}); got != 0 {
		t.Errorf("item without descriptors should score 0, got %f", got)
	}
}

// descriptorWithScore builds a unit vector whose cosine against {1, 0} is s.
func descriptorWithScore(s float64) model.Descriptor {
	return model.Descriptor{s, math.Sqrt(1 - s*s)}
}

func TestBestPicksHighestAboveThreshold(t *testing.T) {
	query := model.Descriptor{1, 0}
	items := []model.Item{
		{Name: "close", Features: descriptorWithScore(0.77)},
		{Name: "closest", Features: descriptorWithScore(0.81)},
		{Name: "far", Features: descriptorWithScore(0.2)},
	}

	m, ok := Best(query, items, 0.80)
	if !ok {
		t.Fatal("expected a match")
	}
	if items[m.Index].Name != "closest" {
		t.Errorf("expected closest item, got %q", items[m.Index].Name)
	}
	if math.Abs(m.Score-0.81) > 1e-6 {
		t.Errorf("expected score 0.81, got %f", m.Score)
	}
}

func TestBestThresholdInclusive(t *testing.T) {
	query := model.Descriptor{1, 0}
	items := []model.Item{{Features: model.Descriptor{1, 1}}}
	exact := Score(query, items[0].Features)

	if _, ok := Best(query, items, exact); !ok {
		t.Error("score equal to threshold must match")
	}
	if _, ok := Best(query, items, math.Nextafter(exact, 2)); ok {
		t.Error("score just below threshold must not match")
	}
}

func TestBestTieKeepsFirst(t *testing.T) {
	query := model.Descriptor{1, 0}
	items := []model.Item{
		{Name: "first", Features: model.Descriptor{2, 0}},
		{Name: "second", Features: model.Descriptor{3, 0}},
	}
	m, ok := Best(query, items, 0.5)
	if !ok || items[m.Index].Name != "first" {
		t.Errorf("expected first item on tie, got %+v", m)
	}
}
