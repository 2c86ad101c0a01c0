package features

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/vestique/internal/model"
	"github.com/erazemk/vestique/internal/similarity"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// outfit draws a red top over blue trousers on a white backdrop.
func outfit() *image.RGBA {
	img := solid(200, 400, color.White)
	for y := 40; y < 360; y++ {
		for x := 50; x < 150; x++ {
			c := color.RGBA{200, 20, 20, 255}
			if y >= 200 {
				c = color.RGBA{20, 20, 180, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

type stubBackbone struct {
	out   model.Descriptor
	err   error
	panic bool
}

func (s *stubBackbone) Name() string { return "stub" }

func (s *stubBackbone) Embed(context.Context, image.Image) (model.Descriptor, error) {
	if s.panic {
		panic("boom")
	}
	return s.out, s.err
}

func TestGridBackboneDeterministic(t *testing.T) {
	g := NewGridBackbone()
	img := outfit()

	a, err := g.Embed(context.Background(), img)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := g.Embed(context.Background(), img)

	if a.Len() != g.Dim() {
		t.Fatalf("expected %d dims, got %d", g.Dim(), a.Len())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs between runs", i)
		}
	}
}

func TestGridBackboneCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewGridBackbone().Embed(ctx, outfit()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestExtractLayout(t *testing.T) {
	e := New(nil, Options{}, nil)
	d, err := e.Extract(context.Background(), solid(64, 64, color.RGBA{120, 80, 40, 255}), model.KindSingle)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := NewGridBackbone().Dim() + 6*DefaultHistogramBins
	if d.Len() != want {
		t.Fatalf("expected %d components, got %d", want, d.Len())
	}
	if n := d.Norm(); math.Abs(n-math.Hypot(1-DefaultColorWeight, DefaultColorWeight)) > 1e-9 {
		t.Errorf("unexpected descriptor norm %f", n)
	}
}

func TestExtractSameImageScoresOne(t *testing.T) {
	e := New(nil, Options{}, nil)
	img := outfit()

	a, err := e.Extract(context.Background(), img, model.KindSingle)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	b, _ := e.Extract(context.Background(), img, model.KindSingle)

	if s := similarity.Score(a, b); math.Abs(s-1) > 1e-9 {
		t.Errorf("expected self score 1, got %f", s)
	}
}

func TestExtractSeparatesColours(t *testing.T) {
	e := New(nil, Options{}, nil)
	ctx := context.Background()

	red, _ := e.Extract(ctx, solid(64, 64, color.RGBA{255, 0, 0, 255}), model.KindSingle)
	darkRed, _ := e.Extract(ctx, solid(64, 64, color.RGBA{204, 0, 0, 255}), model.KindSingle)
	blue, _ := e.Extract(ctx, solid(64, 64, color.RGBA{0, 0, 255, 255}), model.KindSingle)

	near := similarity.Score(red, darkRed)
	far := similarity.Score(red, blue)
	if near <= far {
		t.Errorf("expected red closer to dark red (%f) than to blue (%f)", near, far)
	}
}

func TestExtractFailures(t *testing.T) {
	ctx := context.Background()
	img := solid(16, 16, color.Black)

	tests := map[string]struct {
		backbone Backbone
		img      image.Image
	}{
		"nil image":      {NewGridBackbone(), nil},
		"empty image":    {NewGridBackbone(), image.NewRGBA(image.Rect(0, 0, 0, 0))},
		"backbone error": {&stubBackbone{err: errors.New("offline")}, img},
		"zero embedding": {&stubBackbone{out: model.Descriptor{0, 0}}, img},
		"nan embedding":  {&stubBackbone{out: model.Descriptor{1, math.NaN()}}, img},
		"panic":          {&stubBackbone{panic: true}, img},
	}
	for name, tt := range tests {
		e := New(tt.backbone, Options{}, nil)
		if _, err := e.Extract(ctx, tt.img, model.KindSingle); !errors.Is(err, ErrExtraction) {
			t.Errorf("%s: expected ErrExtraction, got %v", name, err)
		}
	}
}

func TestGarmentRegions(t *testing.T) {
	regions := garmentRegions(outfit())
	if len(regions) != 2 {
		t.Fatalf("expected upper and lower bands, got %v", regions)
	}
	if regions[0].Min.Y >= regions[1].Min.Y {
		t.Errorf("expected upper band first, got %v", regions)
	}
	if r := garmentRegions(solid(200, 200, color.White)); r != nil {
		t.Errorf("expected no regions on a blank image, got %v", r)
	}
}

func TestExtractCompositeRegions(t *testing.T) {
	ctx := context.Background()
	img := outfit()

	whole, _ := New(nil, Options{}, nil).Extract(ctx, img, model.KindComposite)
	regional, err := New(nil, Options{CompositeRegions: true}, nil).Extract(ctx, img, model.KindComposite)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if regional.Len() != whole.Len() {
		t.Fatalf("region averaging changed the layout: %d vs %d", regional.Len(), whole.Len())
	}
	if s := similarity.Score(whole, regional); s >= 1-1e-9 {
		t.Errorf("expected regional descriptor to differ from the whole, got %f", s)
	}

	// Without detectable garments the whole-image descriptor is used.
	blank := solid(100, 100, color.White)
	a, _ := New(nil, Options{}, nil).Extract(ctx, blank, model.KindComposite)
	b, _ := New(nil, Options{CompositeRegions: true}, nil).Extract(ctx, blank, model.KindComposite)
	if s := similarity.Score(a, b); math.Abs(s-1) > 1e-9 {
		t.Errorf("expected fallback to single view, got score %f", s)
	}
}

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		r, g, b float64
		h, s, v float64
	}{
		{1, 0, 0, 0, 1, 1},
		{0, 1, 0, 1.0 / 3, 1, 1},
		{0, 0, 1, 2.0 / 3, 1, 1},
		{0.5, 0.5, 0.5, 0, 0, 0.5},
	}
	for _, tt := range tests {
		h, s, v := rgbToHSV(tt.r, tt.g, tt.b)
		if math.Abs(h-tt.h) > 1e-9 || math.Abs(s-tt.s) > 1e-9 || math.Abs(v-tt.v) > 1e-9 {
			t.Errorf("rgbToHSV(%v,%v,%v) = %v,%v,%v", tt.r, tt.g, tt.b, h, s, v)
		}
	}
}

func TestRemoteBackbone(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req embeddingRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Inputs) != 1 || !strings.HasPrefix(req.Inputs[0].Content[0].ImageBase64, "data:image/jpeg;base64,") {
			t.Errorf("unexpected request body %s", body)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	rb, err := NewRemoteBackbone(RemoteConfig{APIKey: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewRemoteBackbone: %v", err)
	}
	img := outfit()

	d, err := rb.Embed(context.Background(), img)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if d.Len() != 3 {
		t.Errorf("expected 3 components, got %d", d.Len())
	}
	if _, err := rb.Embed(context.Background(), img); err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected cached second call, got %d requests", n)
	}
}

func TestRemoteBackboneRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	rb, _ := NewRemoteBackbone(
		RemoteConfig{APIKey: "k", BaseURL: srv.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := rb.Embed(context.Background(), outfit()); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 2 || len(slept) != 1 {
		t.Errorf("expected one retry, got %d calls and %d sleeps", calls.Load(), len(slept))
	}
}

func TestRemoteBackboneClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	rb, _ := NewRemoteBackbone(RemoteConfig{APIKey: "k", BaseURL: srv.URL}, WithSleeper(func(time.Duration) {}))
	e := New(rb, Options{}, nil)
	if _, err := e.Extract(context.Background(), outfit(), model.KindSingle); !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("client errors must not be retried, got %d calls", calls.Load())
	}
}

func TestNewRemoteBackboneRequiresKey(t *testing.T) {
	if _, err := NewRemoteBackbone(RemoteConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}
