package features

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/erazemk/vestique/internal/imaging"
	"github.com/erazemk/vestique/internal/model"
)

// ErrExtraction marks any failure to turn an image into a descriptor.
var ErrExtraction = errors.New("feature extraction failed")

// Defaults for Options.
const (
	DefaultColorWeight   = 0.3
	DefaultHistogramBins = 32
)

// Options tune descriptor construction.
type Options struct {
	// ColorWeight is the share of the colour signature; the embedding gets
	// 1 - ColorWeight.
	ColorWeight float64
	// HistogramBins is the number of buckets per colour channel.
	HistogramBins int
	// CompositeRegions enables per-garment extraction for outfits.
	CompositeRegions bool
}

// Extractor builds descriptors from images.
type Extractor struct {
	backbone Backbone
	opts     Options
	logger   *slog.Logger
}

// New returns an Extractor using backbone. Zero option values take defaults.
func New(backbone Backbone, opts Options, logger *slog.Logger) *Extractor {
	if backbone == nil {
		backbone = NewGridBackbone()
	}
	if opts.ColorWeight <= 0 || opts.ColorWeight >= 1 {
		opts.ColorWeight = DefaultColorWeight
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = DefaultHistogramBins
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{backbone: backbone, opts: opts, logger: logger}
}

// Backbone returns the configured backbone.
func (e *Extractor) Backbone() Backbone { return e.backbone }

// Extract returns the descriptor of img. Composite items are extracted per
// garment region when enabled. Every failure wraps ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, img image.Image, kind model.Kind) (d model.Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("%w: panic: %v", ErrExtraction, r)
		}
	}()

	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrExtraction)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrExtraction)
	}

	whole, err := e.single(ctx, img)
	if err != nil {
		return nil, err
	}
	if kind != model.KindComposite || !e.opts.CompositeRegions {
		return whole, nil
	}

	regions := garmentRegions(img)
	if len(regions) == 0 {
		return whole, nil
	}
	parts := []model.Descriptor{whole}
	for _, r := range regions {
		rd, err := e.single(ctx, imaging.Crop(img, r))
		if err != nil {
			// A failed region only loses detail; the whole-image view stands.
			e.logger.Warn("region extraction failed", "region", r.String(), "error", err)
			continue
		}
		parts = append(parts, rd)
	}
	e.logger.Debug("composite extraction", "regions", len(parts)-1)
	return model.Mean(parts), nil
}

func (e *Extractor) single(ctx context.Context, img image.Image) (model.Descriptor, error) {
	emb, err := e.backbone.Embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s backbone: %v", ErrExtraction, e.backbone.Name(), err)
	}
	embUnit := emb.Normalized()
	if embUnit == nil || !embUnit.Valid() {
		return nil, fmt.Errorf("%w: degenerate embedding", ErrExtraction)
	}

	color := colorSignature(img, e.opts.HistogramBins).Normalized()
	if color == nil {
		return nil, fmt.Errorf("%w: empty colour signature", ErrExtraction)
	}

	return model.Concat(
		embUnit.Scale(1-e.opts.ColorWeight),
		color.Scale(e.opts.ColorWeight),
	), nil
}
