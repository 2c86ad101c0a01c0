package features

import (
	"context"
	"image"
	"math"

	"github.com/erazemk/vestique/internal/imaging"
	"github.com/erazemk/vestique/internal/model"
)

// Backbone produces a global visual embedding for an image.
type Backbone interface {
	Name() string
	Embed(ctx context.Context, img image.Image) (model.Descriptor, error)
}

// InputSize is the square resolution images are resized to before embedding.
const InputSize = 224

const (
	gridCells        = 8
	orientationCells = 4
	orientationBins  = 8
)

// ImageNet channel statistics used to normalize pixel values.
var (
	channelMean = [3]float64{0.485, 0.456, 0.406}
	channelStd  = [3]float64{0.229, 0.224, 0.225}
)

// GridBackbone is a deterministic in-process embedding: the image is resized
// to InputSize, normalized with ImageNet statistics and summarized as an 8x8
// grid of mean channel values followed by a 4x4 grid of 8-bin gradient
// orientation histograms. It is not a learned model; see the package doc.
type GridBackbone struct{}

// NewGridBackbone returns the in-process backbone.
func NewGridBackbone() *GridBackbone { return &GridBackbone{} }

// Name implements Backbone.
func (*GridBackbone) Name() string { return "grid" }

// Dim returns the embedding length.
func (*GridBackbone) Dim() int {
	return gridCells*gridCells*3 + orientationCells*orientationCells*orientationBins
}

// Embed implements Backbone.
func (g *GridBackbone) Embed(ctx context.Context, img image.Image) (model.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rgba := imaging.Resize(img, InputSize, InputSize)

	// Normalized channel planes and luminance.
	n := InputSize * InputSize
	var planes [3][]float64
	for c := range planes {
		planes[c] = make([]float64, n)
	}
	lum := make([]float64, n)
	for y := range InputSize {
		for x := range InputSize {
			o := rgba.PixOffset(x, y)
			i := y*InputSize + x
			var v [3]float64
			for c := range 3 {
				v[c] = float64(rgba.Pix[o+c]) / 255
				planes[c][i] = (v[c] - channelMean[c]) / channelStd[c]
			}
			lum[i] = 0.299*v[0] + 0.587*v[1] + 0.114*v[2]
		}
	}

	out := make(model.Descriptor, 0, g.Dim())
	out = append(out, gridMeans(planes)...)
	out = append(out, orientationHistograms(lum)...)
	return out, nil
}

func gridMeans(planes [3][]float64) []float64 {
	cell := InputSize / gridCells
	out := make([]float64, 0, gridCells*gridCells*3)
	for gy := range gridCells {
		for gx := range gridCells {
			var sum [3]float64
			for y := gy * cell; y < (gy+1)*cell; y++ {
				for x := gx * cell; x < (gx+1)*cell; x++ {
					i := y*InputSize + x
					for c := range 3 {
						sum[c] += planes[c][i]
					}
				}
			}
			area := float64(cell * cell)
			out = append(out, sum[0]/area, sum[1]/area, sum[2]/area)
		}
	}
	return out
}

func orientationHistograms(lum []float64) []float64 {
	cell := InputSize / orientationCells
	hist := make([]float64, orientationCells*orientationCells*orientationBins)
	for y := 1; y < InputSize-1; y++ {
		for x := 1; x < InputSize-1; x++ {
			gx := lum[y*InputSize+x+1] - lum[y*InputSize+x-1]
			gy := lum[(y+1)*InputSize+x] - lum[(y-1)*InputSize+x]
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			// Unsigned orientation in [0, pi).
			theta := math.Atan2(gy, gx)
			if theta < 0 {
				theta += math.Pi
			}
			bin := min(int(theta/math.Pi*orientationBins), orientationBins-1)
			cx, cy := min(x/cell, orientationCells-1), min(y/cell, orientationCells-1)
			hist[(cy*orientationCells+cx)*orientationBins+bin] += mag
		}
	}
	// Per-cell L2 normalization keeps contrast changes from dominating.
	for c := 0; c < len(hist); c += orientationBins {
		block := model.Descriptor(hist[c : c+orientationBins])
		if norm := block.Norm(); norm > 0 {
			for i := range block {
				block[i] /= norm
			}
		}
	}
	return hist
}
