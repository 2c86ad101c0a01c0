package features

import (
	"image"
	"math"

	"github.com/erazemk/vestique/internal/model"
)

// maxHistogramSamples bounds the pixels visited per histogram.
const maxHistogramSamples = 1 << 16

// colorSignature returns RGB then HSV histograms, each L1-normalized, with
// bins buckets per channel.
func colorSignature(img image.Image, bins int) model.Descriptor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	step := max(1, int(math.Ceil(math.Sqrt(float64(w*h)/maxHistogramSamples))))

	hist := make([][]float64, 6)
	for i := range hist {
		hist[i] = make([]float64, bins)
	}

	bucket := func(v float64) int {
		return min(int(v*float64(bins)), bins-1)
	}

	var samples float64
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r, g, bl := float64(r16)/0xffff, float64(g16)/0xffff, float64(b16)/0xffff
			hh, ss, vv := rgbToHSV(r, g, bl)

			hist[0][bucket(r)]++
			hist[1][bucket(g)]++
			hist[2][bucket(bl)]++
			hist[3][bucket(hh)]++
			hist[4][bucket(ss)]++
			hist[5][bucket(vv)]++
			samples++
		}
	}

	out := make(model.Descriptor, 0, 6*bins)
	for _, ch := range hist {
		for _, v := range ch {
			if samples > 0 {
				v /= samples
			}
			out = append(out, v)
		}
	}
	return out
}

// rgbToHSV converts components in [0,1] to hue, saturation and value, all
// in [0,1].
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	mx := math.Max(r, math.Max(g, b))
	mn := math.Min(r, math.Min(g, b))
	v = mx
	d := mx - mn
	if mx > 0 {
		s = d / mx
	}
	if d == 0 {
		return 0, s, v
	}
	switch mx {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6
	if h < 0 {
		h++
	}
	return h, s, v
}
