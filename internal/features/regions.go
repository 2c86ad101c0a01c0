package features

import (
	"image"
	"math"

	"github.com/erazemk/vestique/internal/imaging"
)

const (
	maskSize           = 64
	borderWidth        = 2
	foregroundDistance = 0.16 // RGB distance in [0, sqrt(3)]
	minForeground      = 0.05
	minBandCoverage    = 0.10
)

// garmentRegions locates the foreground against a roughly uniform backdrop
// and splits it into upper and lower garment bands. Only bands with enough
// foreground are returned, in image coordinates. A nil result means the
// image should be treated as a single view.
func garmentRegions(img image.Image) []image.Rectangle {
	b := img.Bounds()
	if b.Dx() < maskSize/2 || b.Dy() < maskSize/2 {
		return nil
	}
	small := imaging.Resize(img, maskSize, maskSize)

	px := func(x, y int) (float64, float64, float64) {
		o := small.PixOffset(x, y)
		return float64(small.Pix[o]) / 255, float64(small.Pix[o+1]) / 255, float64(small.Pix[o+2]) / 255
	}

	// Background colour is the mean of the border ring.
	var bg [3]float64
	var ring float64
	for y := range maskSize {
		for x := range maskSize {
			if x >= borderWidth && x < maskSize-borderWidth && y >= borderWidth && y < maskSize-borderWidth {
				continue
			}
			r, g, bl := px(x, y)
			bg[0] += r
			bg[1] += g
			bg[2] += bl
			ring++
		}
	}
	for c := range bg {
		bg[c] /= ring
	}

	mask := make([]bool, maskSize*maskSize)
	minX, minY, maxX, maxY := maskSize, maskSize, -1, -1
	var fg int
	for y := range maskSize {
		for x := range maskSize {
			r, g, bl := px(x, y)
			d := math.Sqrt((r-bg[0])*(r-bg[0]) + (g-bg[1])*(g-bg[1]) + (bl-bg[2])*(bl-bg[2]))
			if d < foregroundDistance {
				continue
			}
			mask[y*maskSize+x] = true
			fg++
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if float64(fg) < minForeground*maskSize*maskSize || maxY-minY < maskSize/4 {
		return nil
	}

	mid := (minY + maxY + 1) / 2
	bands := [][2]int{{minY, mid}, {mid, maxY + 1}}
	var out []image.Rectangle
	for _, band := range bands {
		var count int
		for y := band[0]; y < band[1]; y++ {
			for x := minX; x <= maxX; x++ {
				if mask[y*maskSize+x] {
					count++
				}
			}
		}
		area := (band[1] - band[0]) * (maxX - minX + 1)
		if area == 0 || float64(count) < minBandCoverage*float64(area) {
			continue
		}
		out = append(out, scaleRect(image.Rect(minX, band[0], maxX+1, band[1]), b))
	}
	if len(out) < 2 {
		// One band is just the whole garment again.
		return nil
	}
	return out
}

// scaleRect maps a rectangle in mask coordinates onto bounds.
func scaleRect(r image.Rectangle, bounds image.Rectangle) image.Rectangle {
	sx := float64(bounds.Dx()) / maskSize
	sy := float64(bounds.Dy()) / maskSize
	return image.Rect(
		bounds.Min.X+int(float64(r.Min.X)*sx),
		bounds.Min.Y+int(float64(r.Min.Y)*sy),
		bounds.Min.X+int(math.Ceil(float64(r.Max.X)*sx)),
		bounds.Min.Y+int(math.Ceil(float64(r.Max.Y)*sy)),
	).Intersect(bounds)
}
