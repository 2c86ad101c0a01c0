package model

import "math"

// Descriptor is a numeric feature vector summarizing one image. Descriptors
// written by different extractor configurations may differ in length.
type Descriptor []float64

// Len returns the number of components.
func (d Descriptor) Len() int { return len(d) }

// Truncate returns the first n components (or d itself when shorter).
func (d Descriptor) Truncate(n int) Descriptor {
	if n < 0 {
		n = 0
	}
	if n >= len(d) {
		return d
	}
	return d[:n]
}

// Norm returns the Euclidean length.
func (d Descriptor) Norm() float64 {
	var sum float64
	for _, v := range d {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy, or nil for an empty or zero vector.
func (d Descriptor) Normalized() Descriptor {
	n := d.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	out := make(Descriptor, len(d))
	for i, v := range d {
		out[i] = v / n
	}
	return out
}

// Scale returns a copy multiplied by f.
func (d Descriptor) Scale(f float64) Descriptor {
	out := make(Descriptor, len(d))
	for i, v := range d {
		out[i] = v * f
	}
	return out
}

// Valid reports whether d is non-empty and all components are finite.
func (d Descriptor) Valid() bool {
	if len(d) == 0 {
		return false
	}
	for _, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Concat joins descriptors end to end.
func Concat(parts ...Descriptor) Descriptor {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make(Descriptor, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Mean averages descriptors component-wise over their common prefix.
func Mean(ds []Descriptor) Descriptor {
	if len(ds) == 0 {
		return nil
	}
	n := len(ds[0])
	for _, d := range ds[1:] {
		n = min(n, len(d))
	}
	out := make(Descriptor, n)
	for _, d := range ds {
		for i := range n {
			out[i] += d[i]
		}
	}
	for i := range out {
		out[i] /= float64(len(ds))
	}
	return out
}
