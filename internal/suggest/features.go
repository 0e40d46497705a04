package suggest

import "image"

// histogramCells is 11^3: each of R, G, B is quantised into 11 buckets
// (0..10), producing a lexicographically ordered feature vector.
const histogramCells = 11 * 11 * 11

// quantise maps an 8-bit channel value into [0,10] via floor(v*100/2550).
func quantise(v uint8) int {
	return int(v) * 100 / 2550
}

// cellIndex packs (r, g, b) quantised buckets into the lexicographic
// index used by Featurize's output vector.
func cellIndex(r, g, b int) int {
	return r*11*11 + g*11 + b
}

// Featurize computes the 1,331-length colour-histogram feature vector
// described for the Suggester: every pixel of the decoded image is
// sampled (deliberately, unlike a legacy variant that repeatedly
// sampled pixel (0,0)), its RGB channels quantised into an 11x11x11
// grid, and the per-cell pixel counts emitted in lexicographic order.
func Featurize(img image.Image) []float64 {
	counts := make(map[int]float64)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			idx := cellIndex(quantise(uint8(r>>8)), quantise(uint8(g>>8)), quantise(uint8(b>>8)))
			counts[idx]++
		}
	}

	vec := make([]float64, histogramCells)
	for idx, count := range counts {
		vec[idx] = count
	}
	return vec
}
