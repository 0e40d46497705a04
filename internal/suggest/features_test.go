package suggest

import (
	"image"
	"image/color"
	"testing"
)

func TestFeaturizeVectorLengthIsAlways1331(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 7))
	vec := Featurize(img)
	if len(vec) != histogramCells {
		t.Fatalf("Featurize length = %d, want %d", len(vec), histogramCells)
	}
}

func TestFeaturizeCountsEveryPixel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	red := color.RGBA{R: 255, G: 0, B: 0, A: 255}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, red)
		}
	}
	vec := Featurize(img)

	idx := cellIndex(quantise(255), quantise(0), quantise(0))
	if vec[idx] != 16 {
		t.Fatalf("expected all 16 pixels counted in one cell, got %v", vec[idx])
	}

	var total float64
	for _, v := range vec {
		total += v
	}
	if total != 16 {
		t.Fatalf("expected total pixel count 16, got %v", total)
	}
}

func TestQuantiseBucketsFullRange(t *testing.T) {
	if got := quantise(0); got != 0 {
		t.Fatalf("quantise(0) = %d, want 0", got)
	}
	if got := quantise(255); got != 10 {
		t.Fatalf("quantise(255) = %d, want 10", got)
	}
}
