package suggest

import (
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
)

var errDecodeFailed = errors.New("decode failed")

func testLogger() *logx.Logger { return logx.NewWithWriter(os.Stderr) }

func TestBuildPathClustersGroupsByDirectoryInFirstSeenOrder(t *testing.T) {
	records := []*record.FileRecord{
		{Path: "/ref/beach/a.jpg"},
		{Path: "/ref/city/b.jpg"},
		{Path: "/ref/beach/c.jpg"},
	}
	clusters := BuildPathClusters(records, nil)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 path clusters, got %d", len(clusters))
	}
	if clusters[0].Key != "/ref/beach" || len(clusters[0].Members) != 2 {
		t.Fatalf("unexpected first cluster: %+v", clusters[0])
	}
	if clusters[1].Key != "/ref/city" || len(clusters[1].Members) != 1 {
		t.Fatalf("unexpected second cluster: %+v", clusters[1])
	}
}

func TestBuildPathClustersRespectsExcludePrefixes(t *testing.T) {
	records := []*record.FileRecord{
		{Path: "/ref/beach/a.jpg"},
		{Path: "/ref/private/b.jpg"},
	}
	clusters := BuildPathClusters(records, []string{"/ref/private"})
	if len(clusters) != 1 || clusters[0].Key != "/ref/beach" {
		t.Fatalf("expected excluded directory to be dropped, got %+v", clusters)
	}
}

func TestBuildTrainingDataProducesOneHotTargets(t *testing.T) {
	orig := decodeImageFn
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	decodeImageFn = func(string) (image.Image, error) { return img, nil }
	t.Cleanup(func() { decodeImageFn = orig })

	clusters := []*PathCluster{
		{Key: "/ref/a", Members: []*record.FileRecord{{Path: "/ref/a/1.jpg"}}},
		{Key: "/ref/b", Members: []*record.FileRecord{{Path: "/ref/b/1.jpg"}, {Path: "/ref/b/2.jpg"}}},
	}

	inputs, targets, err := buildTrainingData(clusters)
	if err != nil {
		t.Fatalf("buildTrainingData: %v", err)
	}
	if len(inputs) != 3 || len(targets) != 3 {
		t.Fatalf("expected 3 training rows, got %d inputs / %d targets", len(inputs), len(targets))
	}
	for _, row := range targets {
		if len(row) != 2 {
			t.Fatalf("expected target width 2, got %d", len(row))
		}
		var positives int
		for _, v := range row {
			if v == 1.0 {
				positives++
			} else if v != -1.0 {
				t.Fatalf("unexpected target value %v", v)
			}
		}
		if positives != 1 {
			t.Fatalf("expected exactly one +1.0 in target row, got %d", positives)
		}
	}
	for _, row := range inputs {
		if len(row) != histogramCells {
			t.Fatalf("expected input width %d, got %d", histogramCells, len(row))
		}
	}
}

func TestBuildTrainingDataSkipsInvalidReferenceImages(t *testing.T) {
	orig := decodeImageFn
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	decodeImageFn = func(string) (image.Image, error) { return img, nil }
	t.Cleanup(func() { decodeImageFn = orig })

	clusters := []*PathCluster{
		{Key: "/ref/a", Members: []*record.FileRecord{
			{Path: "/ref/a/1.jpg", Invalid: true},
			{Path: "/ref/a/2.jpg"},
		}},
	}
	inputs, _, err := buildTrainingData(clusters)
	if err != nil {
		t.Fatalf("buildTrainingData: %v", err)
	}
	if len(inputs) != 1 {
		t.Fatalf("expected invalid reference image to be skipped, got %d rows", len(inputs))
	}
}

func TestBuildTrainingDataErrorsWithNoDecodableReferences(t *testing.T) {
	orig := decodeImageFn
	decodeImageFn = func(string) (image.Image, error) { return nil, errDecodeFailed }
	t.Cleanup(func() { decodeImageFn = orig })

	clusters := []*PathCluster{{Key: "/ref/a", Members: []*record.FileRecord{{Path: "/ref/a/1.jpg"}}}}
	if _, _, err := buildTrainingData(clusters); err == nil {
		t.Fatal("expected error when no reference image decodes")
	}
}
