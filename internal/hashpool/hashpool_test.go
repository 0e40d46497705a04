package hashpool

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"duplicate-image-finder/internal/cache"
	"duplicate-image-finder/internal/fingerprint"
	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
)

func testLogger() *logx.Logger { return logx.NewWithWriter(os.Stderr) }

func solidImage(size int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func withStubDecoder(t *testing.T, fn func(path string) (image.Image, error)) *int32 {
	t.Helper()
	var calls int32
	orig := decodeImageFn
	decodeImageFn = func(path string) (image.Image, error) {
		atomic.AddInt32(&calls, 1)
		return fn(path)
	}
	t.Cleanup(func() { decodeImageFn = orig })
	return &calls
}

func TestRunFillsBothHashesForNewRecord(t *testing.T) {
	img := solidImage(16, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	withStubDecoder(t, func(string) (image.Image, error) { return img, nil })

	c := cache.New()
	r := &record.FileRecord{Path: "/fake/a.jpg"}
	Run([]*record.FileRecord{r}, c, testLogger())

	if r.Invalid {
		t.Fatal("record should not be invalid")
	}
	if r.AHash == nil || r.PHash == nil {
		t.Fatal("expected both fingerprints to be populated")
	}
	if _, ok := c.GetAverageHash(r.Path); !ok {
		t.Fatal("expected aHash to be cached")
	}
	if _, ok := c.GetPHash(r.Path); !ok {
		t.Fatal("expected pHash to be cached")
	}
}

func TestRunDecodesOnceForTwoHashes(t *testing.T) {
	img := solidImage(16, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	calls := withStubDecoder(t, func(string) (image.Image, error) { return img, nil })

	c := cache.New()
	r := &record.FileRecord{Path: "/fake/once.jpg"}
	Run([]*record.FileRecord{r}, c, testLogger())

	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected exactly 1 decode call for a fresh record, got %d", got)
	}
}

func TestRunSkipsDecodeOnFullCacheHit(t *testing.T) {
	calls := withStubDecoder(t, func(string) (image.Image, error) {
		t.Fatal("decodeImageFn should not be called when both hashes are cached")
		return nil, nil
	})

	img := solidImage(16, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	aFP, err := fingerprint.ComputeAverageHash(img)
	if err != nil {
		t.Fatalf("ComputeAverageHash: %v", err)
	}
	pFP, err := fingerprint.ComputePerceptionHash(img)
	if err != nil {
		t.Fatalf("ComputePerceptionHash: %v", err)
	}

	c := cache.New()
	c.PutAverageHash("/fake/cached.jpg", aFP)
	c.PutPHash("/fake/cached.jpg", pFP)

	r := &record.FileRecord{Path: "/fake/cached.jpg"}
	Run([]*record.FileRecord{r}, c, testLogger())

	if r.Invalid {
		t.Fatal("record should not be invalid")
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected 0 decode calls, got %d", *calls)
	}
}

func TestRunMarksInvalidOnDecodeFailure(t *testing.T) {
	withStubDecoder(t, func(string) (image.Image, error) { return nil, errors.New("boom") })

	c := cache.New()
	r := &record.FileRecord{Path: "/fake/broken.png"}
	Run([]*record.FileRecord{r}, c, testLogger())

	if !r.Invalid {
		t.Fatal("expected record to be marked invalid")
	}
	if !c.IsInvalidImage(r.Path) {
		t.Fatal("expected cache to persist isInvalidImage")
	}
}

func TestRunSkipsAlreadyInvalidCacheEntries(t *testing.T) {
	calls := withStubDecoder(t, func(string) (image.Image, error) {
		t.Fatal("decodeImageFn should not be called for an already-invalid cached path")
		return nil, nil
	})

	c := cache.New()
	c.PutIsInvalidImage("/fake/known-bad.jpg", true)

	r := &record.FileRecord{Path: "/fake/known-bad.jpg"}
	Run([]*record.FileRecord{r}, c, testLogger())

	if !r.Invalid {
		t.Fatal("expected record to be marked invalid from cache")
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected 0 decode calls, got %d", *calls)
	}
}

func TestRunProcessesManyRecordsConcurrentlyWithoutRace(t *testing.T) {
	img := solidImage(8, color.RGBA{R: 5, G: 5, B: 5, A: 255})
	withStubDecoder(t, func(string) (image.Image, error) { return img, nil })

	c := cache.New()
	var records []*record.FileRecord
	for i := 0; i < 200; i++ {
		records = append(records, &record.FileRecord{Path: filepath.Join("/fake", string(rune('a'+i%26)), "img.jpg")})
	}
	Run(records, c, testLogger())

	for _, r := range records {
		if r.AHash == nil || r.PHash == nil {
			t.Fatalf("record %s missing fingerprints", r.Path)
		}
	}
}
