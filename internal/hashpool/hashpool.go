// Package hashpool implements a bucketed, goroutine-per-bucket pass
// that fills in missing fingerprints for a batch of FileRecords,
// consulting and populating a shared Cache. Each worker owns a static
// range of the input slice and recovers from panics in its own
// records rather than taking down the whole pass.
package hashpool

import (
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"

	"duplicate-image-finder/internal/cache"
	"duplicate-image-finder/internal/fingerprint"
	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
)

// Run fills in aHash/pHash for every non-invalid record, splitting the
// work into max(1, N/(cores-1))-sized contiguous buckets, one goroutine
// per bucket, and waiting for all of them to finish.
func Run(records []*record.FileRecord, c *cache.Cache, logger *logx.Logger) {
	if len(records) == 0 {
		return
	}

	denom := runtime.NumCPU() - 1
	if denom < 1 {
		denom = 1
	}
	bucketSize := len(records) / denom
	if bucketSize < 1 {
		bucketSize = 1
	}

	var wg sync.WaitGroup
	for start := 0; start < len(records); start += bucketSize {
		end := start + bucketSize
		if end > len(records) {
			end = len(records)
		}
		bucket := records[start:end]
		wg.Add(1)
		go func(bucket []*record.FileRecord) {
			defer wg.Done()
			for _, r := range bucket {
				processOne(r, c, logger)
			}
		}(bucket)
	}
	wg.Wait()
}

func processOne(r *record.FileRecord, c *cache.Cache, logger *logx.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warnf("hashpool: recovered panic processing %s: %v", r.Path, rec)
			r.Invalid = true
			c.PutIsInvalidImage(r.Path, true)
		}
	}()

	if c.IsInvalidImage(r.Path) {
		r.Invalid = true
		return
	}

	var decoded image.Image

	if fp, ok := c.GetAverageHash(r.Path); ok {
		r.AHash = &fp
	} else {
		img, err := decodeImageFn(r.Path)
		if err != nil || img == nil {
			markInvalid(r, c, logger, err)
			return
		}
		decoded = img
		fp, err := fingerprint.ComputeAverageHash(img)
		if err != nil {
			markInvalid(r, c, logger, err)
			return
		}
		c.PutAverageHash(r.Path, fp)
		r.AHash = &fp
	}

	if fp, ok := c.GetPHash(r.Path); ok {
		r.PHash = &fp
		return
	}

	img := decoded
	if img == nil {
		var err error
		img, err = decodeImageFn(r.Path)
		if err != nil || img == nil {
			markInvalid(r, c, logger, err)
			return
		}
	}
	fp, err := fingerprint.ComputePerceptionHash(img)
	if err != nil {
		markInvalid(r, c, logger, err)
		return
	}
	c.PutPHash(r.Path, fp)
	r.PHash = &fp
}

func markInvalid(r *record.FileRecord, c *cache.Cache, logger *logx.Logger, cause error) {
	r.Invalid = true
	c.PutIsInvalidImage(r.Path, true)
	if cause != nil {
		logger.Warnf("hashpool: %s: %v", r.Path, cause)
	} else {
		logger.Warnf("hashpool: %s: decoded image was empty", r.Path)
	}
}

// decodeImageFn is a package-level indirection so tests can count or
// stub out decode calls (e.g. to verify a cache hit skips decoding
// entirely) without touching real image files.
var decodeImageFn = decodeImage

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, nil
	}
	return img, nil
}
