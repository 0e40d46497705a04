// Package cache implements a persistent JSON-backed fingerprint cache
// shared read-write across all HashWorkerPool goroutines.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"duplicate-image-finder/internal/fingerprint"
	"duplicate-image-finder/internal/logx"
)

// Entry mirrors one path's cached state: computed fingerprints and
// whether the image was found to be undecodable.
type Entry struct {
	AHash   *fingerprint.Fingerprint
	PHash   *fingerprint.Fingerprint
	Invalid bool
}

// Cache is the persistent path -> Entry map. All mutating operations
// are safe for concurrent use; a single mutex is sufficient because
// fingerprint computation, not lock contention, dominates wall time.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry
}

type wireEntry struct {
	AHash          []uint8 `json:"aHash,omitempty"`
	PHash          []uint8 `json:"pHash,omitempty"`
	IsInvalidImage bool    `json:"isInvalidImage,omitempty"`
}

// New returns an empty, unbacked cache (Save is a no-op until a path
// is set via Load).
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Load reads path as a JSON cache file. An empty path yields an empty
// cache with persistence disabled. A missing or unreadable file,
// unparseable content, or malformed individual entries are all
// non-fatal: they are logged and the cache falls back to whatever
// could be parsed.
func Load(path string, logger *logx.Logger) *Cache {
	c := New()
	c.path = path
	if path == "" {
		return c
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("cache: could not read %s: %v", path, err)
		return c
	}

	var raw map[string]wireEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			logger.Warnf("cache: could not parse %s: %v", path, err)
			return c
		}
		logger.Warnf("cache: %s: skipping malformed field: %v", path, err)
	}

	for path, w := range raw {
		entry := &Entry{Invalid: w.IsInvalidImage}
		if len(w.AHash) > 0 {
			fp, err := fingerprint.FromBytes(fingerprint.AHash, w.AHash)
			if err != nil {
				logger.Warnf("cache: %s: bad aHash: %v", path, err)
			} else {
				entry.AHash = &fp
			}
		}
		if len(w.PHash) > 0 {
			fp, err := fingerprint.FromBytes(fingerprint.PHash, w.PHash)
			if err != nil {
				logger.Warnf("cache: %s: bad pHash: %v", path, err)
			} else {
				entry.PHash = &fp
			}
		}
		c.entries[path] = entry
	}
	logger.Infof("cache: loaded %d records from %s", len(c.entries), path)
	return c
}

func (c *Cache) entryLocked(path string) *Entry {
	e, ok := c.entries[path]
	if !ok {
		e = &Entry{}
		c.entries[path] = e
	}
	return e
}

// GetAverageHash returns the cached aHash for path, if any.
func (c *Cache) GetAverageHash(path string) (fingerprint.Fingerprint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.AHash == nil {
		return fingerprint.Fingerprint{}, false
	}
	return *e.AHash, true
}

// GetPHash returns the cached pHash for path, if any.
func (c *Cache) GetPHash(path string) (fingerprint.Fingerprint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.PHash == nil {
		return fingerprint.Fingerprint{}, false
	}
	return *e.PHash, true
}

// IsInvalidImage reports whether path was previously marked invalid.
func (c *Cache) IsInvalidImage(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return ok && e.Invalid
}

// PutAverageHash stores fp as path's aHash, creating the entry if absent.
func (c *Cache) PutAverageHash(path string, fp fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(path).AHash = &fp
}

// PutPHash stores fp as path's pHash, creating the entry if absent.
func (c *Cache) PutPHash(path string, fp fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(path).PHash = &fp
}

// PutIsInvalidImage records whether path failed to decode.
func (c *Cache) PutIsInvalidImage(path string, invalid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(path).Invalid = invalid
}

// Len returns the number of entries currently held, for logging.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save serialises the cache back to its backing file, atomically via
// a temp-file-plus-rename, omitting entries whose every field is
// absent/false. It is a no-op if no path was configured. A failure to
// write is returned to the caller for logging; Save never panics.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	out := make(map[string]wireEntry, len(c.entries))
	for path, e := range c.entries {
		var w wireEntry
		if e.AHash != nil {
			w.AHash = e.AHash.Bytes()
		}
		if e.PHash != nil {
			w.PHash = e.PHash.Bytes()
		}
		w.IsInvalidImage = e.Invalid
		if len(w.AHash) == 0 && len(w.PHash) == 0 && !w.IsInvalidImage {
			continue
		}
		out[path] = w
	}
	c.mu.Unlock()

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("cache: rename %s -> %s: %w", tmp, c.path, err)
	}
	return nil
}
