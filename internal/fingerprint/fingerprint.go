// Package fingerprint wraps the perceptual-hash primitives from
// goimagehash behind a small, cache-friendly value type.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Kind distinguishes the two perceptual hash families the pipeline uses.
type Kind int

const (
	AHash Kind = iota
	PHash
)

func (k Kind) String() string {
	if k == AHash {
		return "aHash"
	}
	return "pHash"
}

// Fingerprint is a fixed-width byte vector representing one perceptual
// hash of an image. Two fingerprints of the same Kind can be compared
// with Distance; comparing across kinds is a programmer error.
type Fingerprint struct {
	Kind Kind
	hash uint64
}

// Bytes returns the 8-byte big-endian encoding used by the on-disk cache.
func (f Fingerprint) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, f.hash)
	return b
}

// FromBytes reconstructs a Fingerprint of the given kind from its wire
// encoding, as read back from the cache file.
func FromBytes(kind Kind, b []byte) (Fingerprint, error) {
	if len(b) != 8 {
		return Fingerprint{}, fmt.Errorf("fingerprint: want 8 bytes, got %d", len(b))
	}
	return Fingerprint{Kind: kind, hash: binary.BigEndian.Uint64(b)}, nil
}

func (k Kind) native() goimagehash.Kind {
	if k == AHash {
		return goimagehash.AHash
	}
	return goimagehash.PHash
}

func (f Fingerprint) native() *goimagehash.ImageHash {
	return goimagehash.NewImageHash(f.hash, f.Kind.native())
}

// Distance returns the Hamming-like distance between two fingerprints
// of the same kind, as reported by goimagehash. It is an opaque
// non-negative real as far as callers are concerned.
func Distance(a, b Fingerprint) (float64, error) {
	if a.Kind != b.Kind {
		return 0, fmt.Errorf("fingerprint: cannot compare %s with %s", a.Kind, b.Kind)
	}
	d, err := a.native().Distance(b.native())
	if err != nil {
		return 0, fmt.Errorf("fingerprint: distance: %w", err)
	}
	return float64(d), nil
}

// ComputeAverageHash computes the aHash of a decoded image.
func ComputeAverageHash(img image.Image) (Fingerprint, error) {
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: aHash: %w", err)
	}
	return Fingerprint{Kind: AHash, hash: h.GetHash()}, nil
}

// ComputePerceptionHash computes the pHash of a decoded image.
func ComputePerceptionHash(img image.Image) (Fingerprint, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: pHash: %w", err)
	}
	return Fingerprint{Kind: PHash, hash: h.GetHash()}, nil
}
