// Package cluster implements the preprocessing steps and the greedy
// single-pass clustering algorithm that groups similar images
// together under a combined perceptual-hash distance threshold.
package cluster

import (
	"sort"

	"duplicate-image-finder/internal/enumerate"
	"duplicate-image-finder/internal/fingerprint"
	"duplicate-image-finder/internal/record"
)

// Threshold is the fixed, non-configurable combined aHash/pHash
// distance under which two files are considered similar enough to
// share a cluster.
const Threshold = 3.0

// Cluster groups FileRecords deemed mutually similar under Threshold.
type Cluster struct {
	Members     []*record.FileRecord
	MaxDistance float64
}

// RemoveIdenticalInode retains exactly one record per (device, inode)
// group: the rank-minimal one under (cmdlineIndex, depth, identity).
// Input order is not otherwise preserved.
func RemoveIdenticalInode(records []*record.FileRecord) []*record.FileRecord {
	sorted := append([]*record.FileRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Device != sorted[j].Device {
			return sorted[i].Device < sorted[j].Device
		}
		return sorted[i].Inode < sorted[j].Inode
	})

	var kept []*record.FileRecord
	for i := 0; i < len(sorted); {
		j := i
		best := sorted[i]
		for j < len(sorted) && sorted[j].Device == best.Device && sorted[j].Inode == best.Inode {
			if record.Less(sorted[j], best) {
				best = sorted[j]
			}
			j++
		}
		kept = append(kept, best)
		i = j
	}
	return kept
}

// RemoveNonImages drops every record whose path does not end in
// ".jpg", ".jpeg", or ".png" (case-sensitive).
func RemoveNonImages(records []*record.FileRecord) []*record.FileRecord {
	var kept []*record.FileRecord
	for _, r := range records {
		if enumerate.IsImagePath(r.Path) {
			kept = append(kept, r)
		}
	}
	return kept
}

// RemoveInvalid drops every record the HashWorkerPool flagged invalid.
func RemoveInvalid(records []*record.FileRecord) []*record.FileRecord {
	var kept []*record.FileRecord
	for _, r := range records {
		if !r.Invalid {
			kept = append(kept, r)
		}
	}
	return kept
}

// Distance is d(A, B) = max(distance(aHashA, aHashB), distance(pHashA, pHashB)).
// Both records must already have both fingerprints populated.
func Distance(a, b *record.FileRecord) (float64, error) {
	da, err := fingerprint.Distance(*a.AHash, *b.AHash)
	if err != nil {
		return 0, err
	}
	dp, err := fingerprint.Distance(*a.PHash, *b.PHash)
	if err != nil {
		return 0, err
	}
	if da > dp {
		return da, nil
	}
	return dp, nil
}

// Build runs the single-pass greedy clustering algorithm: each record
// is offered to existing clusters in insertion order and joins the
// first one whose maximum distance to it is <= Threshold; otherwise it
// starts a new singleton cluster. This is deliberately order-dependent
// and never re-examines a decision once made.
func Build(records []*record.FileRecord) ([]*Cluster, error) {
	var clusters []*Cluster
	for _, r := range records {
		placed := false
		for _, c := range clusters {
			maxDist := 0.0
			for _, m := range c.Members {
				d, err := Distance(r, m)
				if err != nil {
					return nil, err
				}
				if d > maxDist {
					maxDist = d
				}
			}
			if maxDist <= Threshold {
				c.Members = append(c.Members, r)
				c.MaxDistance = maxDist
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &Cluster{Members: []*record.FileRecord{r}, MaxDistance: 0})
		}
	}
	return clusters, nil
}

// SortClusters orders clusters by (size descending, maxDistance ascending).
func SortClusters(clusters []*Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		if len(clusters[i].Members) != len(clusters[j].Members) {
			return len(clusters[i].Members) > len(clusters[j].Members)
		}
		return clusters[i].MaxDistance < clusters[j].MaxDistance
	})
}

// SortedBySizeDesc returns a copy of the cluster's members sorted by
// file size, largest first.
func (c *Cluster) SortedBySizeDesc() []*record.FileRecord {
	sorted := append([]*record.FileRecord(nil), c.Members...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Size > sorted[j].Size })
	return sorted
}

// TotalSize returns the sum of every member's file size.
func (c *Cluster) TotalSize() int64 {
	var total int64
	for _, m := range c.Members {
		total += m.Size
	}
	return total
}

// ReclaimableSize returns the bytes that could be freed by keeping
// only the largest member of the cluster.
func (c *Cluster) ReclaimableSize() int64 {
	var total, biggest int64
	for _, m := range c.Members {
		total += m.Size
		if m.Size > biggest {
			biggest = m.Size
		}
	}
	return total - biggest
}
