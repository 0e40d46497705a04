// Package report renders the pipeline's results into a fixed on-disk
// text format, plus a human-readable summary line for the logger.
package report

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"duplicate-image-finder/internal/cluster"
	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
	"duplicate-image-finder/internal/suggest"
)

// Write renders clusters (already sorted by cluster.SortClusters) and,
// if suggestion is non-nil, the "### Sorting ###" block, to path. A
// write failure is logged and reported through the error return; it
// never terminates the caller.
func Write(path string, clusters []*cluster.Cluster, suggestion *suggest.Result, logger *logx.Logger) error {
	var b strings.Builder
	writeClusters(&b, clusters)
	if suggestion != nil {
		writeSuggestion(&b, suggestion)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		logger.Errorf("report: could not write %s: %v", path, err)
		return fmt.Errorf("report: write %s: %w", path, err)
	}

	logSummary(clusters, logger)
	return nil
}

// writeClusters emits one "# Section (size:N, distance:D)" block per
// non-singleton cluster, members sorted by file size descending.
func writeClusters(b *strings.Builder, clusters []*cluster.Cluster) {
	for _, c := range clusters {
		if len(c.Members) < 2 {
			continue
		}
		fmt.Fprintf(b, "# Section (size:%d, distance:%s)\n", len(c.Members), formatDistance(c.MaxDistance))
		for i, m := range c.SortedBySizeDesc() {
			fmt.Fprintf(b, "%d:%d %s\n", i, m.Size, m.Path)
		}
	}
}

// writeSuggestion emits the classifier-label listing followed by one
// score block per candidate the Suggester produced a prediction for.
func writeSuggestion(b *strings.Builder, result *suggest.Result) {
	b.WriteString("\n\n### Sorting ###\n\n")
	b.WriteString("Clusters:\n")
	for i, key := range result.ClusterKeys {
		fmt.Fprintf(b, "%d: %s\n", i, key)
	}

	for _, cand := range orderedCandidates(result) {
		b.WriteString("\n")
		b.WriteString(cand.Path)
		b.WriteString("\n")
		for i, score := range result.Scores[cand] {
			fmt.Fprintf(b, "%d: %s\n", i, formatScore(score))
		}
	}
}

// orderedCandidates returns the scored candidates sorted by path, so
// the report is stable across runs given the same input set (Result's
// map has no inherent order).
func orderedCandidates(result *suggest.Result) []*record.FileRecord {
	candidates := make([]*record.FileRecord, 0, len(result.Scores))
	for cand := range result.Scores {
		candidates = append(candidates, cand)
	}
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Path < candidates[j-1].Path; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	return candidates
}

func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'g', -1, 64)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// logSummary emits the one-line human-readable summary the report's
// on-disk format never carries: the number of clusters with two or
// more members and the bytes reclaimable if each of them kept only its
// largest member.
func logSummary(clusters []*cluster.Cluster, logger *logx.Logger) {
	var reclaimable int64
	var nonSingleton int
	for _, c := range clusters {
		if len(c.Members) < 2 {
			continue
		}
		nonSingleton++
		reclaimable += c.ReclaimableSize()
	}
	logger.Summaryf("report: %s reclaimable across %d clusters", reclaimable, nonSingleton)
}
