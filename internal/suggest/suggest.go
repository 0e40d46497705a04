// Package suggest implements an optional destination-path suggester:
// it builds per-directory reference clusters from a configured
// reference tree, trains a small MLP classifier
// (github.com/patrikeh/go-deep) on colour-histogram features of those
// clusters, and scores each duplicate-cluster candidate against it.
package suggest

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"duplicate-image-finder/internal/cache"
	"duplicate-image-finder/internal/hashpool"
	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
)

// PathCluster is a reference cluster keyed by the directory that
// produced it, built in first-seen order.
type PathCluster struct {
	Key     string
	Members []*record.FileRecord
}

// BuildPathClusters groups already-enumerated, image-filtered
// reference records by directory path, skipping any file whose
// directory starts with a configured exclude prefix. Clusters are
// created on first occurrence and returned in that first-seen order so
// their index can serve as a stable classifier label.
func BuildPathClusters(records []*record.FileRecord, excludePrefixes []string) []*PathCluster {
	byKey := make(map[string]*PathCluster)
	var order []*PathCluster

	for _, r := range records {
		dir := dirOf(r.Path)
		if hasExcludedPrefix(dir, excludePrefixes) {
			continue
		}
		pc, ok := byKey[dir]
		if !ok {
			pc = &PathCluster{Key: dir}
			byKey[dir] = pc
			order = append(order, pc)
		}
		pc.Members = append(pc.Members, r)
	}
	return order
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func hasExcludedPrefix(dir string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(dir, p) {
			return true
		}
	}
	return false
}

// HashReferenceTree runs the same HashWorkerPool/Cache used by the
// candidate pipeline over every reference record, purely to detect and
// drop undecodable images; the resulting fingerprints are not
// otherwise consumed by the Suggester.
func HashReferenceTree(clusters []*PathCluster, c *cache.Cache, logger *logx.Logger) {
	var all []*record.FileRecord
	for _, pc := range clusters {
		all = append(all, pc.Members...)
	}
	hashpool.Run(all, c, logger)

	for _, pc := range clusters {
		kept := pc.Members[:0]
		for _, r := range pc.Members {
			if !r.Invalid {
				kept = append(kept, r)
			}
		}
		pc.Members = kept
	}
}

// Result holds everything the Reporter needs to render the
// "### Sorting ###" block: the PathCluster keys in classifier-label
// order and, for each candidate that produced a prediction, its
// per-dimension score vector.
type Result struct {
	ClusterKeys []string
	Scores      map[*record.FileRecord][]float64
}

// TrainAndPredict runs Suggester steps 2-5: featurise the reference
// images, build shuffled training rows, train the classifier, and
// score every successfully-decoded candidate record.
func TrainAndPredict(refClusters []*PathCluster, candidates []*record.FileRecord, logger *logx.Logger) (*Result, error) {
	if len(refClusters) == 0 {
		return nil, fmt.Errorf("suggest: no reference clusters to train against")
	}

	inputs, targets, err := buildTrainingData(refClusters)
	if err != nil {
		return nil, err
	}

	clf, err := trainClassifier(inputs, targets, len(refClusters), logger)
	if err != nil {
		return nil, err
	}

	result := &Result{Scores: make(map[*record.FileRecord][]float64)}
	for _, pc := range refClusters {
		result.ClusterKeys = append(result.ClusterKeys, pc.Key)
	}

	for _, cand := range candidates {
		if cand.Invalid {
			continue
		}
		img, err := decodeImageFn(cand.Path)
		if err != nil {
			logger.Warnf("suggest: could not decode candidate %s for scoring: %v", cand.Path, err)
			continue
		}
		result.Scores[cand] = clf.Predict(Featurize(img))
	}
	return result, nil
}

// trainingShuffleRand is seeded fixedly rather than from the runtime
// clock so that, for a fixed set of reference images, the training
// row order (and therefore the trained model) stays reproducible
// across runs.
var trainingShuffleRand = rand.New(rand.NewSource(1))

// buildTrainingData implements step 3: one row per non-invalid
// reference image, target vectors are -1 everywhere except +1 at the
// owning cluster's index, and rows are shuffled by a single joint
// permutation.
func buildTrainingData(refClusters []*PathCluster) ([][]float64, [][]float64, error) {
	k := len(refClusters)
	var inputs, targets [][]float64

	for i, pc := range refClusters {
		for _, r := range pc.Members {
			if r.Invalid {
				continue
			}
			img, err := decodeImageFn(r.Path)
			if err != nil {
				continue
			}
			target := make([]float64, k)
			for j := range target {
				target[j] = -1.0
			}
			target[i] = 1.0
			inputs = append(inputs, Featurize(img))
			targets = append(targets, target)
		}
	}
	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("suggest: no decodable reference images across %d clusters", k)
	}

	perm := trainingShuffleRand.Perm(len(inputs))
	shuffledInputs := make([][]float64, len(inputs))
	shuffledTargets := make([][]float64, len(targets))
	for newIdx, oldIdx := range perm {
		shuffledInputs[newIdx] = inputs[oldIdx]
		shuffledTargets[newIdx] = targets[oldIdx]
	}
	return shuffledInputs, shuffledTargets, nil
}

// decodeImageFn is a package-level indirection, mirroring hashpool's
// own seam, so tests can stub image decoding without touching disk.
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
	return img, nil
}
