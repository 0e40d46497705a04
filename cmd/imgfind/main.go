// Command imgfind finds near-duplicate images across one or more
// directory trees, clusters them by perceptual hash similarity, and
// writes a text report: parse flags, wire up the internal packages,
// run, exit non-zero on failure.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"duplicate-image-finder/internal/cache"
	"duplicate-image-finder/internal/cluster"
	"duplicate-image-finder/internal/config"
	"duplicate-image-finder/internal/enumerate"
	"duplicate-image-finder/internal/hashpool"
	"duplicate-image-finder/internal/history"
	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
	"duplicate-image-finder/internal/report"
	"duplicate-image-finder/internal/suggest"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := config.Parse(args, os.Stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) || errors.Is(err, config.ErrVersionRequested) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := logx.New()
	fsys := afero.NewOsFs()
	fsCache := cache.Load(opts.CacheName, logger)

	var candidates []*record.FileRecord
	var refClusters []*suggest.PathCluster

	g := new(errgroup.Group)
	g.Go(func() error {
		candidates = buildCandidates(fsys, opts, fsCache, logger)
		return nil
	})
	if opts.ClusterPath != "" {
		g.Go(func() error {
			refClusters = buildReferenceClusters(fsys, opts, fsCache, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Errorf("pipeline: %v", err)
		return 1
	}

	clusters, err := cluster.Build(candidates)
	if err != nil {
		logger.Errorf("cluster: %v", err)
		return 1
	}
	cluster.SortClusters(clusters)

	var suggestion *suggest.Result
	if len(refClusters) > 0 {
		suggestion, err = suggest.TrainAndPredict(refClusters, candidates, logger)
		if err != nil {
			logger.Warnf("suggest: %v", err)
			suggestion = nil
		}
	}

	exitCode := 0
	if err := report.Write(opts.OutputName, clusters, suggestion, logger); err != nil {
		exitCode = 1
	}

	if err := fsCache.Save(); err != nil {
		logger.Warnf("cache: could not save %s: %v", opts.CacheName, err)
	}

	recordHistory(opts, logger, clusters)

	return exitCode
}

func buildCandidates(fsys afero.Fs, opts *config.Options, fsCache *cache.Cache, logger *logx.Logger) []*record.FileRecord {
	enumOpts := enumerate.Options{
		MinSize:        opts.MinSize,
		MaxSize:        opts.MaxSize,
		FollowSymlinks: opts.FollowSymlinks,
		Deterministic:  opts.Deterministic,
	}
	records := enumerate.EnumerateRoots(fsys, opts.Roots, enumOpts, logger)

	if opts.RemoveIdentInode {
		records = cluster.RemoveIdenticalInode(records)
	}
	records = cluster.RemoveNonImages(records)

	hashpool.Run(records, fsCache, logger)
	return cluster.RemoveInvalid(records)
}

func buildReferenceClusters(fsys afero.Fs, opts *config.Options, fsCache *cache.Cache, logger *logx.Logger) []*suggest.PathCluster {
	enumOpts := enumerate.Options{
		MinSize:        opts.MinSize,
		MaxSize:        opts.MaxSize,
		FollowSymlinks: opts.FollowSymlinks,
	}
	records := enumerate.EnumerateRoots(fsys, []string{opts.ClusterPath}, enumOpts, logger)
	records = cluster.RemoveNonImages(records)

	refClusters := suggest.BuildPathClusters(records, nil)
	suggest.HashReferenceTree(refClusters, fsCache, logger)
	return refClusters
}

func recordHistory(opts *config.Options, logger *logx.Logger, clusters []*cluster.Cluster) {
	store := history.OpenOrWarn(opts.HistoryFile, logger)
	if store == nil {
		return
	}
	defer store.Close()

	var reclaimable int64
	var nonSingleton int
	for _, c := range clusters {
		if len(c.Members) < 2 {
			continue
		}
		nonSingleton++
		reclaimable += c.ReclaimableSize()
	}

	runID := logger.RunID()
	if err := store.RecordRun(runID, opts.Roots, nonSingleton, reclaimable, time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warnf("history: %v", err)
	}
}
