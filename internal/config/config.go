// Package config parses the CLI's flags into an Options struct through
// an explicit FlagSet, so it can be parsed repeatedly and
// independently in tests.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// ErrConfig is wrapped around every validation failure Parse returns.
var ErrConfig = errors.New("config: invalid arguments")

// Version is reported by -v/--version.
const Version = "imgfind 1.0.0"

// Options holds every CLI-configurable knob of the pipeline.
type Options struct {
	MinSize          int64
	MaxSize          int64
	FollowSymlinks   bool
	RemoveIdentInode bool
	Deterministic    bool
	OutputName       string
	CacheName        string
	ClusterPath      string
	HistoryFile      string
	Roots            []string
}

// ErrHelpRequested and ErrVersionRequested are sentinel errors Parse returns
// so the caller can short-circuit before printing usage/version text
// and exit 0, distinct from a genuine ConfigError.
var (
	ErrHelpRequested    = errors.New("config: help requested")
	ErrVersionRequested = errors.New("config: version requested")
)

// Parse builds Options from args (excluding the program name),
// applying the -ignoreempty/-minsize interaction and validating size
// bounds. On any validation failure it returns an error wrapping
// ErrConfig. Usage text is written to errOut for -h/-help, for a
// missing ROOT, and (through the FlagSet) for a flag syntax error; the
// other validation failures are reported only through the returned
// error.
func Parse(args []string, errOut io.Writer) (*Options, error) {
	fs := flag.NewFlagSet("imgfind", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { Usage(errOut) }

	ignoreEmpty := fs.Bool("ignoreempty", true, "true => minimum size 1 byte; false => 0")
	minSize := fs.Int64("minsize", -1, "reject files smaller than N bytes (overrides -ignoreempty)")
	maxSize := fs.Int64("maxsize", 0, "reject files of size >= N (0 = unbounded)")
	followSymlinks := fs.Bool("followsymlinks", false, "follow symlinks during enumeration")
	removeIdentInode := fs.Bool("removeidentinode", true, "collapse identical-inode duplicates before clustering")
	deterministic := fs.Bool("deterministic", false, "sort each root's newly discovered files by (depth, path)")
	outputName := fs.String("outputname", "rdfind_results.txt", "path to write the results file")
	cacheName := fs.String("cachename", "", "path to the on-disk fingerprint cache (empty = disabled)")
	clusterPath := fs.String("clusterpath", "", "reference tree for the Suggester (empty = disabled)")
	historyFile := fs.String("historyfile", "", "path to the ambient sqlite run ledger (empty = disabled)")
	help := fs.Bool("help", false, "show usage")
	version := fs.Bool("version", false, "show version")
	fs.BoolVar(help, "h", false, "show usage")
	fs.BoolVar(version, "v", false, "show version")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if *help {
		Usage(errOut)
		return nil, ErrHelpRequested
	}
	if *version {
		fmt.Fprintln(errOut, Version)
		return nil, ErrVersionRequested
	}

	roots := fs.Args()
	if len(roots) == 0 {
		Usage(errOut)
		return nil, fmt.Errorf("%w: at least one ROOT is required", ErrConfig)
	}

	minSizeSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "minsize" {
			minSizeSet = true
		}
	})
	if minSizeSet && *minSize < 0 {
		return nil, fmt.Errorf("%w: -minsize must be non-negative", ErrConfig)
	}

	effectiveMinSize := *minSize
	if !minSizeSet {
		if *ignoreEmpty {
			effectiveMinSize = 1
		} else {
			effectiveMinSize = 0
		}
	}

	if *maxSize < 0 {
		return nil, fmt.Errorf("%w: -maxsize must be non-negative", ErrConfig)
	}
	if *maxSize != 0 && effectiveMinSize >= *maxSize {
		return nil, fmt.Errorf("%w: -minsize must be less than -maxsize", ErrConfig)
	}

	return &Options{
		MinSize:          effectiveMinSize,
		MaxSize:          *maxSize,
		FollowSymlinks:   *followSymlinks,
		RemoveIdentInode: *removeIdentInode,
		Deterministic:    *deterministic,
		OutputName:       *outputName,
		CacheName:        *cacheName,
		ClusterPath:      *clusterPath,
		HistoryFile:      *historyFile,
		Roots:            roots,
	}, nil
}

// Usage writes the CLI's help text to w.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: imgfind [options] ROOT [ROOT...]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  -ignoreempty BOOL       true => minimum size 1 byte [true]")
	fmt.Fprintln(w, "  -minsize N              reject files smaller than N bytes")
	fmt.Fprintln(w, "  -maxsize N              reject files of size >= N [0 = unbounded]")
	fmt.Fprintln(w, "  -followsymlinks BOOL    follow symlinks [false]")
	fmt.Fprintln(w, "  -removeidentinode BOOL  collapse identical-inode duplicates [true]")
	fmt.Fprintln(w, "  -deterministic BOOL     stable ordering within each root [false]")
	fmt.Fprintln(w, "  -outputname PATH        results file [rdfind_results.txt]")
	fmt.Fprintln(w, "  -cachename PATH         fingerprint cache file [disabled]")
	fmt.Fprintln(w, "  -clusterpath PATH       reference tree for suggestions [disabled]")
	fmt.Fprintln(w, "  -historyfile PATH       sqlite run ledger [disabled]")
	fmt.Fprintln(w, "  -h, -help               show this text")
	fmt.Fprintln(w, "  -v, -version            show version")
}
