// Package enumerate implements the recursive directory walk and the
// enumeration step that turns it into ranked FileRecords. The walk
// itself is built on afero.Fs so it can be driven against an
// in-memory filesystem in tests without touching disk.
package enumerate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"duplicate-image-finder/internal/logx"
	"duplicate-image-finder/internal/record"
)

// WalkFunc is the directory-walk primitive's contract: it is invoked
// once per discovered entry (including the root itself) with the
// entry's parent directory, its own leaf name, and its depth relative
// to the root.
type WalkFunc func(directoryPath, leafName string, depth int)

// composePath joins a directory and leaf name; an empty directory
// component means the leaf name is itself the full path.
func composePath(directoryPath, leafName string) string {
	if directoryPath == "" {
		return leafName
	}
	return directoryPath + "/" + leafName
}

// Walk performs a callback-driven recursive walk, following symlinks
// only when followSymlinks is set, and guarding against symlink
// cycles with a visited-realpath set.
func Walk(fsys afero.Fs, root string, followSymlinks bool, fn WalkFunc) error {
	return walkEntry(fsys, "", root, 0, followSymlinks, fn, make(map[string]struct{}))
}

func walkEntry(fsys afero.Fs, directoryPath, leafName string, depth int, followSymlinks bool, fn WalkFunc, visited map[string]struct{}) error {
	fn(directoryPath, leafName, depth)

	full := composePath(directoryPath, leafName)

	// Check via Lstat before any Stat call: Stat follows symlinks, so
	// checking IsDir() on its result would descend into a directory
	// symlink even when followSymlinks is false.
	if isSymlink(fsys, full) {
		if !followSymlinks {
			return nil
		}
		resolved, err := resolveSymlink(fsys, full)
		if err != nil || resolved == "" {
			return nil
		}
		if _, seen := visited[resolved]; seen {
			return nil
		}
		visited[resolved] = struct{}{}
		target, err := fsys.Stat(resolved)
		if err == nil && target.IsDir() {
			return walkChildren(fsys, full, depth, followSymlinks, fn, visited)
		}
		return nil
	}

	info, err := fsys.Stat(full)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return walkChildren(fsys, full, depth, followSymlinks, fn, visited)
	}
	return nil
}

func walkChildren(fsys afero.Fs, dir string, parentDepth int, followSymlinks bool, fn WalkFunc, visited map[string]struct{}) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := walkEntry(fsys, dir, e.Name(), parentDepth+1, followSymlinks, fn, visited); err != nil {
			return err
		}
	}
	return nil
}

// isSymlink and resolveSymlink degrade gracefully on filesystems (such
// as afero's in-memory one) that don't support symlinks at all: they
// simply report "not a symlink".
func isSymlink(fsys afero.Fs, path string) bool {
	lr, ok := fsys.(afero.Lstater)
	if !ok {
		return false
	}
	info, isLstat, err := lr.LstatIfPossible(path)
	if err != nil || info == nil || !isLstat {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

func resolveSymlink(fsys afero.Fs, path string) (string, error) {
	sl, ok := fsys.(afero.Symlinker)
	if !ok {
		return "", nil
	}
	target, err := sl.ReadlinkIfPossible(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

// Options configures the Enumerator's size filtering and ordering
// behaviour.
type Options struct {
	MinSize        int64
	MaxSize        int64 // 0 = unbounded
	FollowSymlinks bool
	Deterministic  bool
}

// EnumerateRoots walks every root in order, stats each entry through
// fsys, and appends one FileRecord per regular file that passes size
// filtering. When Deterministic is
// set, each root's newly appended tail is sorted by (depth, path)
// before moving to the next root. Identities are assigned once,
// across all roots, after every walk has completed.
func EnumerateRoots(fsys afero.Fs, roots []string, opts Options, logger *logx.Logger) []*record.FileRecord {
	var candidates []*record.FileRecord

	for cmdlineIndex, root := range roots {
		start := len(candidates)
		err := Walk(fsys, root, opts.FollowSymlinks, func(dirPath, leaf string, depth int) {
			full := composePath(dirPath, leaf)
			info, err := fsys.Stat(full)
			if err != nil {
				logger.Warnf("enumerate: stat %s: %v", full, err)
				return
			}
			if !info.Mode().IsRegular() {
				return
			}
			fr := &record.FileRecord{Path: full, Size: info.Size(), CmdlineIndex: cmdlineIndex, Depth: depth}
			if st, ok := info.Sys().(*syscall.Stat_t); ok {
				fr.Device = uint64(st.Dev)
				fr.Inode = st.Ino
			}
			if fr.Size < opts.MinSize {
				return
			}
			if opts.MaxSize != 0 && fr.Size >= opts.MaxSize {
				return
			}
			candidates = append(candidates, fr)
		})
		if err != nil {
			logger.Warnf("enumerate: walk %s: %v", root, err)
		}

		if opts.Deterministic {
			tail := candidates[start:]
			sort.Slice(tail, func(i, j int) bool {
				if tail[i].Depth != tail[j].Depth {
					return tail[i].Depth < tail[j].Depth
				}
				return tail[i].Path < tail[j].Path
			})
		}
	}

	record.AssignIdentities(candidates)
	return candidates
}

// IsImagePath reports whether path has one of the recognised image
// suffixes; shared by the Enumerator's reference-tree filtering and
// the Clusterer's non-image removal step.
func IsImagePath(path string) bool {
	return strings.HasSuffix(path, ".jpg") ||
		strings.HasSuffix(path, ".jpeg") ||
		strings.HasSuffix(path, ".png")
}
