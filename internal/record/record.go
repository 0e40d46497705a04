// Package record defines FileRecord, the in-memory unit the rest of
// the pipeline operates on, along with the (cmdlineIndex, depth,
// identity) ranking order used to break ties throughout.
package record

import (
	"errors"
	"os"
	"syscall"

	"duplicate-image-finder/internal/fingerprint"
)

// FileRecord is one candidate file discovered by the Enumerator.
//
// It is constructed once and then owned by exactly one HashWorkerPool
// goroutine for the duration of hash computation; every other reader
// treats it as read-only.
type FileRecord struct {
	Path         string
	Size         int64
	Device       uint64
	Inode        uint64
	CmdlineIndex int
	Depth        int
	Identity     int64
	Invalid      bool
	AHash        *fingerprint.Fingerprint
	PHash        *fingerprint.Fingerprint

	isRegular bool
}

// IsRegular reports whether the underlying filesystem entry was a
// regular file at stat time.
func (f *FileRecord) IsRegular() bool { return f.isRegular }

// Less implements the (cmdlineIndex, depth, identity) rank order: the
// smallest record under this order is the preferred representative of
// a set of identical-inode files.
func Less(a, b *FileRecord) bool {
	if a.CmdlineIndex != b.CmdlineIndex {
		return a.CmdlineIndex < b.CmdlineIndex
	}
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.Identity < b.Identity
}

// Stat builds a FileRecord for path, populating filesystem identity
// fields via stat, retrying automatically on EINTR.
func Stat(path string, cmdlineIndex, depth int) (*FileRecord, error) {
	info, err := statRetryEINTR(path)
	if err != nil {
		return nil, err
	}
	fr := &FileRecord{
		Path:         path,
		Size:         info.Size(),
		CmdlineIndex: cmdlineIndex,
		Depth:        depth,
		isRegular:    info.Mode().IsRegular(),
	}
	if sysStat, ok := info.Sys().(*syscall.Stat_t); ok {
		fr.Device = uint64(sysStat.Dev)
		fr.Inode = sysStat.Ino
	}
	return fr, nil
}

func statRetryEINTR(path string) (os.FileInfo, error) {
	for {
		info, err := os.Stat(path)
		if err == nil {
			return info, nil
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		return nil, err
	}
}

// AssignIdentities assigns each record a unique, monotonically
// increasing identity starting at 1, in slice order. Called once,
// single-threaded, after enumeration of all roots has finished.
func AssignIdentities(records []*FileRecord) {
	for i, r := range records {
		r.Identity = int64(i) + 1
	}
}
