// Package history implements a purely observational SQLite table of
// past invocations, kept for auditing and never consulted by the
// clustering pipeline itself.
package history

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"duplicate-image-finder/internal/logx"
)

// Store wraps a single-table sqlite database recording one row per
// completed run. It is never read back by the clustering pipeline.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the database at path and ensures the runs
// table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		roots TEXT,
		cluster_count INTEGER,
		reclaimable_bytes INTEGER,
		ran_at TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends one row for a completed run. Failures are the
// caller's to log; RecordRun never panics and the ledger can never
// fail a run.
func (s *Store) RecordRun(runID string, roots []string, clusterCount int, reclaimableBytes int64, ranAt string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, roots, cluster_count, reclaimable_bytes, ran_at) VALUES (?, ?, ?, ?, ?)`,
		runID, strings.Join(roots, ","), clusterCount, reclaimableBytes, ranAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert run %s: %w", runID, err)
	}
	return nil
}

// OpenOrWarn opens the ledger at path, logging and returning nil
// instead of failing the run when it cannot be reached.
func OpenOrWarn(path string, logger *logx.Logger) *Store {
	if path == "" {
		return nil
	}
	store, err := Open(path)
	if err != nil {
		logger.Warnf("history: %v", err)
		return nil
	}
	return store
}
