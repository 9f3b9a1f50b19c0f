// Package search maintains the persistent SQLite full-text index over
// discovered session transcript files: schema setup, incremental refresh,
// maintenance (backup/vacuum/checkpoint/integrity), and the ranking query
// bots and the REST surface use to locate sessions.
package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite-backed index database.
type Store struct {
	db         *sql.DB
	path       string
	ftsEnabled bool
}

// Open opens (creating if absent) the database at path with WAL mode and
// a bounded busy timeout, then runs safeInitialize.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one connection avoids SQLITE_BUSY churn

	s := &Store{db: db, path: path}
	if err := s.safeInitialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// FTSEnabled reports whether full-text search is active for this store.
func (s *Store) FTSEnabled() bool {
	return s.ftsEnabled
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// safeInitialize checks integrity and, on corruption, renames the existing
// file aside with a .corrupt suffix (plus its WAL/SHM siblings) before
// re-initializing a fresh database.
func (s *Store) safeInitialize(ctx context.Context) error {
	ok, err := s.verifyIntegrity(ctx)
	if err != nil || !ok {
		if err != nil {
			slog.Warn("index integrity check failed, recovering", "error", err)
		} else {
			slog.Warn("index database reported corrupt, recovering")
		}
		return s.recoverAndMigrate(ctx)
	}

	ftsEnabled, err := migrate(ctx, s.db)
	if err != nil {
		return fmt.Errorf("migrate index schema: %w", err)
	}
	s.ftsEnabled = ftsEnabled
	if !ftsEnabled {
		s.setMetadata(ctx, "fts_warning", "FTS5 unavailable; falling back to substring search")
	}
	return nil
}

// Recover rebuilds the index database from scratch after corruption is
// detected outside startup — typically when a periodic Refresh's own SQL
// fails in a way isCorrupt recognizes. It takes the same rename-aside-and-
// rebuild path safeInitialize takes at Open. The rebuilt database starts
// empty, so callers must follow this with a full Refresh pass.
func (s *Store) Recover(ctx context.Context) error {
	slog.Error("index database corrupt, recovering", "path", s.path)
	return s.recoverAndMigrate(ctx)
}

// recoverAndMigrate renames the current database aside and re-runs the
// schema migration against a fresh file at the same path.
func (s *Store) recoverAndMigrate(ctx context.Context) error {
	if err := s.recoverCorrupt(ctx); err != nil {
		return err
	}

	ftsEnabled, err := migrate(ctx, s.db)
	if err != nil {
		return fmt.Errorf("migrate index schema: %w", err)
	}
	s.ftsEnabled = ftsEnabled
	if !ftsEnabled {
		s.setMetadata(ctx, "fts_warning", "FTS5 unavailable; falling back to substring search")
	}
	return nil
}

// recoverCorrupt closes the current connection, renames the database file
// (and its WAL/SHM companions) aside, and reopens a fresh file at the same
// path with the same pragmas.
func (s *Store) recoverCorrupt(ctx context.Context) error {
	s.db.Close()

	for _, suffix := range []string{"", "-wal", "-shm"} {
		src := s.path + suffix
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if suffix == "" {
			if err := os.Rename(src, src+".corrupt"); err != nil {
				return fmt.Errorf("rename corrupt database: %w", err)
			}
			continue
		}
		os.Remove(src)
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("reopen index database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

// verifyIntegrity runs PRAGMA integrity_check.
func (s *Store) verifyIntegrity(ctx context.Context) (bool, error) {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return false, err
	}
	return result == "ok", nil
}

// Backup copies the database to destination using SQLite's VACUUM INTO,
// which is the pure-Go driver's equivalent of the online backup API (a
// single consistent-snapshot write, no separate backup-API bindings).
func (s *Store) Backup(ctx context.Context, destination string) error {
	if dir := filepath.Dir(destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destination)
	return err
}

// Vacuum runs an incremental vacuum to reclaim freed pages.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA incremental_vacuum")
	return err
}

// Checkpoint truncates the write-ahead log.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// executeWithRetryDefaultAttempts is the default bound on write-path retries
// against SQLITE_BUSY.
const executeWithRetryDefaultAttempts = 3

// executeWithRetry runs op, retrying on "database is locked"/"busy" errors
// with exponential back-off. Non-busy errors return immediately.
func executeWithRetry(op func() error) error {
	return executeWithRetryN(op, executeWithRetryDefaultAttempts)
}

func executeWithRetryN(op func() error, attempts int) error {
	var err error
	delay := 10 * time.Millisecond
	for attempt := 0; attempt < attempts; attempt++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// ErrCorrupt wraps any SQL error classified by isCorrupt. Callers use
// errors.Is(err, ErrCorrupt) to decide whether to run Recover rather than
// just logging and skipping the affected file.
var ErrCorrupt = errors.New("search: index database corrupt")

func isCorrupt(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "file is encrypted or is not a database")
}

// classifyErr wraps err with ErrCorrupt when it looks like on-disk
// corruption rather than lock contention or a transient failure.
func classifyErr(err error) error {
	if isCorrupt(err) {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return err
}

func (s *Store) setMetadata(ctx context.Context, key, value string) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO index_metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		slog.Warn("failed to write index metadata", "key", key, "error", err)
	}
}

func (s *Store) getMetadata(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("failed to read index metadata", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

// Stats summarizes the index for /health.
type Stats struct {
	Sessions    int
	Projects    int
	FTSEnabled  bool
	LastRefresh *time.Time
}

// Stats reports aggregate counts for the health endpoint.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{FTSEnabled: s.ftsEnabled}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&st.Sessions); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT project_encoded) FROM sessions").Scan(&st.Projects); err != nil {
		return st, err
	}
	if v, ok := s.getMetadata(ctx, "last_refresh_unix"); ok {
		var sec int64
		if _, err := fmt.Sscanf(v, "%d", &sec); err == nil {
			t := time.Unix(sec, 0).UTC()
			st.LastRefresh = &t
		}
	}
	return st, nil
}

// daysSince returns the (possibly fractional, never negative) number of
// days between t and now, used by the ranking recency term.
func daysSince(now, t time.Time) float64 {
	d := now.Sub(t).Hours() / 24
	return math.Max(0, d)
}
