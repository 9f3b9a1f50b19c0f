package search

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ftsMigrationVersion is the migration that creates sessions_fts and its
// sync triggers — the one migration allowed to fail (no FTS5 support
// compiled into the SQLite build) without aborting startup.
const ftsMigrationVersion = 2

// migrate applies every embedded SQL file not yet recorded in
// schema_migrations, in ascending version order, using a bookkeeping table
// and a single embedded-file runner (see DESIGN.md).
func migrate(ctx context.Context, db *sql.DB) (ftsEnabled bool, err error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`); err != nil {
		return false, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return false, fmt.Errorf("query schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return false, err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, err
	}
	rows.Close()

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	ftsEnabled = true
	for _, name := range names {
		version, verr := migrationVersion(name)
		if verr != nil {
			return ftsEnabled, verr
		}
		if applied[version] {
			if version == ftsMigrationVersion {
				ftsEnabled = ftsProbe(ctx, db)
			}
			continue
		}

		sqlBytes, rerr := migrationFiles.ReadFile("migrations/" + name)
		if rerr != nil {
			return ftsEnabled, rerr
		}

		if _, execErr := db.ExecContext(ctx, string(sqlBytes)); execErr != nil {
			if version == ftsMigrationVersion {
				slog.Warn("fts5 migration failed, falling back to substring search", "error", execErr)
				ftsEnabled = false
				if _, merr := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); merr != nil {
					return false, merr
				}
				continue
			}
			return ftsEnabled, fmt.Errorf("apply migration %s: %w", name, execErr)
		}

		if _, merr := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); merr != nil {
			return ftsEnabled, merr
		}
	}

	return ftsEnabled, nil
}

func migrationVersion(filename string) (int, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("migration filename %q missing version prefix", filename)
	}
	return strconv.Atoi(prefix)
}

// ftsProbe confirms sessions_fts is actually queryable — it may have been
// created by an older binary linked against a different SQLite build.
func ftsProbe(ctx context.Context, db *sql.DB) bool {
	_, err := db.ExecContext(ctx, "SELECT count(*) FROM sessions_fts WHERE sessions_fts MATCH 'probe'")
	return err == nil
}
