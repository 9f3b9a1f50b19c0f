package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/classify"
)

// IndexedSession is one row of the sessions table — immutable except via
// full row replace.
type IndexedSession struct {
	SessionID          string
	ProjectEncoded     string
	ProjectDisplayName string
	ProjectPath        string
	Summary            string
	HasSummary         bool
	FilePath           string
	FileCreatedAt      time.Time
	FileModifiedAt     time.Time
	IndexedAt          time.Time
	SizeBytes          int64
	LineCount          int
	DurationMs         int
	HasDurationMs      bool
	HasSubagents       bool
	IsSubagent         bool
}

// subagentDirMarker is the path component that structurally identifies a
// sub-agent transcript file.
const subagentDirMarker = "subagents"

// RefreshOptions configures one incremental index pass.
type RefreshOptions struct {
	Paths              []string
	IncludeSubagents   bool
	MaxSessionsPerProj int // 0 = unlimited
}

// RefreshResult summarizes one Refresh call.
type RefreshResult struct {
	Scanned int
	Updated int
	Skipped int
}

// Refresh walks opts.Paths for .jsonl files, compares each against its
// stored mtime, and re-extracts changed files. Unchanged files are skipped
// entirely — no parse, no write.
func (s *Store) Refresh(ctx context.Context, opts RefreshOptions) (RefreshResult, error) {
	var result RefreshResult
	perProject := make(map[string]int)

	for _, root := range opts.Paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // best-effort scan: skip unreadable entries
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
				return nil
			}

			isSubagent := strings.Contains(path, string(os.PathSeparator)+subagentDirMarker+string(os.PathSeparator))
			if isSubagent && !opts.IncludeSubagents {
				return nil
			}

			result.Scanned++

			info, statErr := d.Info()
			if statErr != nil {
				return nil
			}

			changed, checkErr := s.fileChanged(ctx, path, info.ModTime())
			if checkErr != nil {
				if errors.Is(checkErr, ErrCorrupt) {
					return checkErr
				}
				result.Skipped++
				return nil
			}
			if !changed {
				result.Skipped++
				return nil
			}

			project := projectFromPath(path)
			if opts.MaxSessionsPerProj > 0 && perProject[project.encoded] >= opts.MaxSessionsPerProj {
				result.Skipped++
				return nil
			}

			sess, extractErr := extractSession(path, info, isSubagent, project)
			if extractErr != nil {
				result.Skipped++
				return nil
			}

			if err := s.upsertSession(ctx, sess); err != nil {
				if errors.Is(err, ErrCorrupt) {
					return err
				}
				result.Skipped++
				return nil
			}
			perProject[project.encoded]++
			result.Updated++
			return nil
		})
		if err != nil {
			return result, err
		}
	}

	s.setMetadata(ctx, "last_refresh_unix", fmt.Sprintf("%d", time.Now().UTC().Unix()))
	return result, nil
}

// fileChanged compares the filesystem mtime against file_mtimes, recording
// the new mtime when it reports changed.
func (s *Store) fileChanged(ctx context.Context, path string, mtime time.Time) (bool, error) {
	var stored int64
	err := s.db.QueryRowContext(ctx, "SELECT mtime_unix FROM file_mtimes WHERE file_path = ?", path).Scan(&stored)
	if err != nil && isCorrupt(err) {
		return true, classifyErr(err)
	}
	observed := mtime.Unix()
	if err == nil && stored == observed {
		return false, nil
	}

	writeErr := executeWithRetry(func() error {
		_, execErr := s.db.ExecContext(ctx,
			"INSERT INTO file_mtimes (file_path, mtime_unix) VALUES (?, ?) ON CONFLICT(file_path) DO UPDATE SET mtime_unix = excluded.mtime_unix",
			path, observed)
		return execErr
	})
	return true, classifyErr(writeErr)
}

func (s *Store) upsertSession(ctx context.Context, sess IndexedSession) error {
	err := executeWithRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (
				session_id, project_encoded, project_display_name, project_path,
				summary, file_path, file_created_at, file_modified_at, indexed_at,
				size_bytes, line_count, duration_ms, has_subagents, is_subagent
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET
				project_encoded = excluded.project_encoded,
				project_display_name = excluded.project_display_name,
				project_path = excluded.project_path,
				summary = excluded.summary,
				file_path = excluded.file_path,
				file_created_at = excluded.file_created_at,
				file_modified_at = excluded.file_modified_at,
				indexed_at = excluded.indexed_at,
				size_bytes = excluded.size_bytes,
				line_count = excluded.line_count,
				duration_ms = excluded.duration_ms,
				has_subagents = excluded.has_subagents,
				is_subagent = excluded.is_subagent`,
			sess.SessionID, sess.ProjectEncoded, sess.ProjectDisplayName, sess.ProjectPath,
			nullableString(sess.HasSummary, sess.Summary), sess.FilePath,
			sess.FileCreatedAt.Unix(), sess.FileModifiedAt.Unix(), sess.IndexedAt.Unix(),
			sess.SizeBytes, sess.LineCount, nullableInt(sess.HasDurationMs, sess.DurationMs),
			boolToInt(sess.HasSubagents), boolToInt(sess.IsSubagent),
		)
		return err
	})
	return classifyErr(err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(present bool, v string) any {
	if !present {
		return nil
	}
	return v
}

func nullableInt(present bool, v int) any {
	if !present {
		return nil
	}
	return v
}

type projectInfo struct {
	encoded     string
	path        string
	displayName string
}

// projectFromPath derives the project identity from a session file's
// parent directory, following the host convention of one directory per
// project whose name is the project's filesystem path with path
// separators collapsed to "-". Decoding is best-effort and lossy when the
// original path itself contained hyphens; the display name falls back to
// the encoded directory name when decoding yields nothing useful.
func projectFromPath(sessionFilePath string) projectInfo {
	dir := filepath.Dir(sessionFilePath)
	encoded := filepath.Base(dir)

	decoded := strings.ReplaceAll(encoded, "-", string(os.PathSeparator))
	display := encoded
	if last := filepath.Base(decoded); last != "" && last != "." {
		display = last
	}

	return projectInfo{encoded: encoded, path: decoded, displayName: display}
}

// extractSession parses just enough of a transcript file to build its
// index row: the first "summary"-typed record, size, line count, and
// aggregated turn_duration.
func extractSession(path string, info fs.FileInfo, isSubagent bool, project projectInfo) (IndexedSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return IndexedSession{}, err
	}
	defer f.Close()

	sess := IndexedSession{
		SessionID:          strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		ProjectEncoded:     project.encoded,
		ProjectDisplayName: project.displayName,
		ProjectPath:        project.path,
		FilePath:           path,
		FileModifiedAt:     info.ModTime(),
		FileCreatedAt:      creationTime(info),
		IndexedAt:          time.Now().UTC(),
		SizeBytes:          info.Size(),
		IsSubagent:         isSubagent,
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var totalDurationMs int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		sess.LineCount++

		rec, parseErr := classify.Parse(line)
		if parseErr != nil {
			continue
		}

		if !sess.HasSummary && rec.Type == "summary" && rec.Summary != "" {
			sess.Summary = rec.Summary
			sess.HasSummary = true
		}
		if rec.Type == "system" && rec.Subtype == "turn_duration" && rec.DurationMs > 0 {
			totalDurationMs += rec.DurationMs
			sess.HasDurationMs = true
		}
	}
	sess.DurationMs = totalDurationMs
	sess.HasSubagents = hasSubagentSibling(path)

	return sess, scanner.Err()
}

// hasSubagentSibling reports whether this session's directory contains a
// "subagents" subdirectory, the same structural marker used to exclude
// sub-agent transcripts themselves.
func hasSubagentSibling(path string) bool {
	candidate := filepath.Join(filepath.Dir(path), subagentDirMarker)
	info, err := os.Stat(candidate)
	return err == nil && info.IsDir()
}

// creationTime returns the file's birth time where the platform exposes
// one; Go's fs.FileInfo has no portable creation-time field, so this falls
// back to ModTime (a session file is never modified before it's created,
// making the fallback a safe monotonic floor).
func creationTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
