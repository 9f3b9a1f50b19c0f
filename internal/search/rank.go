package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// minTermLength drops query terms shorter than this many characters.
const minTermLength = 2

// Query describes one /search request.
type Query struct {
	Text    string
	Project string
	Since   *time.Time
	Until   *time.Time
	Sort    string // "relevance" (default) or "recent"
	Limit   int
	Offset  int
}

// Result is one ranked hit.
type Result struct {
	Session IndexedSession
	Score   float64
}

// Results is a page of ranked hits alongside the total candidate count
// before pagination, for REST pagination metadata.
type Results struct {
	Hits  []Result
	Total int
}

// Search runs q against the index, applying the deterministic ranking
// formula over whichever row set the backing store can
// produce — FTS5 MATCH when available, substring LIKE otherwise. Ranking
// itself never depends on which path produced the candidates.
func (s *Store) Search(ctx context.Context, q Query) (Results, error) {
	terms := queryTerms(q.Text)
	phrase := strings.ToLower(strings.TrimSpace(q.Text))

	rows, err := s.candidateRows(ctx, q, terms)
	if err != nil {
		return Results{}, err
	}

	now := time.Now().UTC()
	scored := make([]Result, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, Result{Session: row, Score: score(row, terms, phrase, now)})
	}

	sortResults(scored, q.Sort)

	total := len(scored)
	limit := q.Limit
	if limit <= 0 {
		limit = total
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return Results{Hits: scored[offset:end], Total: total}, nil
}

func sortResults(results []Result, sortMode string) {
	switch sortMode {
	case "recent":
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Session.FileModifiedAt.After(results[j].Session.FileModifiedAt)
		})
	default: // "relevance"
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			return results[i].Session.FileModifiedAt.After(results[j].Session.FileModifiedAt)
		})
	}
}

// score weights summary term matches, an exact-phrase bonus, project term
// matches, and recency into a single relevance value.
func score(sess IndexedSession, terms []string, phrase string, now time.Time) float64 {
	summary := strings.ToLower(sess.Summary)
	project := strings.ToLower(sess.ProjectDisplayName)

	var summaryMatches, projectMatches int
	for _, t := range terms {
		if strings.Contains(summary, t) {
			summaryMatches++
		}
		if strings.Contains(project, t) {
			projectMatches++
		}
	}

	var phraseBonus float64
	if phrase != "" && strings.Contains(summary, phrase) {
		phraseBonus = 1.0
	}

	recency := 1.0 - daysSince(now, sess.FileModifiedAt)/30
	if recency < 0 {
		recency = 0
	}

	return 2.0*float64(summaryMatches) + phraseBonus + 1.0*float64(projectMatches) + recency
}

// queryTerms lowercases and splits q on whitespace, dropping terms shorter
// than minTermLength.
func queryTerms(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// candidateRows applies project/since/until filters in SQL, then narrows
// by text match (FTS5 MATCH when available, LIKE fallback otherwise) when
// the query has usable terms. With no text filter, every row passing the
// structural filters is a candidate — ranking then sorts by recency alone.
func (s *Store) candidateRows(ctx context.Context, q Query, terms []string) ([]IndexedSession, error) {
	where := []string{"is_subagent = 0"}
	args := []any{}

	if q.Project != "" {
		where = append(where, "project_encoded = ?")
		args = append(args, q.Project)
	}
	if q.Since != nil {
		where = append(where, "file_modified_at >= ?")
		args = append(args, q.Since.Unix())
	}
	if q.Until != nil {
		where = append(where, "file_modified_at <= ?")
		args = append(args, q.Until.Unix())
	}

	if len(terms) > 0 {
		if s.ftsEnabled {
			where = append(where, "session_id IN (SELECT session_id FROM sessions WHERE rowid IN (SELECT rowid FROM sessions_fts WHERE sessions_fts MATCH ?))")
			args = append(args, ftsMatchExpr(terms))
		} else {
			var likeClauses []string
			for _, t := range terms {
				likeClauses = append(likeClauses, "summary LIKE ? ESCAPE '\\' OR project_display_name LIKE ? ESCAPE '\\'")
				pattern := "%" + escapeLike(t) + "%"
				args = append(args, pattern, pattern)
			}
			where = append(where, "("+strings.Join(likeClauses, " OR ")+")")
		}
	}

	query := fmt.Sprintf(`
		SELECT session_id, project_encoded, project_display_name, project_path,
		       COALESCE(summary, ''), file_path, file_created_at, file_modified_at,
		       indexed_at, size_bytes, line_count, duration_ms, has_subagents, is_subagent
		FROM sessions
		WHERE %s`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexedSession
	for rows.Next() {
		var sess IndexedSession
		var createdUnix, modifiedUnix, indexedUnix int64
		var durationMs *int
		var hasSubagents, isSubagent int
		if err := rows.Scan(
			&sess.SessionID, &sess.ProjectEncoded, &sess.ProjectDisplayName, &sess.ProjectPath,
			&sess.Summary, &sess.FilePath, &createdUnix, &modifiedUnix,
			&indexedUnix, &sess.SizeBytes, &sess.LineCount, &durationMs, &hasSubagents, &isSubagent,
		); err != nil {
			return nil, err
		}
		sess.FileCreatedAt = time.Unix(createdUnix, 0).UTC()
		sess.FileModifiedAt = time.Unix(modifiedUnix, 0).UTC()
		sess.IndexedAt = time.Unix(indexedUnix, 0).UTC()
		if durationMs != nil {
			sess.DurationMs = *durationMs
			sess.HasDurationMs = true
		}
		sess.HasSubagents = hasSubagents != 0
		sess.IsSubagent = isSubagent != 0
		out = append(out, sess)
	}
	return out, rows.Err()
}

func ftsMatchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
