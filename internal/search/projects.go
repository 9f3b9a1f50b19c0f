package search

import "context"

// ProjectSummary is one row of the /projects aggregate.
type ProjectSummary struct {
	ProjectEncoded     string
	ProjectDisplayName string
	SessionCount       int
}

// Projects aggregates session counts per project for the /projects
// endpoint.
func (s *Store) Projects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_encoded, project_display_name, COUNT(*)
		FROM sessions
		WHERE is_subagent = 0
		GROUP BY project_encoded, project_display_name
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ProjectEncoded, &p.ProjectDisplayName, &p.SessionCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
