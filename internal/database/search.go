package database

import (
	"context"
	"database/sql"
	"strings"
)

// SearchHit is one row of SearchContent.
type SearchHit struct {
	Type                 string   `json:"type"`
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	LanguageName         string   `json:"language_name,omitempty"`
	CompletionPercentage *float64 `json:"completion_percentage,omitempty"`
	Status               string   `json:"status,omitempty"`
}

// searchQueries run in order: languages, topics, examples, exercises. Each
// takes the escaped pattern once per ? placeholder.
var searchQueries = []struct {
	kind  string
	query string
	args  int
}{
	{"language", `
		SELECT id, name, description, ''
		FROM languages
		WHERE (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\') AND is_active = 1
		ORDER BY name`, 2},
	{"topic", `
		SELECT t.id, t.title, t.description, l.name
		FROM topics t JOIN languages l ON t.language_id = l.id
		WHERE (t.title LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\' OR t.content LIKE ? ESCAPE '\')
		  AND t.is_published = 1 AND l.is_active = 1
		ORDER BY l.name, t.order_index`, 3},
	{"example", `
		SELECT e.id, e.title, e.explanation, l.name
		FROM examples e
		JOIN topics t ON e.topic_id = t.id
		JOIN languages l ON t.language_id = l.id
		WHERE (e.title LIKE ? ESCAPE '\' OR e.explanation LIKE ? ESCAPE '\' OR e.code LIKE ? ESCAPE '\')
		  AND t.is_published = 1 AND l.is_active = 1
		ORDER BY l.name, t.order_index, e.rowid`, 3},
	{"exercise", `
		SELECT x.id, x.title, x.description, l.name
		FROM exercises x
		JOIN topics t ON x.topic_id = t.id
		JOIN languages l ON t.language_id = l.id
		WHERE (x.title LIKE ? ESCAPE '\' OR x.description LIKE ? ESCAPE '\')
		  AND t.is_published = 1 AND l.is_active = 1
		ORDER BY l.name, t.order_index, x.rowid`, 2},
}

// SearchContent matches query literally (case-insensitive for ASCII) against
// stored content of active languages and published topics. With a userID,
// topic and exercise hits carry the user's latest completion and status.
func (s *Store) SearchContent(ctx context.Context, query, userID string) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	pattern := escapeLike(query)

	var hits []SearchHit
	for _, q := range searchQueries {
		args := make([]any, q.args)
		for i := range args {
			args[i] = pattern
		}
		found, err := s.searchKind(ctx, q.kind, q.query, args)
		if err != nil {
			return nil, dbError(err, "search content").WithContext("type", q.kind)
		}
		hits = append(hits, found...)
	}

	if userID == "" {
		return hits, nil
	}
	for i := range hits {
		if hits[i].Type != "topic" && hits[i].Type != "exercise" {
			continue
		}
		var (
			pct    float64
			status string
		)
		err := s.db.QueryRowContext(ctx, `
			SELECT completion_percentage, status FROM user_progress
			WHERE user_id = ? AND (topic_id = ? OR exercise_id = ?)
			ORDER BY last_accessed DESC LIMIT 1`, userID, hits[i].ID, hits[i].ID).Scan(&pct, &status)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, dbError(err, "attach search progress")
		default:
			hits[i].CompletionPercentage = &pct
			hits[i].Status = status
		}
	}
	return hits, nil
}

func (s *Store) searchKind(ctx context.Context, kind, query string, args []any) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SearchHit
	for rows.Next() {
		h := SearchHit{Type: kind}
		if err := rows.Scan(&h.ID, &h.Title, &h.Description, &h.LanguageName); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
