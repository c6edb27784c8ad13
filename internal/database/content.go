package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// metaKey carries content.Language.Key in the metadata column.
const metaKey = "key"

// SaveLanguage upserts a language with all of its topics, examples and
// exercises in one transaction. Children no longer present are removed.
func (s *Store) SaveLanguage(ctx context.Context, lang content.Language) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			slog.Error("Failed to save language", logfields.Language(lang.Name), logfields.Error(err))
		}
	}()

	if err := s.upsertLanguage(ctx, tx, lang); err != nil {
		return dbError(err, "save language").WithContext("language", lang.Name)
	}
	topicIDs := make([]string, 0, len(lang.Topics))
	for _, t := range lang.Topics {
		if err := s.saveTopic(ctx, tx, lang.ID, t); err != nil {
			return dbError(err, "save topic").WithContext("topic", t.Title)
		}
		topicIDs = append(topicIDs, t.ID)
	}
	if err := deleteStale(ctx, tx, "topics", "language_id", lang.ID, topicIDs); err != nil {
		return dbError(err, "remove stale topics")
	}
	if err := tx.Commit(); err != nil {
		return dbError(err, "commit language")
	}
	slog.Debug("Saved language", logfields.Language(lang.Name), logfields.Count(len(lang.Topics)))
	return nil
}

func (s *Store) upsertLanguage(ctx context.Context, tx *sql.Tx, l content.Language) error {
	meta := make(map[string]any, len(l.Metadata)+1)
	for k, v := range l.Metadata {
		meta[k] = v
	}
	if l.Key != "" {
		meta[metaKey] = l.Key
	}
	links, err := encodeJSON(l.CommunityLinks, "[]")
	if err != nil {
		return err
	}
	path, err := encodeJSON(l.LearningPath, "[]")
	if err != nil {
		return err
	}
	metaJSON, err := encodeJSON(meta, "{}")
	if err != nil {
		return err
	}
	created, updated := s.stamps(l.CreatedAt, l.UpdatedAt)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO languages
			(id, name, description, icon, color, version, difficulty, estimated_hours,
			 popularity_score, is_active, official_docs_url, community_links,
			 learning_path, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description, icon = excluded.icon,
			color = excluded.color, version = excluded.version, difficulty = excluded.difficulty,
			estimated_hours = excluded.estimated_hours, popularity_score = excluded.popularity_score,
			is_active = excluded.is_active, official_docs_url = excluded.official_docs_url,
			community_links = excluded.community_links, learning_path = excluded.learning_path,
			metadata = excluded.metadata, updated_at = excluded.updated_at`,
		l.ID, l.Name, l.Description, l.Icon, l.Color, l.Version, string(l.Difficulty), l.EstimatedHours,
		l.PopularityScore, l.IsActive, nullString(l.OfficialDocsURL), links,
		path, metaJSON, created, updated)
	return err
}

func (s *Store) saveTopic(ctx context.Context, tx *sql.Tx, languageID string, t content.Topic) error {
	cols := map[string]any{
		"learning_objectives":  t.LearningObjectives,
		"prerequisites":        t.Prerequisites,
		"best_practices":       t.BestPractices,
		"common_mistakes":      t.CommonMistakes,
		"additional_resources": t.AdditionalResources,
		"tags":                 t.Tags,
	}
	enc := make(map[string]string, len(cols))
	for k, v := range cols {
		js, err := encodeJSON(v, "[]")
		if err != nil {
			return err
		}
		enc[k] = js
	}
	meta, err := encodeJSON(t.Metadata, "{}")
	if err != nil {
		return err
	}
	created, updated := s.stamps(t.CreatedAt, t.UpdatedAt)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO topics
			(id, language_id, title, description, content, learning_objectives, prerequisites,
			 difficulty, estimated_duration_minutes, order_index, is_published, best_practices,
			 common_mistakes, additional_resources, tags, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			language_id = excluded.language_id, title = excluded.title,
			description = excluded.description, content = excluded.content,
			learning_objectives = excluded.learning_objectives, prerequisites = excluded.prerequisites,
			difficulty = excluded.difficulty, estimated_duration_minutes = excluded.estimated_duration_minutes,
			order_index = excluded.order_index, is_published = excluded.is_published,
			best_practices = excluded.best_practices, common_mistakes = excluded.common_mistakes,
			additional_resources = excluded.additional_resources, tags = excluded.tags,
			metadata = excluded.metadata, updated_at = excluded.updated_at`,
		t.ID, languageID, t.Title, t.Description, t.Content, enc["learning_objectives"], enc["prerequisites"],
		string(t.Difficulty), t.EstimatedDurationMinutes, t.OrderIndex, t.IsPublished, enc["best_practices"],
		enc["common_mistakes"], enc["additional_resources"], enc["tags"], meta, created, updated)
	if err != nil {
		return err
	}

	exampleIDs := make([]string, 0, len(t.Examples))
	for _, ex := range t.Examples {
		if err := s.saveExample(ctx, tx, t.ID, ex); err != nil {
			return fmt.Errorf("example %q: %w", ex.Title, err)
		}
		exampleIDs = append(exampleIDs, ex.ID)
	}
	if err := deleteStale(ctx, tx, "examples", "topic_id", t.ID, exampleIDs); err != nil {
		return err
	}

	exerciseIDs := make([]string, 0, len(t.Exercises))
	for _, x := range t.Exercises {
		if err := s.saveExercise(ctx, tx, t.ID, x); err != nil {
			return fmt.Errorf("exercise %q: %w", x.Title, err)
		}
		exerciseIDs = append(exerciseIDs, x.ID)
	}
	return deleteStale(ctx, tx, "exercises", "topic_id", t.ID, exerciseIDs)
}

func (s *Store) saveExample(ctx context.Context, tx *sql.Tx, topicID string, e content.Example) error {
	tags, err := encodeJSON(e.Tags, "[]")
	if err != nil {
		return err
	}
	meta, err := encodeJSON(e.Metadata, "{}")
	if err != nil {
		return err
	}
	created, updated := s.stamps(e.CreatedAt, e.UpdatedAt)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO examples
			(id, topic_id, title, code, explanation, language, difficulty, tags,
			 expected_output, execution_time_ms, memory_usage_kb, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic_id = excluded.topic_id, title = excluded.title, code = excluded.code,
			explanation = excluded.explanation, language = excluded.language,
			difficulty = excluded.difficulty, tags = excluded.tags,
			expected_output = excluded.expected_output, execution_time_ms = excluded.execution_time_ms,
			memory_usage_kb = excluded.memory_usage_kb, metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		e.ID, topicID, e.Title, e.Code, e.Explanation, e.Language, string(e.Difficulty), tags,
		nullString(e.ExpectedOutput), e.ExecutionTimeMS, e.MemoryUsageKB, meta, created, updated)
	return err
}

func (s *Store) saveExercise(ctx context.Context, tx *sql.Tx, topicID string, x content.Exercise) error {
	var enc [3]string
	for i, v := range []any{x.Tags, x.Hints, x.TestCases} {
		js, err := encodeJSON(v, "[]")
		if err != nil {
			return err
		}
		enc[i] = js
	}
	meta, err := encodeJSON(x.Metadata, "{}")
	if err != nil {
		return err
	}
	created, updated := s.stamps(x.CreatedAt, x.UpdatedAt)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO exercises
			(id, topic_id, title, description, instructions, starter_code, solution,
			 difficulty, estimated_time_minutes, tags, hints, test_cases, max_attempts,
			 points, language, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic_id = excluded.topic_id, title = excluded.title, description = excluded.description,
			instructions = excluded.instructions, starter_code = excluded.starter_code,
			solution = excluded.solution, difficulty = excluded.difficulty,
			estimated_time_minutes = excluded.estimated_time_minutes, tags = excluded.tags,
			hints = excluded.hints, test_cases = excluded.test_cases,
			max_attempts = excluded.max_attempts, points = excluded.points,
			language = excluded.language, metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		x.ID, topicID, x.Title, x.Description, x.Instructions, x.StarterCode, x.Solution,
		string(x.Difficulty), x.EstimatedTimeMinutes, enc[0], enc[1], enc[2], x.MaxAttempts,
		x.Points, x.Language, meta, created, updated)
	return err
}

// stamps fills zero timestamps with the current time.
func (s *Store) stamps(created, updated time.Time) (string, string) {
	now := s.now()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}
	return formatTime(created), formatTime(updated)
}

func deleteStale(ctx context.Context, tx *sql.Tx, table, parentCol, parentID string, keep []string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, parentCol)
	args := []any{parentID}
	if len(keep) > 0 {
		query += " AND id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",") + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Language loads a language by ID with its topics in order, and each topic's
// examples and exercises.
func (s *Store) Language(ctx context.Context, id string) (content.Language, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, icon, color, version, difficulty, estimated_hours,
		       popularity_score, is_active, official_docs_url, community_links,
		       learning_path, metadata, created_at, updated_at
		FROM languages WHERE id = ?`, id)

	var (
		l                                content.Language
		icon, color, version, difficulty sql.NullString
		docs, links, path, meta          sql.NullString
		hours                            sql.NullInt64
		popularity                       sql.NullFloat64
		active                           sql.NullBool
		created, updated                 string
	)
	err := row.Scan(&l.ID, &l.Name, &l.Description, &icon, &color, &version, &difficulty, &hours,
		&popularity, &active, &docs, &links, &path, &meta, &created, &updated)
	if err == sql.ErrNoRows {
		return content.Language{}, ErrLanguageNotFound.WithContext("id", id)
	}
	if err != nil {
		return content.Language{}, dbError(err, "read language").WithContext("id", id)
	}

	l.Icon, l.Color, l.Version = icon.String, color.String, version.String
	l.Difficulty = content.Difficulty(difficulty.String)
	l.EstimatedHours = int(hours.Int64)
	l.PopularityScore = popularity.Float64
	l.IsActive = !active.Valid || active.Bool
	l.OfficialDocsURL = docs.String
	l.CreatedAt, l.UpdatedAt = parseTime(created), parseTime(updated)
	l.CommunityLinks, l.LearningPath, l.Metadata = []content.Resource{}, []string{}, map[string]any{}
	for _, c := range []struct {
		ns  sql.NullString
		out any
	}{{links, &l.CommunityLinks}, {path, &l.LearningPath}, {meta, &l.Metadata}} {
		if err := decodeJSON(c.ns, c.out); err != nil {
			return content.Language{}, dbError(err, "decode language").WithContext("id", id)
		}
	}
	if k, ok := l.Metadata[metaKey].(string); ok {
		l.Key = k
		delete(l.Metadata, metaKey)
	}

	if l.Topics, err = s.topics(ctx, l.ID); err != nil {
		return content.Language{}, err
	}
	return l, nil
}

// Languages returns every active language ordered by name.
func (s *Store) Languages(ctx context.Context) ([]content.Language, error) {
	ids, err := s.column(ctx, "SELECT id FROM languages WHERE is_active = 1 ORDER BY name")
	if err != nil {
		return nil, dbError(err, "list languages")
	}
	langs := make([]content.Language, 0, len(ids))
	for _, id := range ids {
		l, err := s.Language(ctx, id)
		if err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, nil
}

func (s *Store) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) topics(ctx context.Context, languageID string) ([]content.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, content, learning_objectives, prerequisites, difficulty,
		       estimated_duration_minutes, order_index, is_published, best_practices,
		       common_mistakes, additional_resources, tags, metadata, created_at, updated_at
		FROM topics WHERE language_id = ? ORDER BY order_index`, languageID)
	if err != nil {
		return nil, dbError(err, "query topics")
	}

	var topics []content.Topic
	for rows.Next() {
		var (
			t                               content.Topic
			objectives, prereqs, practices  sql.NullString
			mistakes, resources, tags, meta sql.NullString
			difficulty                      sql.NullString
			duration, order                 sql.NullInt64
			published                       sql.NullBool
			created, updated                string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Content, &objectives, &prereqs, &difficulty,
			&duration, &order, &published, &practices, &mistakes, &resources, &tags, &meta,
			&created, &updated); err != nil {
			rows.Close()
			return nil, dbError(err, "scan topic")
		}
		t.Difficulty = content.Difficulty(difficulty.String)
		t.EstimatedDurationMinutes, t.OrderIndex = int(duration.Int64), int(order.Int64)
		t.IsPublished = !published.Valid || published.Bool
		t.CreatedAt, t.UpdatedAt = parseTime(created), parseTime(updated)
		t.LearningObjectives, t.Prerequisites, t.BestPractices = []string{}, []string{}, []string{}
		t.CommonMistakes, t.Tags, t.AdditionalResources = []string{}, []string{}, []content.Resource{}
		t.Metadata = map[string]any{}
		for _, c := range []struct {
			ns  sql.NullString
			out any
		}{
			{objectives, &t.LearningObjectives}, {prereqs, &t.Prerequisites}, {practices, &t.BestPractices},
			{mistakes, &t.CommonMistakes}, {resources, &t.AdditionalResources}, {tags, &t.Tags}, {meta, &t.Metadata},
		} {
			if err := decodeJSON(c.ns, c.out); err != nil {
				rows.Close()
				return nil, dbError(err, "decode topic").WithContext("id", t.ID)
			}
		}
		topics = append(topics, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, dbError(err, "iterate topics")
	}

	// Children are read after the topic cursor is closed; the store has one connection.
	for i := range topics {
		if topics[i].Examples, err = s.examples(ctx, topics[i].ID); err != nil {
			return nil, err
		}
		if topics[i].Exercises, err = s.exercises(ctx, topics[i].ID); err != nil {
			return nil, err
		}
	}
	return topics, nil
}

func (s *Store) examples(ctx context.Context, topicID string) ([]content.Example, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, code, explanation, language, difficulty, tags, expected_output,
		       execution_time_ms, memory_usage_kb, metadata, created_at, updated_at
		FROM examples WHERE topic_id = ? ORDER BY rowid`, topicID)
	if err != nil {
		return nil, dbError(err, "query examples")
	}
	defer rows.Close()

	var out []content.Example
	for rows.Next() {
		var (
			e                              content.Example
			difficulty, tags, output, meta sql.NullString
			execMS, memKB                  sql.NullInt64
			created, updated               string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Code, &e.Explanation, &e.Language, &difficulty, &tags,
			&output, &execMS, &memKB, &meta, &created, &updated); err != nil {
			return nil, dbError(err, "scan example")
		}
		e.Difficulty = content.Difficulty(difficulty.String)
		e.ExpectedOutput = output.String
		if execMS.Valid {
			v := int(execMS.Int64)
			e.ExecutionTimeMS = &v
		}
		if memKB.Valid {
			v := int(memKB.Int64)
			e.MemoryUsageKB = &v
		}
		e.CreatedAt, e.UpdatedAt = parseTime(created), parseTime(updated)
		e.Tags, e.Metadata = []string{}, map[string]any{}
		if err := decodeJSON(tags, &e.Tags); err != nil {
			return nil, dbError(err, "decode example")
		}
		if err := decodeJSON(meta, &e.Metadata); err != nil {
			return nil, dbError(err, "decode example")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate examples")
	}
	return out, nil
}

func (s *Store) exercises(ctx context.Context, topicID string) ([]content.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, instructions, starter_code, solution, difficulty,
		       estimated_time_minutes, tags, hints, test_cases, max_attempts, points,
		       language, metadata, created_at, updated_at
		FROM exercises WHERE topic_id = ? ORDER BY rowid`, topicID)
	if err != nil {
		return nil, dbError(err, "query exercises")
	}
	defer rows.Close()

	var out []content.Exercise
	for rows.Next() {
		var (
			x                                        content.Exercise
			instructions, starter, solution          sql.NullString
			difficulty, tags, hints, testCases, meta sql.NullString
			minutes, attempts, points                sql.NullInt64
			created, updated                         string
		)
		if err := rows.Scan(&x.ID, &x.Title, &x.Description, &instructions, &starter, &solution, &difficulty,
			&minutes, &tags, &hints, &testCases, &attempts, &points, &x.Language, &meta,
			&created, &updated); err != nil {
			return nil, dbError(err, "scan exercise")
		}
		x.Instructions, x.StarterCode, x.Solution = instructions.String, starter.String, solution.String
		x.Difficulty = content.Difficulty(difficulty.String)
		x.EstimatedTimeMinutes = int(minutes.Int64)
		x.MaxAttempts, x.Points = int(attempts.Int64), int(points.Int64)
		x.CreatedAt, x.UpdatedAt = parseTime(created), parseTime(updated)
		x.Tags, x.Hints, x.TestCases, x.Metadata = []string{}, []string{}, []content.TestCase{}, map[string]any{}
		for _, c := range []struct {
			ns  sql.NullString
			out any
		}{{tags, &x.Tags}, {hints, &x.Hints}, {testCases, &x.TestCases}, {meta, &x.Metadata}} {
			if err := decodeJSON(c.ns, c.out); err != nil {
				return nil, dbError(err, "decode exercise").WithContext("id", x.ID)
			}
		}
		out = append(out, x)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate exercises")
	}
	return out, nil
}
