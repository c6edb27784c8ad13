package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/progress"
)

const (
	dateLayout         = "2006-01-02"
	defaultStatsWindow = 30
)

// SaveUserProgress validates and upserts a progress record. The referenced
// language and topic must already be stored.
func (s *Store) SaveUserProgress(ctx context.Context, p *progress.UserProgress) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = now
	}
	p.UpdatedAt = now

	examples, err := encodeJSON(p.CompletedExamples, "[]")
	if err != nil {
		return dbError(err, "encode progress")
	}
	exercises, err := encodeJSON(p.CompletedExercises, "[]")
	if err != nil {
		return dbError(err, "encode progress")
	}
	scores, err := encodeJSON(p.ExerciseScores, "{}")
	if err != nil {
		return dbError(err, "encode progress")
	}
	meta, err := encodeJSON(p.Metadata, "{}")
	if err != nil {
		return dbError(err, "encode progress")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_progress
			(id, user_id, language_id, topic_id, exercise_id, status, completion_percentage,
			 time_spent_minutes, attempts, last_accessed, completed_examples,
			 completed_exercises, exercise_scores, notes, bookmarked, metadata,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id, language_id = excluded.language_id,
			topic_id = excluded.topic_id, exercise_id = excluded.exercise_id,
			status = excluded.status, completion_percentage = excluded.completion_percentage,
			time_spent_minutes = excluded.time_spent_minutes, attempts = excluded.attempts,
			last_accessed = excluded.last_accessed, completed_examples = excluded.completed_examples,
			completed_exercises = excluded.completed_exercises, exercise_scores = excluded.exercise_scores,
			notes = excluded.notes, bookmarked = excluded.bookmarked, metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		p.ID, p.UserID, p.LanguageID, p.TopicID, nullString(p.ExerciseID), string(p.Status),
		p.CompletionPercentage, p.TimeSpentMinutes, p.Attempts, formatTime(p.LastAccessed),
		examples, exercises, scores, p.Notes, p.Bookmarked, meta,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return dbError(err, "save user progress").WithContext("user_id", p.UserID)
	}
	return nil
}

// UserProgress lists a user's records, most recently accessed first. Empty
// languageID or topicID match any value.
func (s *Store) UserProgress(ctx context.Context, userID, languageID, topicID string) ([]progress.UserProgress, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if languageID != "" {
		where = append(where, "language_id = ?")
		args = append(args, languageID)
	}
	if topicID != "" {
		where = append(where, "topic_id = ?")
		args = append(args, topicID)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, language_id, topic_id, exercise_id, status, completion_percentage,
		       time_spent_minutes, attempts, last_accessed, completed_examples,
		       completed_exercises, exercise_scores, notes, bookmarked, metadata,
		       created_at, updated_at
		FROM user_progress WHERE `+strings.Join(where, " AND ")+`
		ORDER BY last_accessed DESC`, args...)
	if err != nil {
		return nil, dbError(err, "query user progress")
	}
	defer rows.Close()

	var out []progress.UserProgress
	for rows.Next() {
		var (
			p                                 progress.UserProgress
			langID, topID, exID               sql.NullString
			examples, exercises, scores, meta sql.NullString
			notes                             sql.NullString
			status                            string
			lastAccessed, created, updated    string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &langID, &topID, &exID, &status,
			&p.CompletionPercentage, &p.TimeSpentMinutes, &p.Attempts, &lastAccessed,
			&examples, &exercises, &scores, &notes, &p.Bookmarked, &meta,
			&created, &updated); err != nil {
			return nil, dbError(err, "scan user progress")
		}
		p.LanguageID, p.TopicID, p.ExerciseID = langID.String, topID.String, exID.String
		p.Status = progress.Status(status)
		p.Notes = notes.String
		p.LastAccessed, p.CreatedAt, p.UpdatedAt = parseTime(lastAccessed), parseTime(created), parseTime(updated)
		p.CompletedExamples, p.CompletedExercises = []string{}, []string{}
		p.ExerciseScores, p.Metadata = map[string]float64{}, map[string]any{}
		for _, c := range []struct {
			ns  sql.NullString
			out any
		}{{examples, &p.CompletedExamples}, {exercises, &p.CompletedExercises}, {scores, &p.ExerciseScores}, {meta, &p.Metadata}} {
			if err := decodeJSON(c.ns, c.out); err != nil {
				return nil, dbError(err, "decode user progress").WithContext("id", p.ID)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate user progress")
	}
	return out, nil
}

// Session is one study session.
type Session struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	DurationMinutes    int        `json:"duration_minutes"`
	LanguagesAccessed  []string   `json:"languages_accessed"`
	TopicsCompleted    int        `json:"topics_completed"`
	ExercisesCompleted int        `json:"exercises_completed"`
	SessionType        string     `json:"session_type"`
}

// SessionSummary is what a session accomplished, recorded when it ends.
type SessionSummary struct {
	LanguagesAccessed  []string
	TopicsCompleted    int
	ExercisesCompleted int
}

// StartSession opens a session for userID and returns its ID.
func (s *Store) StartSession(ctx context.Context, userID, sessionType string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ferrors.ValidationError("user id cannot be empty").Build()
	}
	id := uuid.NewString()
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, start_time, session_type, languages_accessed, metadata, created_at)
		VALUES (?, ?, ?, ?, '[]', '{}', ?)`, id, userID, now, nullString(sessionType), now)
	if err != nil {
		return "", dbError(err, "start session")
	}
	return id, nil
}

// EndSession closes a session, computing its duration in whole minutes.
func (s *Store) EndSession(ctx context.Context, id string, summary SessionSummary) (Session, error) {
	var (
		sess        Session
		start       string
		sessionType sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, start_time, session_type FROM user_sessions WHERE id = ?", id).
		Scan(&sess.ID, &sess.UserID, &start, &sessionType)
	if err == sql.ErrNoRows {
		return Session{}, ErrSessionNotFound.WithContext("id", id)
	}
	if err != nil {
		return Session{}, dbError(err, "read session")
	}

	end := s.now()
	sess.StartTime = parseTime(start)
	sess.EndTime = &end
	sess.DurationMinutes = int(end.Sub(sess.StartTime).Minutes())
	sess.SessionType = sessionType.String
	sess.LanguagesAccessed = summary.LanguagesAccessed
	if sess.LanguagesAccessed == nil {
		sess.LanguagesAccessed = []string{}
	}
	sess.TopicsCompleted, sess.ExercisesCompleted = summary.TopicsCompleted, summary.ExercisesCompleted

	langs, err := encodeJSON(sess.LanguagesAccessed, "[]")
	if err != nil {
		return Session{}, dbError(err, "encode session")
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE user_sessions SET end_time = ?, duration_minutes = ?, languages_accessed = ?,
			topics_completed = ?, exercises_completed = ?
		WHERE id = ?`,
		formatTime(end), sess.DurationMinutes, langs, sess.TopicsCompleted, sess.ExercisesCompleted, id)
	if err != nil {
		return Session{}, dbError(err, "end session")
	}
	return sess, nil
}

// DailyStat is one learner's aggregate for one calendar day.
type DailyStat struct {
	Date               string   `json:"date"`
	TotalTimeMinutes   int      `json:"total_time_minutes"`
	TopicsCompleted    int      `json:"topics_completed"`
	ExercisesCompleted int      `json:"exercises_completed"`
	ExercisesAttempted int      `json:"exercises_attempted"`
	AverageScore       float64  `json:"average_score"`
	LanguagesPracticed []string `json:"languages_practiced"`
	StreakDays         int      `json:"streak_days"`
}

// RecordLearningDay inserts or replaces the user's row for d.Date
// (YYYY-MM-DD; empty means today).
func (s *Store) RecordLearningDay(ctx context.Context, userID string, d DailyStat) error {
	if d.Date == "" {
		d.Date = s.now().Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, d.Date); err != nil {
		return ferrors.ValidationError("date must be YYYY-MM-DD").WithContext("date", d.Date).Build()
	}
	langs, err := encodeJSON(d.LanguagesPracticed, "[]")
	if err != nil {
		return dbError(err, "encode learning day")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_stats
			(id, user_id, date, total_time_minutes, topics_completed, exercises_completed,
			 exercises_attempted, average_score, languages_practiced, streak_days,
			 achievements, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', '{}', ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			total_time_minutes = excluded.total_time_minutes,
			topics_completed = excluded.topics_completed,
			exercises_completed = excluded.exercises_completed,
			exercises_attempted = excluded.exercises_attempted,
			average_score = excluded.average_score,
			languages_practiced = excluded.languages_practiced,
			streak_days = excluded.streak_days`,
		uuid.NewString(), userID, d.Date, d.TotalTimeMinutes, d.TopicsCompleted, d.ExercisesCompleted,
		d.ExercisesAttempted, d.AverageScore, langs, d.StreakDays, formatTime(s.now()))
	if err != nil {
		return dbError(err, "record learning day").WithContext("user_id", userID)
	}
	return nil
}

// StatsSummary totals a statistics window plus all-time progress figures.
type StatsSummary struct {
	TotalTimeMinutes        int     `json:"total_time_minutes"`
	TotalTopicsCompleted    int     `json:"total_topics_completed"`
	TotalExercisesCompleted int     `json:"total_exercises_completed"`
	CurrentStreakDays       int     `json:"current_streak_days"`
	AvgCompletionPercentage float64 `json:"avg_completion_percentage"`
	TotalProgressItems      int     `json:"total_progress_items"`
	CompletedItems          int     `json:"completed_items"`
}

// LearningStats is the result of LearningStatistics.
type LearningStats struct {
	Daily   []DailyStat  `json:"daily_stats"`
	Summary StatsSummary `json:"summary"`
}

// LearningStatistics returns the user's daily rows for the last days days,
// newest first, with a summary. The current streak is the newest row's
// streak. days <= 0 selects 30.
func (s *Store) LearningStatistics(ctx context.Context, userID string, days int) (LearningStats, error) {
	if days <= 0 {
		days = defaultStatsWindow
	}
	cutoff := s.now().AddDate(0, 0, -days).Format(dateLayout)

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, total_time_minutes, topics_completed, exercises_completed,
		       exercises_attempted, average_score, languages_practiced, streak_days
		FROM learning_stats
		WHERE user_id = ? AND date >= ?
		ORDER BY date DESC`, userID, cutoff)
	if err != nil {
		return LearningStats{}, dbError(err, "query learning stats")
	}
	stats := LearningStats{Daily: []DailyStat{}}
	for rows.Next() {
		var (
			d     DailyStat
			langs sql.NullString
		)
		if err := rows.Scan(&d.Date, &d.TotalTimeMinutes, &d.TopicsCompleted, &d.ExercisesCompleted,
			&d.ExercisesAttempted, &d.AverageScore, &langs, &d.StreakDays); err != nil {
			rows.Close()
			return LearningStats{}, dbError(err, "scan learning stats")
		}
		d.LanguagesPracticed = []string{}
		if err := decodeJSON(langs, &d.LanguagesPracticed); err != nil {
			rows.Close()
			return LearningStats{}, dbError(err, "decode learning stats")
		}
		stats.Daily = append(stats.Daily, d)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return LearningStats{}, dbError(err, "iterate learning stats")
	}

	sum := &stats.Summary
	for _, d := range stats.Daily {
		sum.TotalTimeMinutes += d.TotalTimeMinutes
		sum.TotalTopicsCompleted += d.TopicsCompleted
		sum.TotalExercisesCompleted += d.ExercisesCompleted
	}
	if len(stats.Daily) > 0 {
		sum.CurrentStreakDays = stats.Daily[0].StreakDays
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(completion_percentage),
		       COUNT(CASE WHEN status = 'completed' THEN 1 END)
		FROM user_progress WHERE user_id = ?`, userID).
		Scan(&sum.TotalProgressItems, &avg, &sum.CompletedItems)
	if err != nil {
		return LearningStats{}, dbError(err, "aggregate user progress")
	}
	sum.AvgCompletionPercentage = avg.Float64
	return stats, nil
}
