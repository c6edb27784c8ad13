package database

import (
	"context"
	"database/sql"
	"log/slog"

	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// CurrentSchemaVersion is the schema version this binary writes.
const CurrentSchemaVersion = 3

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version INTEGER NOT NULL,
	applied_at TEXT NOT NULL
)`

// baseTables is the version 1 schema.
var baseTables = []string{
	schemaVersionTable,
	`CREATE TABLE IF NOT EXISTS languages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		icon TEXT,
		color TEXT,
		version TEXT,
		difficulty TEXT,
		estimated_hours INTEGER,
		popularity_score REAL,
		is_active BOOLEAN DEFAULT 1,
		official_docs_url TEXT,
		community_links TEXT,
		learning_path TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		language_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		content TEXT NOT NULL,
		learning_objectives TEXT,
		prerequisites TEXT,
		difficulty TEXT,
		estimated_duration_minutes INTEGER,
		order_index INTEGER DEFAULT 0,
		is_published BOOLEAN DEFAULT 1,
		best_practices TEXT,
		common_mistakes TEXT,
		additional_resources TEXT,
		tags TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (language_id) REFERENCES languages(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS examples (
		id TEXT PRIMARY KEY,
		topic_id TEXT NOT NULL,
		title TEXT NOT NULL,
		code TEXT NOT NULL,
		explanation TEXT NOT NULL,
		language TEXT NOT NULL,
		difficulty TEXT,
		tags TEXT,
		expected_output TEXT,
		execution_time_ms INTEGER,
		memory_usage_kb INTEGER,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		topic_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		instructions TEXT,
		starter_code TEXT,
		solution TEXT,
		difficulty TEXT,
		estimated_time_minutes INTEGER,
		tags TEXT,
		hints TEXT,
		test_cases TEXT,
		max_attempts INTEGER DEFAULT 5,
		points INTEGER DEFAULT 10,
		language TEXT NOT NULL,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS user_progress (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		language_id TEXT,
		topic_id TEXT,
		exercise_id TEXT,
		status TEXT NOT NULL,
		completion_percentage REAL DEFAULT 0,
		time_spent_minutes INTEGER DEFAULT 0,
		attempts INTEGER DEFAULT 0,
		last_accessed TEXT NOT NULL,
		completed_examples TEXT,
		completed_exercises TEXT,
		exercise_scores TEXT,
		notes TEXT,
		bookmarked BOOLEAN DEFAULT 0,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (language_id) REFERENCES languages(id) ON DELETE SET NULL,
		FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE SET NULL,
		FOREIGN KEY (exercise_id) REFERENCES exercises(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		value_type TEXT NOT NULL,
		description TEXT,
		updated_at TEXT NOT NULL,
		UNIQUE(category, key)
	)`,
}

const userSessionsTable = `
CREATE TABLE IF NOT EXISTS user_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT,
	duration_minutes INTEGER,
	languages_accessed TEXT,
	topics_completed INTEGER DEFAULT 0,
	exercises_completed INTEGER DEFAULT 0,
	session_type TEXT,
	metadata TEXT,
	created_at TEXT NOT NULL
)`

const learningStatsTable = `
CREATE TABLE IF NOT EXISTS learning_stats (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	total_time_minutes INTEGER DEFAULT 0,
	topics_completed INTEGER DEFAULT 0,
	exercises_completed INTEGER DEFAULT 0,
	exercises_attempted INTEGER DEFAULT 0,
	average_score REAL DEFAULT 0,
	languages_practiced TEXT,
	streak_days INTEGER DEFAULT 0,
	achievements TEXT,
	metadata TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(user_id, date)
)`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_topics_language_id ON topics(language_id)",
	"CREATE INDEX IF NOT EXISTS idx_topics_order_index ON topics(order_index)",
	"CREATE INDEX IF NOT EXISTS idx_examples_topic_id ON examples(topic_id)",
	"CREATE INDEX IF NOT EXISTS idx_exercises_topic_id ON exercises(topic_id)",
	"CREATE INDEX IF NOT EXISTS idx_user_progress_user_id ON user_progress(user_id)",
	"CREATE INDEX IF NOT EXISTS idx_user_progress_language_id ON user_progress(language_id)",
	"CREATE INDEX IF NOT EXISTS idx_user_progress_topic_id ON user_progress(topic_id)",
	"CREATE INDEX IF NOT EXISTS idx_user_progress_status ON user_progress(status)",
	"CREATE INDEX IF NOT EXISTS idx_user_sessions_user_id ON user_sessions(user_id)",
	"CREATE INDEX IF NOT EXISTS idx_learning_stats_user_date ON learning_stats(user_id, date)",
	"CREATE INDEX IF NOT EXISTS idx_app_settings_category ON app_settings(category)",
}

type migration func(ctx context.Context, tx *sql.Tx) error

// migrations maps a target version to the step that upgrades from the version before it.
var migrations = map[int]migration{
	2: migrateToV2,
	3: migrateToV3,
}

func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, userSessionsTable)
	return err
}

func migrateToV3(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, learningStatsTable)
	return err
}

// initialize brings the schema to CurrentSchemaVersion in one transaction.
func (s *Store) initialize(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "begin schema transaction")
	}
	defer func() { _ = tx.Rollback() }()

	current, err := schemaVersion(ctx, tx)
	if err != nil {
		return err
	}

	switch {
	case current > CurrentSchemaVersion:
		return ErrSchemaTooNew.WithContext("found", current).WithContext("supported", CurrentSchemaVersion)
	case current == 0:
		if err := createSchema(ctx, tx); err != nil {
			return dbError(err, "create schema")
		}
		if err := s.recordVersion(ctx, tx, CurrentSchemaVersion); err != nil {
			return err
		}
		slog.Info("Created database schema", logfields.SchemaVersion(CurrentSchemaVersion))
	case current < CurrentSchemaVersion:
		for v := current + 1; v <= CurrentSchemaVersion; v++ {
			step, ok := migrations[v]
			if !ok {
				continue
			}
			slog.Info("Applying database migration", logfields.SchemaVersion(v))
			if err := step(ctx, tx); err != nil {
				return dbError(err, "apply migration").WithContext("version", v)
			}
			if err := s.recordVersion(ctx, tx, v); err != nil {
				return err
			}
		}
		slog.Info("Migrated database schema", "from", current, logfields.SchemaVersion(CurrentSchemaVersion))
	}

	for _, stmt := range indexes {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return dbError(err, "create index")
		}
	}
	if err := tx.Commit(); err != nil {
		return dbError(err, "commit schema transaction")
	}
	return nil
}

func createSchema(ctx context.Context, tx *sql.Tx) error {
	stmts := append(append([]string{}, baseTables...), userSessionsTable, learningStatsTable)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// schemaVersion returns 0 when the version table does not exist yet.
func schemaVersion(ctx context.Context, q queryer) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'").Scan(&n)
	if err != nil {
		return 0, dbError(err, "inspect schema")
	}
	if n == 0 {
		return 0, nil
	}
	var v int
	err = q.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY id DESC LIMIT 1").Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, dbError(err, "read schema version")
	}
	return v, nil
}

func (s *Store) recordVersion(ctx context.Context, tx *sql.Tx, v int) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", v, formatTime(s.now()))
	if err != nil {
		return dbError(err, "record schema version")
	}
	return nil
}
