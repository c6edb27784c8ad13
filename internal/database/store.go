package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const backupPrefix = "backup_"

// Store is the SQLite persistence layer. It is safe for concurrent use; all
// statements share one connection, so SQLite serializes them.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and brings its schema
// up to date. Use MemoryPath for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create database directory").
				WithContext("path", path).Build()
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, dbError(err, "open database").WithContext("path", path)
	}
	// A single connection keeps :memory: databases alive and pragmas applied.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := s.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("Database opened", logfields.Path(path))
	return s, nil
}

func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(30000)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)"
	if path == MemoryPath {
		return "file::memory:?" + pragmas
	}
	return "file:" + filepath.ToSlash(path) + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

// Path returns the database location as passed to Open.
func (s *Store) Path() string { return s.path }

// Close releases the connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return dbError(err, "close database")
	}
	slog.Info("Database connections closed")
	return nil
}

// SchemaVersion reports the latest recorded schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

// Backup writes a consistent copy of the database to path. An empty path
// selects backup_YYYYMMDD_HHMMSS.db next to the database file.
func (s *Store) Backup(ctx context.Context, path string) (string, error) {
	if path == "" {
		if s.path == MemoryPath {
			return "", ErrBackupPathRequired
		}
		path = filepath.Join(filepath.Dir(s.path), BackupFileName(s.now()))
	}
	if _, err := os.Stat(path); err == nil {
		return "", ferrors.NewError(ferrors.CategoryAlreadyExists, "backup target already exists").
			WithContext("path", path).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "create backup directory").Build()
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", dbError(err, "backup database").WithContext("path", path)
	}
	slog.Info("Database backed up", logfields.Path(path))
	return path, nil
}

// BackupFileName returns the timestamped backup name for t in local time.
func BackupFileName(t time.Time) string {
	return backupPrefix + t.Local().Format("20060102_150405") + ".db"
}

// PruneBackups keeps the newest keep backups in dir and removes the rest.
// It returns the removed paths.
func (s *Store) PruneBackups(dir string, keep int) ([]string, error) {
	if dir == "" {
		dir = filepath.Dir(s.path)
	}
	matches, err := filepath.Glob(filepath.Join(dir, backupPrefix+"*.db"))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "list backups").Build()
	}
	if keep < 0 {
		keep = 0
	}
	if len(matches) <= keep {
		return nil, nil
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	var removed []string
	for _, p := range matches[keep:] {
		if err := os.Remove(p); err != nil {
			slog.Warn("Failed to remove old backup", logfields.Path(p), logfields.Error(err))
			continue
		}
		removed = append(removed, p)
	}
	slog.Info("Pruned database backups", logfields.Count(len(removed)), logfields.Path(dir))
	return removed, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	return parseTime(ns.String)
}

// encodeJSON stores nil slices and maps as their empty JSON form.
func encodeJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	if s := string(b); s != "null" {
		return s, nil
	}
	return empty, nil
}

// decodeJSON leaves out untouched for NULL or empty columns.
func decodeJSON(ns sql.NullString, out any) error {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" || ns.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), out); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// escapeLike escapes LIKE wildcards so the query matches literally with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
