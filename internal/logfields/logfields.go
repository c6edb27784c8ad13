package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared across packages.
const (
	KeyLanguage   = "language"
	KeyTopic      = "topic"
	KeyCacheKey   = "cache_key"
	KeyOperation  = "operation"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyUserID     = "user_id"
	KeyVersion    = "schema_version"
	KeySetting    = "setting"
	KeyJob        = "job"
	KeyCount      = "count"
	KeyError      = "error"
)

func Language(key string) slog.Attr  { return slog.String(KeyLanguage, key) }
func Topic(title string) slog.Attr   { return slog.String(KeyTopic, title) }
func CacheKey(key string) slog.Attr  { return slog.String(KeyCacheKey, key) }
func Operation(op string) slog.Attr  { return slog.String(KeyOperation, op) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func UserID(id string) slog.Attr     { return slog.String(KeyUserID, id) }
func SchemaVersion(v int) slog.Attr  { return slog.Int(KeyVersion, v) }
func Setting(path string) slog.Attr  { return slog.String(KeySetting, path) }
func Job(name string) slog.Attr      { return slog.String(KeyJob, name) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration records d in milliseconds under the canonical key.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
