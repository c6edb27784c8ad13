package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

// SaveSetting upserts one application setting. The value is stored as JSON
// together with a coarse type name.
func (s *Store) SaveSetting(ctx context.Context, category, key string, value any) error {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(key) == "" {
		return ferrors.ValidationError("setting category and key are required").Build()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "setting value is not serializable").
			WithContext("key", key).Build()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_settings (id, category, key, value, value_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET
			value = excluded.value, value_type = excluded.value_type, updated_at = excluded.updated_at`,
		category+"."+key, category, key, string(raw), valueType(value), formatTime(s.now()))
	if err != nil {
		return dbError(err, "save setting").WithContext("key", category+"."+key)
	}
	return nil
}

// Settings returns all settings of a category keyed by setting key. Values
// are decoded from JSON, so numbers come back as float64.
func (s *Store) Settings(ctx context.Context, category string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM app_settings WHERE category = ? ORDER BY key", category)
	if err != nil {
		return nil, dbError(err, "query settings")
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, dbError(err, "scan setting")
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, dbError(err, "decode setting").WithContext("key", key)
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate settings")
	}
	return out, nil
}

func valueType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "str"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case []any, []string:
		return "list"
	case map[string]any:
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}
