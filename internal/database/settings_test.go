package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := t.Context()

	require.NoError(t, s.SaveSetting(ctx, "ui", "theme", "dark"))
	require.NoError(t, s.SaveSetting(ctx, "ui", "font_size", 12))
	require.NoError(t, s.SaveSetting(ctx, "editor", "tab_size", 4))
	require.NoError(t, s.SaveSetting(ctx, "ui", "theme", "light"))

	ui, err := s.Settings(ctx, "ui")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "light", "font_size": float64(12)}, ui)

	var valueType string
	require.NoError(t, s.db.QueryRow("SELECT value_type FROM app_settings WHERE category = 'ui' AND key = 'font_size'").Scan(&valueType))
	assert.Equal(t, "int", valueType)

	none, err := s.Settings(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.Error(t, s.SaveSetting(ctx, "", "k", 1))
}
