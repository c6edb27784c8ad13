package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tutoragent/internal/events"
)

func loadedManager(t *testing.T, opts ...Option) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(dir, opts...)
	m.now = func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	require.NoError(t, m.Load())
	return m, dir
}

func TestLoadCreatesDefaults(t *testing.T) {
	m, dir := loadedManager(t)
	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "2026-04-01T10:00:00Z", onDisk["last_updated"])
	assert.Equal(t, "1.0.0", onDisk["version"])
	assert.Equal(t, Defaults().Editor, m.Settings().Editor)
}

func TestSetGetAndPersist(t *testing.T) {
	m, dir := loadedManager(t)
	require.NoError(t, m.Set("editor.font_size", 14))
	require.NoError(t, m.Set("ui.theme", "dark"))
	require.NoError(t, m.Set("learning.preferred_languages", []any{"go"}))

	v, err := m.Get("editor.font_size")
	require.NoError(t, err)
	assert.Equal(t, float64(14), v)

	reloaded := NewManager(dir)
	require.NoError(t, reloaded.Load())
	s := reloaded.Settings()
	assert.Equal(t, 14, s.Editor.FontSize)
	assert.Equal(t, ThemeDark, s.UI.Theme)
	assert.Equal(t, []string{"go"}, s.Learning.PreferredLanguages)

	_, err = os.Stat(filepath.Join(dir, BackupFileName))
	assert.NoError(t, err, "previous file kept as backup")
}

func TestSetRejectsInvalidValues(t *testing.T) {
	m, _ := loadedManager(t)
	require.Error(t, m.Set("editor.font_size", 99))
	require.Error(t, m.Set("editor.font_size", "big"))
	require.Error(t, m.Set("ui.theme", "sepia"))
	require.Error(t, m.Set("editor.nope", 1))
	require.Error(t, m.Set("nope.font_size", 1))
	require.Error(t, m.Set("version", "2"))
	assert.Equal(t, Defaults().Editor, m.Settings().Editor)
	assert.Equal(t, ThemeLight, m.Settings().UI.Theme)

	_, err := m.Get("editor.nope")
	require.Error(t, err)
}

func TestCustomSettings(t *testing.T) {
	m, _ := loadedManager(t)
	require.NoError(t, m.Set("custom_settings.plugins.linter", "ruff"))
	v, err := m.Get("custom_settings.plugins.linter")
	require.NoError(t, err)
	assert.Equal(t, "ruff", v)
	require.Error(t, m.Set("custom_settings", "flat"))
}

func TestSubscribers(t *testing.T) {
	m, _ := loadedManager(t)
	var mu sync.Mutex
	var got []string
	record := func(tag string) ChangeFunc {
		return func(path string, value any) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+path)
		}
	}
	m.Subscribe("ui.theme", record("exact"))
	unsubscribe := m.Subscribe("ui.*", record("section"))
	m.Subscribe("ui.theme.*", record("leaf"))
	m.Subscribe("editor.*", record("other"))
	m.Subscribe("ui.theme", func(string, any) { panic("boom") })

	require.NoError(t, m.Set("ui.theme", "dark"))
	assert.Equal(t, []string{"exact:ui.theme", "section:ui.theme", "leaf:ui.theme"}, got)

	got = nil
	unsubscribe()
	require.NoError(t, m.Set("ui.theme", "auto"))
	assert.Equal(t, []string{"exact:ui.theme", "leaf:ui.theme"}, got)

	got = nil
	require.Error(t, m.Set("ui.theme", "sepia"))
	assert.Empty(t, got, "failed sets do not notify")
}

func TestReset(t *testing.T) {
	m, _ := loadedManager(t)
	require.NoError(t, m.Set("editor.font_size", 20))
	require.NoError(t, m.Set("ui.theme", "dark"))

	require.NoError(t, m.Reset("editor"))
	assert.Equal(t, 12, m.Settings().Editor.FontSize)
	assert.Equal(t, ThemeDark, m.Settings().UI.Theme)

	require.NoError(t, m.Reset(""))
	assert.Equal(t, ThemeLight, m.Settings().UI.Theme)

	require.Error(t, m.Reset("toolbar"))
}

func TestLoadFallsBackToBackup(t *testing.T) {
	m, dir := loadedManager(t)
	require.NoError(t, m.Set("editor.font_size", 16))
	require.NoError(t, m.Set("editor.font_size", 18)) // backup now holds 16
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	again := NewManager(dir)
	require.NoError(t, again.Load())
	assert.Equal(t, 16, again.Settings().Editor.FontSize)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"editor":{"font_size":2}}`), 0o644))
	m := NewManager(dir)
	require.Error(t, m.Load())
	assert.Equal(t, Defaults().Editor, m.Settings().Editor)
}

func TestExportImportFormats(t *testing.T) {
	for _, ext := range []string{".json", ".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			src, _ := loadedManager(t)
			require.NoError(t, src.Set("editor.theme", "dracula"))
			require.NoError(t, src.Set("learning.preferred_languages", []any{"go", "rust"}))
			require.NoError(t, src.Set("custom_settings.mode", "focus"))

			path := filepath.Join(t.TempDir(), "export"+ext)
			require.NoError(t, src.Export(path))

			dst, _ := loadedManager(t)
			require.NoError(t, dst.Import(path))
			s := dst.Settings()
			assert.Equal(t, EditorDracula, s.Editor.Theme)
			assert.Equal(t, []string{"go", "rust"}, s.Learning.PreferredLanguages)
			assert.Equal(t, "focus", s.CustomSettings["mode"])
		})
	}
}

func TestImportRejectsInvalidFiles(t *testing.T) {
	m, _ := loadedManager(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("ui:\n  window_width: 100\n"), 0o644))
	require.Error(t, m.Import(bad))

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("[editor]\nfont_colour = \"red\"\n"), 0o644))
	require.Error(t, m.Import(unknown))

	require.Error(t, m.Import(filepath.Join(dir, "settings.ini")))
	assert.Equal(t, DefaultUI(), m.Settings().UI)
}

func TestPartialImportKeepsDefaults(t *testing.T) {
	m, _ := loadedManager(t)
	require.NoError(t, m.Set("editor.font_size", 20))
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ui":{"theme":"dark"}}`), 0o644))
	require.NoError(t, m.Import(path))
	s := m.Settings()
	assert.Equal(t, ThemeDark, s.UI.Theme)
	assert.Equal(t, 12, s.Editor.FontSize)
}

type fakeMirror struct {
	mu     sync.Mutex
	values map[string]any
}

func (f *fakeMirror) SaveSetting(_ context.Context, category, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]any{}
	}
	f.values[category+"."+key] = value
	return nil
}

func TestMirrorAndEvents(t *testing.T) {
	mirror := &fakeMirror{}
	rec := events.NewRecorder(0)
	m, _ := loadedManager(t, WithMirror(mirror), WithPublisher(rec))

	require.NoError(t, m.Set("performance.enable_caching", false))
	assert.Equal(t, false, mirror.values["performance.enable_caching"])
	assert.Equal(t, float64(12), mirror.values["editor.font_size"])

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeSettingChanged, evs[0].Type)
	assert.Equal(t, "performance.enable_caching", evs[0].Detail)
}

func TestSummary(t *testing.T) {
	m, _ := loadedManager(t)
	sum := m.Summary()
	assert.Equal(t, "Consolas", sum["editor"]["font_family"])
	assert.Equal(t, true, sum["performance"]["caching"])
	assert.Equal(t, 30, sum["learning"]["daily_goal"])
}
