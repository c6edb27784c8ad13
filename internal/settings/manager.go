package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/events"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

const (
	FileName       = "settings.json"
	BackupFileName = "settings_backup.json"

	customSection = "custom_settings"
	mirrorTimeout = 5 * time.Second
)

// Mirror receives a flattened copy of the settings after every save.
// database.Store implements it.
type Mirror interface {
	SaveSetting(ctx context.Context, category, key string, value any) error
}

// ChangeFunc observes a successful Set.
type ChangeFunc func(path string, value any)

type subscriber struct {
	id int
	fn ChangeFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithMirror copies saved settings into m.
func WithMirror(m Mirror) Option { return func(mg *Manager) { mg.mirror = m } }

// WithPublisher announces changed settings on the event bus.
func WithPublisher(p events.Publisher) Option { return func(mg *Manager) { mg.pub = p } }

// Manager owns the user's settings file. It is safe for concurrent use.
type Manager struct {
	file   string
	backup string
	mirror Mirror
	pub    events.Publisher
	now    func() time.Time

	mu  sync.RWMutex
	cur Settings

	subMu  sync.Mutex
	subs   map[string][]subscriber
	nextID int
}

// NewManager manages <dir>/settings.json. Call Load before use; until then
// the defaults are in effect.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		file:   filepath.Join(dir, FileName),
		backup: filepath.Join(dir, BackupFileName),
		pub:    events.NoopPublisher{},
		now:    time.Now,
		cur:    Defaults(),
		subs:   map[string][]subscriber{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.file }

// Load reads the settings file. A missing file is created with defaults. An
// unreadable or invalid file falls back to the backup; if that fails too the
// defaults are used and the original error is returned.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := readFile(m.file)
	if errors.Is(err, os.ErrNotExist) {
		m.cur = Defaults()
		slog.Info("Creating default settings", logfields.Path(m.file))
		return m.saveLocked()
	}
	if err == nil {
		m.cur = s
		slog.Info("Settings loaded", logfields.Path(m.file))
		return nil
	}
	slog.Error("Error loading settings", logfields.Path(m.file), logfields.Error(err))

	if b, berr := readFile(m.backup); berr == nil {
		m.cur = b
		slog.Warn("Settings loaded from backup", logfields.Path(m.backup))
		return nil
	} else if !errors.Is(berr, os.ErrNotExist) {
		slog.Error("Error loading backup settings", logfields.Path(m.backup), logfields.Error(berr))
	}

	m.cur = Defaults()
	slog.Warn("Using default settings due to load error")
	return ferrors.WrapError(err, ferrors.CategorySettings, "load settings").
		WithContext("path", m.file).Build()
}

func readFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	s := Defaults()
	if err := decode(FormatJSON, data, &s); err != nil {
		return Settings{}, err
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes the current settings. The previous file is kept as the backup.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.file), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create settings directory").Build()
	}
	if prev, err := os.ReadFile(m.file); err == nil {
		if err := os.WriteFile(m.backup, prev, 0o644); err != nil {
			slog.Warn("Failed to back up settings", logfields.Path(m.backup), logfields.Error(err))
		}
	}

	m.cur.LastUpdated = m.now().Format(time.RFC3339)
	data, err := encode(FormatJSON, m.cur)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategorySettings, "encode settings").Build()
	}
	tmp := m.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write settings").Build()
	}
	if err := os.Rename(tmp, m.file); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "replace settings file").Build()
	}
	slog.Debug("Settings saved", logfields.Path(m.file))

	if m.mirror != nil {
		m.mirrorLocked()
	}
	return nil
}

// mirrorLocked copies every section key into the mirror. Failures are logged;
// the file stays authoritative.
func (m *Manager) mirrorLocked() {
	tree, err := toTree(m.cur)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	for _, section := range append(append([]string{}, Sections...), customSection) {
		values, _ := tree[section].(map[string]any)
		for key, v := range values {
			if err := m.mirror.SaveSetting(ctx, section, key, v); err != nil {
				slog.Warn("Failed to mirror setting", logfields.Setting(section+"."+key), logfields.Error(err))
				return
			}
		}
	}
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.Clone()
}

func toTree(s Settings) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	err = json.Unmarshal(raw, &tree)
	return tree, err
}

// Get returns the value at a dot path such as "editor.font_size". Numbers
// come back as float64.
func (m *Manager) Get(path string) (any, error) {
	tree, err := toTree(m.Settings())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "encode settings").Build()
	}
	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, unknownPath(path)
		}
		if cur, ok = node[part]; !ok {
			return nil, unknownPath(path)
		}
	}
	return cur, nil
}

func unknownPath(path string) error {
	return ferrors.NotFoundError("unknown setting").WithContext("path", path).Build()
}

// Set changes one setting, validates the result and saves it. On any error
// the previous settings stay in effect. Keys below custom_settings may be
// created freely; everything else must already exist.
func (m *Manager) Set(path string, value any) error {
	parts := strings.Split(path, ".")
	if path == "" || len(parts) < 2 && parts[0] != customSection {
		return unknownPath(path)
	}

	m.mu.Lock()
	tree, err := toTree(m.cur)
	if err != nil {
		m.mu.Unlock()
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode settings").Build()
	}
	if err := setPath(tree, parts, value); err != nil {
		m.mu.Unlock()
		return err
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		m.mu.Unlock()
		return ferrors.WrapError(err, ferrors.CategoryValidation, "setting value is not serializable").Build()
	}
	next := Defaults()
	if err := decode(FormatJSON, raw, &next); err != nil {
		m.mu.Unlock()
		return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid setting value").
			WithContext("path", path).Build()
	}
	next.normalize()
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		slog.Error("Rejected setting", logfields.Setting(path), logfields.Error(err))
		return err
	}

	prev := m.cur
	m.cur = next
	if err := m.saveLocked(); err != nil {
		m.cur = prev
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.notify(path, value)
	e := events.New(events.TypeSettingChanged, "", "")
	e.Detail = path
	if err := m.pub.Publish(context.Background(), e); err != nil {
		slog.Warn("Failed to publish settings change", logfields.Error(err))
	}
	return nil
}

func setPath(tree map[string]any, parts []string, value any) error {
	node := tree
	custom := parts[0] == customSection
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			if !custom {
				return unknownPath(strings.Join(parts, "."))
			}
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	last := parts[len(parts)-1]
	if _, exists := node[last]; !exists && !custom {
		return unknownPath(strings.Join(parts, "."))
	}
	if len(parts) == 1 {
		// Replacing custom_settings wholesale needs an object.
		if _, ok := value.(map[string]any); !ok {
			return ferrors.ValidationError("custom_settings must be an object").Build()
		}
	}
	node[last] = value
	return nil
}

// Subscribe registers fn for changes to path. A path ending in ".*" matches
// every setting below that prefix. The returned func removes the subscription.
func (m *Manager) Subscribe(path string, fn ChangeFunc) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs[path] = append(m.subs[path], subscriber{id: id, fn: fn})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		list := m.subs[path]
		for i, s := range list {
			if s.id == id {
				m.subs[path] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(m.subs[path]) == 0 {
			delete(m.subs, path)
		}
	}
}

func (m *Manager) notify(path string, value any) {
	keys := []string{path}
	parts := strings.Split(path, ".")
	for i := range parts {
		keys = append(keys, strings.Join(parts[:i+1], ".")+".*")
	}

	m.subMu.Lock()
	var fns []ChangeFunc
	for _, k := range keys {
		for _, s := range m.subs[k] {
			fns = append(fns, s.fn)
		}
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Settings subscriber panicked", logfields.Setting(path), "panic", r)
				}
			}()
			fn(path, value)
		}()
	}
}

// Reset restores one section to its defaults, or everything when section is
// empty, and saves.
func (m *Manager) Reset(section string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch section {
	case "":
		m.cur = Defaults()
	case "editor":
		m.cur.Editor = DefaultEditor()
	case "ui":
		m.cur.UI = DefaultUI()
	case "learning":
		m.cur.Learning = DefaultLearning()
	case "performance":
		m.cur.Performance = DefaultPerformance()
	case "security":
		m.cur.Security = DefaultSecurity()
	default:
		return ferrors.ValidationError("unknown settings section").WithContext("section", section).Build()
	}
	slog.Info("Settings reset", "section", section)
	return m.saveLocked()
}

// Export writes the current settings to path in the format its extension names.
func (m *Manager) Export(path string) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	s := m.Settings()
	s.LastUpdated = m.now().Format(time.RFC3339)
	data, err := encode(f, s)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategorySettings, "encode settings").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write settings export").Build()
	}
	slog.Info("Settings exported", logfields.Path(path))
	return nil
}

// Import replaces the current settings with a validated file and saves.
// Fields absent from the file take their defaults.
func (m *Manager) Import(path string) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read settings import").Build()
	}
	s := Defaults()
	if err := decode(f, data, &s); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "parse settings import").
			WithContext("path", path).Build()
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.cur
	m.cur = s
	if err := m.saveLocked(); err != nil {
		m.cur = prev
		return err
	}
	slog.Info("Settings imported", logfields.Path(path))
	return nil
}

// Summary returns the headline settings per section.
func (m *Manager) Summary() map[string]map[string]any {
	s := m.Settings()
	return map[string]map[string]any{
		"editor": {
			"font_family": s.Editor.FontFamily,
			"font_size":   s.Editor.FontSize,
			"theme":       string(s.Editor.Theme),
		},
		"ui": {
			"theme":      string(s.UI.Theme),
			"language":   string(s.UI.Language),
			"animations": s.UI.AnimationEnabled,
		},
		"learning": {
			"auto_save":           s.Learning.AutoSaveProgress,
			"daily_goal":          s.Learning.DailyGoalMinutes,
			"preferred_languages": s.Learning.PreferredLanguages,
		},
		"performance": {
			"caching":          s.Performance.EnableCaching,
			"cache_size":       s.Performance.CacheSizeMB,
			"parallel_loading": s.Performance.ParallelLoading,
		},
	}
}
