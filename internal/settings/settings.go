package settings

import (
	"encoding/json"
	"fmt"
	"slices"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

// CurrentVersion is written into new settings files.
const CurrentVersion = "1.0.0"

// ThemeMode is the application color scheme.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
	ThemeAuto  ThemeMode = "auto"
)

// LanguagePreference is the UI language.
type LanguagePreference string

const (
	LanguageEnglish  LanguagePreference = "en"
	LanguageSpanish  LanguagePreference = "es"
	LanguageFrench   LanguagePreference = "fr"
	LanguageGerman   LanguagePreference = "de"
	LanguageChinese  LanguagePreference = "zh"
	LanguageJapanese LanguagePreference = "ja"
)

// EditorTheme is the code editor color scheme.
type EditorTheme string

const (
	EditorVSCodeDark  EditorTheme = "vscode_dark"
	EditorVSCodeLight EditorTheme = "vscode_light"
	EditorMonokai     EditorTheme = "monokai"
	EditorGitHub      EditorTheme = "github"
	EditorDracula     EditorTheme = "dracula"
	EditorMaterial    EditorTheme = "material"
)

var (
	themeModes        = []ThemeMode{ThemeLight, ThemeDark, ThemeAuto}
	uiLanguages       = []LanguagePreference{LanguageEnglish, LanguageSpanish, LanguageFrench, LanguageGerman, LanguageChinese, LanguageJapanese}
	editorThemes      = []EditorTheme{EditorVSCodeDark, EditorVSCodeLight, EditorMonokai, EditorGitHub, EditorDracula, EditorMaterial}
	difficultyChoices = []string{"adaptive", "beginner", "intermediate", "advanced"}
)

// Editor holds code editor options.
type Editor struct {
	FontFamily               string      `json:"font_family" yaml:"font_family" toml:"font_family"`
	FontSize                 int         `json:"font_size" yaml:"font_size" toml:"font_size"`
	Theme                    EditorTheme `json:"theme" yaml:"theme" toml:"theme"`
	ShowLineNumbers          bool        `json:"show_line_numbers" yaml:"show_line_numbers" toml:"show_line_numbers"`
	WordWrap                 bool        `json:"word_wrap" yaml:"word_wrap" toml:"word_wrap"`
	TabSize                  int         `json:"tab_size" yaml:"tab_size" toml:"tab_size"`
	AutoIndent               bool        `json:"auto_indent" yaml:"auto_indent" toml:"auto_indent"`
	HighlightCurrentLine     bool        `json:"highlight_current_line" yaml:"highlight_current_line" toml:"highlight_current_line"`
	ShowWhitespace           bool        `json:"show_whitespace" yaml:"show_whitespace" toml:"show_whitespace"`
	AutoSaveInterval         int         `json:"auto_save_interval" yaml:"auto_save_interval" toml:"auto_save_interval"`
	EnableAutoComplete       bool        `json:"enable_auto_complete" yaml:"enable_auto_complete" toml:"enable_auto_complete"`
	EnableSyntaxHighlighting bool        `json:"enable_syntax_highlighting" yaml:"enable_syntax_highlighting" toml:"enable_syntax_highlighting"`
	EnableCodeFolding        bool        `json:"enable_code_folding" yaml:"enable_code_folding" toml:"enable_code_folding"`
}

// UI holds window and presentation options.
type UI struct {
	Theme                ThemeMode          `json:"theme" yaml:"theme" toml:"theme"`
	Language             LanguagePreference `json:"language" yaml:"language" toml:"language"`
	WindowMaximized      bool               `json:"window_maximized" yaml:"window_maximized" toml:"window_maximized"`
	WindowWidth          int                `json:"window_width" yaml:"window_width" toml:"window_width"`
	WindowHeight         int                `json:"window_height" yaml:"window_height" toml:"window_height"`
	WindowX              int                `json:"window_x" yaml:"window_x" toml:"window_x"`
	WindowY              int                `json:"window_y" yaml:"window_y" toml:"window_y"`
	SidebarWidth         int                `json:"sidebar_width" yaml:"sidebar_width" toml:"sidebar_width"`
	ContentSplitterRatio float64            `json:"content_splitter_ratio" yaml:"content_splitter_ratio" toml:"content_splitter_ratio"`
	ShowWelcomeScreen    bool               `json:"show_welcome_screen" yaml:"show_welcome_screen" toml:"show_welcome_screen"`
	AnimationEnabled     bool               `json:"animation_enabled" yaml:"animation_enabled" toml:"animation_enabled"`
	NotificationEnabled  bool               `json:"notification_enabled" yaml:"notification_enabled" toml:"notification_enabled"`
	NotificationDuration int                `json:"notification_duration" yaml:"notification_duration" toml:"notification_duration"`
	AutoHideSidebar      bool               `json:"auto_hide_sidebar" yaml:"auto_hide_sidebar" toml:"auto_hide_sidebar"`
	CompactMode          bool               `json:"compact_mode" yaml:"compact_mode" toml:"compact_mode"`
}

// Learning holds progress tracking and goal options.
type Learning struct {
	AutoSaveProgress          bool     `json:"auto_save_progress" yaml:"auto_save_progress" toml:"auto_save_progress"`
	ShowProgressNotifications bool     `json:"show_progress_notifications" yaml:"show_progress_notifications" toml:"show_progress_notifications"`
	EnableAchievements        bool     `json:"enable_achievements" yaml:"enable_achievements" toml:"enable_achievements"`
	DifficultyPreference      string   `json:"difficulty_preference" yaml:"difficulty_preference" toml:"difficulty_preference"`
	PreferredLanguages        []string `json:"preferred_languages" yaml:"preferred_languages" toml:"preferred_languages"`
	ShowHints                 bool     `json:"show_hints" yaml:"show_hints" toml:"show_hints"`
	AutoAdvanceTopics         bool     `json:"auto_advance_topics" yaml:"auto_advance_topics" toml:"auto_advance_topics"`
	PracticeReminders         bool     `json:"practice_reminders" yaml:"practice_reminders" toml:"practice_reminders"`
	DailyGoalMinutes          int      `json:"daily_goal_minutes" yaml:"daily_goal_minutes" toml:"daily_goal_minutes"`
	WeeklyGoalHours           int      `json:"weekly_goal_hours" yaml:"weekly_goal_hours" toml:"weekly_goal_hours"`
	StreakTracking            bool     `json:"streak_tracking" yaml:"streak_tracking" toml:"streak_tracking"`
}

// Performance holds caching and loading options. The content manager reads
// these when it is built.
type Performance struct {
	EnableCaching               bool `json:"enable_caching" yaml:"enable_caching" toml:"enable_caching"`
	CacheSizeMB                 int  `json:"cache_size_mb" yaml:"cache_size_mb" toml:"cache_size_mb"`
	ParallelLoading             bool `json:"parallel_loading" yaml:"parallel_loading" toml:"parallel_loading"`
	LazyLoading                 bool `json:"lazy_loading" yaml:"lazy_loading" toml:"lazy_loading"`
	PreloadNextTopic            bool `json:"preload_next_topic" yaml:"preload_next_topic" toml:"preload_next_topic"`
	MaxConcurrentOperations     int  `json:"max_concurrent_operations" yaml:"max_concurrent_operations" toml:"max_concurrent_operations"`
	EnablePerformanceMonitoring bool `json:"enable_performance_monitoring" yaml:"enable_performance_monitoring" toml:"enable_performance_monitoring"`
	LogSlowOperations           bool `json:"log_slow_operations" yaml:"log_slow_operations" toml:"log_slow_operations"`
	SlowOperationThresholdMS    int  `json:"slow_operation_threshold_ms" yaml:"slow_operation_threshold_ms" toml:"slow_operation_threshold_ms"`
	MemoryCleanupInterval       int  `json:"memory_cleanup_interval" yaml:"memory_cleanup_interval" toml:"memory_cleanup_interval"`
}

// Security holds privacy and backup options.
type Security struct {
	EnableCodeValidation bool `json:"enable_code_validation" yaml:"enable_code_validation" toml:"enable_code_validation"`
	AllowNetworkAccess   bool `json:"allow_network_access" yaml:"allow_network_access" toml:"allow_network_access"`
	EnableAnalytics      bool `json:"enable_analytics" yaml:"enable_analytics" toml:"enable_analytics"`
	ShareUsageData       bool `json:"share_usage_data" yaml:"share_usage_data" toml:"share_usage_data"`
	AutoBackup           bool `json:"auto_backup" yaml:"auto_backup" toml:"auto_backup"`
	BackupIntervalHours  int  `json:"backup_interval_hours" yaml:"backup_interval_hours" toml:"backup_interval_hours"`
	MaxBackupFiles       int  `json:"max_backup_files" yaml:"max_backup_files" toml:"max_backup_files"`
	EncryptUserData      bool `json:"encrypt_user_data" yaml:"encrypt_user_data" toml:"encrypt_user_data"`
}

// Settings is the full user preference tree.
type Settings struct {
	Editor         Editor         `json:"editor" yaml:"editor" toml:"editor"`
	UI             UI             `json:"ui" yaml:"ui" toml:"ui"`
	Learning       Learning       `json:"learning" yaml:"learning" toml:"learning"`
	Performance    Performance    `json:"performance" yaml:"performance" toml:"performance"`
	Security       Security       `json:"security" yaml:"security" toml:"security"`
	Version        string         `json:"version" yaml:"version" toml:"version"`
	LastUpdated    string         `json:"last_updated" yaml:"last_updated" toml:"last_updated"`
	CustomSettings map[string]any `json:"custom_settings" yaml:"custom_settings" toml:"custom_settings"`
}

// Sections lists the resettable sections in file order.
var Sections = []string{"editor", "ui", "learning", "performance", "security"}

func DefaultEditor() Editor {
	return Editor{
		FontFamily:               "Consolas",
		FontSize:                 12,
		Theme:                    EditorVSCodeDark,
		ShowLineNumbers:          true,
		TabSize:                  4,
		AutoIndent:               true,
		HighlightCurrentLine:     true,
		AutoSaveInterval:         30,
		EnableAutoComplete:       true,
		EnableSyntaxHighlighting: true,
		EnableCodeFolding:        true,
	}
}

func DefaultUI() UI {
	return UI{
		Theme:                ThemeLight,
		Language:             LanguageEnglish,
		WindowWidth:          1400,
		WindowHeight:         900,
		WindowX:              100,
		WindowY:              100,
		SidebarWidth:         350,
		ContentSplitterRatio: 0.7,
		ShowWelcomeScreen:    true,
		AnimationEnabled:     true,
		NotificationEnabled:  true,
		NotificationDuration: 3000,
	}
}

func DefaultLearning() Learning {
	return Learning{
		AutoSaveProgress:          true,
		ShowProgressNotifications: true,
		EnableAchievements:        true,
		DifficultyPreference:      "adaptive",
		PreferredLanguages:        []string{},
		ShowHints:                 true,
		PracticeReminders:         true,
		DailyGoalMinutes:          30,
		WeeklyGoalHours:           5,
		StreakTracking:            true,
	}
}

func DefaultPerformance() Performance {
	return Performance{
		EnableCaching:            true,
		CacheSizeMB:              100,
		ParallelLoading:          true,
		LazyLoading:              true,
		PreloadNextTopic:         true,
		MaxConcurrentOperations:  4,
		LogSlowOperations:        true,
		SlowOperationThresholdMS: 1000,
		MemoryCleanupInterval:    300,
	}
}

func DefaultSecurity() Security {
	return Security{
		EnableCodeValidation: true,
		EnableAnalytics:      true,
		AutoBackup:           true,
		BackupIntervalHours:  24,
		MaxBackupFiles:       5,
	}
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		Editor:         DefaultEditor(),
		UI:             DefaultUI(),
		Learning:       DefaultLearning(),
		Performance:    DefaultPerformance(),
		Security:       DefaultSecurity(),
		Version:        CurrentVersion,
		CustomSettings: map[string]any{},
	}
}

func invalid(format string, args ...any) error {
	return ferrors.ValidationError(fmt.Sprintf(format, args...)).Build()
}

func between[T int | float64](v, lo, hi T) bool { return v >= lo && v <= hi }

func (e Editor) Validate() error {
	switch {
	case !between(e.FontSize, 8, 32):
		return invalid("font size must be between 8 and 32")
	case !between(e.TabSize, 1, 8):
		return invalid("tab size must be between 1 and 8")
	case !between(e.AutoSaveInterval, 5, 300):
		return invalid("auto-save interval must be between 5 and 300 seconds")
	case !slices.Contains(editorThemes, e.Theme):
		return invalid("unknown editor theme %q", e.Theme)
	}
	return nil
}

func (u UI) Validate() error {
	switch {
	case !between(u.WindowWidth, 800, 3840):
		return invalid("window width must be between 800 and 3840")
	case !between(u.WindowHeight, 600, 2160):
		return invalid("window height must be between 600 and 2160")
	case !between(u.SidebarWidth, 200, 500):
		return invalid("sidebar width must be between 200 and 500")
	case !between(u.ContentSplitterRatio, 0.3, 0.9):
		return invalid("content splitter ratio must be between 0.3 and 0.9")
	case !between(u.NotificationDuration, 1000, 10000):
		return invalid("notification duration must be between 1000 and 10000 ms")
	case !slices.Contains(themeModes, u.Theme):
		return invalid("unknown theme %q", u.Theme)
	case !slices.Contains(uiLanguages, u.Language):
		return invalid("unknown interface language %q", u.Language)
	}
	return nil
}

func (l Learning) Validate() error {
	switch {
	case !slices.Contains(difficultyChoices, l.DifficultyPreference):
		return invalid("difficulty preference must be one of %v", difficultyChoices)
	case !between(l.DailyGoalMinutes, 10, 480):
		return invalid("daily goal must be between 10 and 480 minutes")
	case !between(l.WeeklyGoalHours, 1, 40):
		return invalid("weekly goal must be between 1 and 40 hours")
	}
	return nil
}

func (p Performance) Validate() error {
	switch {
	case !between(p.CacheSizeMB, 10, 1000):
		return invalid("cache size must be between 10 and 1000 MB")
	case !between(p.MaxConcurrentOperations, 1, 16):
		return invalid("max concurrent operations must be between 1 and 16")
	case !between(p.SlowOperationThresholdMS, 100, 10000):
		return invalid("slow operation threshold must be between 100 and 10000 ms")
	}
	return nil
}

func (s Security) Validate() error {
	switch {
	case !between(s.BackupIntervalHours, 1, 168):
		return invalid("backup interval must be between 1 and 168 hours")
	case !between(s.MaxBackupFiles, 1, 20):
		return invalid("max backup files must be between 1 and 20")
	}
	return nil
}

// Validate checks every section in file order and reports the first problem.
func (s Settings) Validate() error {
	for _, v := range []interface{ Validate() error }{s.Editor, s.UI, s.Learning, s.Performance, s.Security} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.Learning.PreferredLanguages = slices.Clone(s.Learning.PreferredLanguages)
	if s.CustomSettings != nil {
		// Custom values are arbitrary JSON.
		raw, err := json.Marshal(s.CustomSettings)
		if err == nil {
			out.CustomSettings = map[string]any{}
			_ = json.Unmarshal(raw, &out.CustomSettings)
		}
	}
	return out
}

// normalize fills fields that decoding may leave nil.
func (s *Settings) normalize() {
	if s.Version == "" {
		s.Version = CurrentVersion
	}
	if s.CustomSettings == nil {
		s.CustomSettings = map[string]any{}
	}
	if s.Learning.PreferredLanguages == nil {
		s.Learning.PreferredLanguages = []string{}
	}
}
