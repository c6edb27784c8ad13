package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "tutoragent.yaml"

// Config is the deployment configuration of tutoragent.
type Config struct {
	Content  ContentConfig  `yaml:"content"`
	Data     DataConfig     `yaml:"data"`
	Cache    CacheConfig    `yaml:"cache"`
	Loading  LoadingConfig  `yaml:"loading"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ContentConfig locates the lesson content.
type ContentConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
	// Source, when set, is a git repository cloned into Dir by `sync`.
	Source *SourceConfig `yaml:"source,omitempty"`
}

// SourceConfig describes the git repository holding lesson content.
type SourceConfig struct {
	URL      string `yaml:"url"`
	Branch   string `yaml:"branch,omitempty"`
	Username string `yaml:"username,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// DataConfig holds user data locations. Relative file names resolve against Dir.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	Database     string `yaml:"database"`
	ProgressFile string `yaml:"progress_file"`
	BackupDir    string `yaml:"backup_dir,omitempty"`
}

// DatabasePath returns the SQLite database location.
func (d DataConfig) DatabasePath() string { return d.resolve(d.Database) }

// ProgressPath returns the JSON progress file location.
func (d DataConfig) ProgressPath() string { return d.resolve(d.ProgressFile) }

// BackupPath returns the directory database backups are written to.
func (d DataConfig) BackupPath() string {
	if d.BackupDir == "" {
		return filepath.Join(d.Dir, "backups")
	}
	return d.resolve(d.BackupDir)
}

func (d DataConfig) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	MaxSizeMB int           `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

type LoadingConfig struct {
	Parallel      bool          `yaml:"parallel"`
	Workers       int           `yaml:"workers"`
	Timeout       time.Duration `yaml:"timeout"`
	Lazy          bool          `yaml:"lazy"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

type SearchConfig struct {
	MaxResults int `yaml:"max_results"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig enables publishing progress events to NATS. An empty URL
// disables the bus.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	JetStream     bool   `yaml:"jetstream"`
}

// ScheduleConfig drives the periodic jobs of `serve`. Zero intervals disable a job.
type ScheduleConfig struct {
	BackupInterval       time.Duration `yaml:"backup_interval"`
	CacheCleanupInterval time.Duration `yaml:"cache_cleanup_interval"`
	ContentSyncInterval  time.Duration `yaml:"content_sync_interval"`
	MaxBackups           int           `yaml:"max_backups"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads the configuration file at path. Environment files are loaded
// first and ${VAR} references in the YAML are expanded. Defaults fill
// unset values and the result is validated.
func Load(path string) (*Config, error) {
	if loaded := loadEnvFiles(); len(loaded) > 0 {
		slog.Debug("Loaded environment files", "files", loaded)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", path).Build()
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read config file").
			WithContext("path", path).Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "load configuration").
			WithContext("path", path).Build()
	}
	slog.Debug("Configuration loaded", logfields.Path(path))
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse configuration").Build()
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file. An existing file is kept
// unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.NewError(ferrors.CategoryAlreadyExists, "configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}

	example := Default()
	example.Content.Source = &SourceConfig{
		URL:    "https://github.com/example/tutorial-content.git",
		Branch: "main",
		Token:  "${TUTORAGENT_CONTENT_TOKEN}",
	}
	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode example configuration").Build()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create config directory").Build()
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write config file").
			WithContext("path", path).Build()
	}
	slog.Info("Example configuration written", logfields.Path(path))
	return nil
}
