package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	defaultContentDir    = "content"
	defaultDataDirName   = ".tutorial_agent"
	defaultDatabase      = "data.db"
	defaultProgressFile  = "user_progress.json"
	defaultCacheSizeMB   = 100
	defaultCacheTTL      = time.Hour
	defaultWorkers       = 4
	defaultLoadTimeout   = 30 * time.Second
	defaultSlowThreshold = time.Second
	defaultMaxResults    = 20
	defaultListen        = "127.0.0.1:8085"
	defaultShutdown      = 10 * time.Second
	defaultMetricsPath   = "/metrics"
	defaultSubjectPrefix = "tutoragent"
	defaultMaxBackups    = 5
)

// DefaultDataDir returns ~/.tutorial_agent, or a relative directory when the
// home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, defaultDataDirName)
}

// Default returns a configuration with every value at its default.
func Default() *Config {
	return &Config{
		Content: ContentConfig{Dir: defaultContentDir, Watch: true},
		Data: DataConfig{
			Dir:          DefaultDataDir(),
			Database:     defaultDatabase,
			ProgressFile: defaultProgressFile,
		},
		Cache: CacheConfig{Enabled: true, MaxSizeMB: defaultCacheSizeMB, TTL: defaultCacheTTL},
		Loading: LoadingConfig{
			Parallel:      true,
			Workers:       defaultWorkers,
			Timeout:       defaultLoadTimeout,
			Lazy:          true,
			SlowThreshold: defaultSlowThreshold,
		},
		Search:  SearchConfig{MaxResults: defaultMaxResults},
		Server:  ServerConfig{Listen: defaultListen, ShutdownTimeout: defaultShutdown},
		Metrics: MetricsConfig{Enabled: true, Path: defaultMetricsPath},
		Events:  EventsConfig{SubjectPrefix: defaultSubjectPrefix},
		Schedule: ScheduleConfig{
			BackupInterval:       24 * time.Hour,
			CacheCleanupInterval: 5 * time.Minute,
			MaxBackups:           defaultMaxBackups,
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// applyDefaults fills values a YAML document explicitly blanked.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = def.Content.Dir
	}
	if cfg.Content.Source != nil && cfg.Content.Source.Branch == "" {
		cfg.Content.Source.Branch = "main"
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = def.Data.Dir
	}
	if cfg.Data.Database == "" {
		cfg.Data.Database = def.Data.Database
	}
	if cfg.Data.ProgressFile == "" {
		cfg.Data.ProgressFile = def.Data.ProgressFile
	}
	if cfg.Cache.MaxSizeMB == 0 {
		cfg.Cache.MaxSizeMB = def.Cache.MaxSizeMB
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Loading.Workers == 0 {
		cfg.Loading.Workers = def.Loading.Workers
	}
	if cfg.Loading.Timeout == 0 {
		cfg.Loading.Timeout = def.Loading.Timeout
	}
	if cfg.Loading.SlowThreshold == 0 {
		cfg.Loading.SlowThreshold = def.Loading.SlowThreshold
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = def.Search.MaxResults
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = def.Server.Listen
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = def.Metrics.Path
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = def.Events.SubjectPrefix
	}
	if cfg.Schedule.MaxBackups == 0 {
		cfg.Schedule.MaxBackups = def.Schedule.MaxBackups
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}
