package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tutoragent/internal/config"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// Global is shared state passed to every command's Run.
type Global struct {
	Ctx context.Context
	Out io.Writer
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config     string           `short:"c" help:"Configuration file path" default:"tutoragent.yaml"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	LogFormat  string           `name:"log-format" help:"Log output format (text, json)" enum:"text,json" default:"text"`
	ContentDir string           `name:"content-dir" help:"Override the content directory"`
	DataDir    string           `name:"data-dir" help:"Override the user data directory"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init      InitCmd      `cmd:"" help:"Initialize a new configuration file"`
	Languages LanguagesCmd `cmd:"" help:"List available languages"`
	Show      ShowCmd      `cmd:"" help:"Show a language or one of its topics"`
	Search    SearchCmd    `cmd:"" help:"Search lesson content"`
	Progress  ProgressCmd  `cmd:"" help:"Track learning progress"`
	Stats     StatsCmd     `cmd:"" help:"Show learner and performance statistics"`
	Settings  SettingsCmd  `cmd:"" help:"Read and change user settings"`
	DB        DBCmd        `cmd:"" name:"db" help:"Manage the SQLite database"`
	Sync      SyncCmd      `cmd:"" help:"Clone or update the content repository"`
	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API with content watching and scheduled jobs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if config.LogFormat(c.LogFormat) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// LoadConfig reads the configuration file. A missing file at the default
// location is not an error: defaults apply. Directory flags override the file.
func (c *CLI) LoadConfig() (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(c.Config); errors.Is(err, os.ErrNotExist) && c.Config == config.DefaultFile {
		slog.Debug("No configuration file, using defaults", logfields.Path(c.Config))
		cfg = config.Default()
	} else {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.ContentDir != "" {
		cfg.Content.Dir = c.ContentDir
	}
	if c.DataDir != "" {
		cfg.Data.Dir = c.DataDir
	}
	c.applyLogging(cfg.Logging)
	return cfg, nil
}

// applyLogging re-creates the default logger with the configured level and
// format. Flags win over the file.
func (c *CLI) applyLogging(lc config.LoggingConfig) {
	level := lc.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if config.LogFormat(c.LogFormat) == config.LogFormatJSON || lc.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
