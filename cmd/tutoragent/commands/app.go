package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/tutoragent/internal/config"
	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/database"
	"git.home.luguber.info/inful/tutoragent/internal/events"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/metrics"
	"git.home.luguber.info/inful/tutoragent/internal/progress"
	"git.home.luguber.info/inful/tutoragent/internal/settings"
)

// appOptions selects the optional collaborators a command needs.
type appOptions struct {
	database bool
	metrics  bool
	events   bool
}

// app bundles the collaborators built from configuration and user settings.
type app struct {
	cfg      *config.Config
	settings *settings.Manager
	tracker  *progress.Tracker
	content  *content.Manager
	store    *database.Store
	registry *prometheus.Registry
	pub      events.Publisher
	recorder metrics.Recorder
}

func newApp(ctx context.Context, root *CLI, o appOptions) (*app, error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create data directory").
			WithContext("path", cfg.Data.Dir).Build()
	}

	a := &app{cfg: cfg, pub: events.NoopPublisher{}, recorder: metrics.NoopRecorder{}}
	if o.database {
		if a.store, err = database.Open(ctx, cfg.Data.DatabasePath()); err != nil {
			return nil, err
		}
	}
	if o.events && cfg.Events.NATSURL != "" {
		nats, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.Events.NATSURL,
			SubjectPrefix: cfg.Events.SubjectPrefix,
			JetStream:     cfg.Events.JetStream,
		})
		if err != nil {
			slog.Warn("Event bus unavailable, continuing without events", logfields.Error(err))
		} else {
			a.pub = events.Fanout{nats}
		}
	}
	if o.metrics && cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.recorder = metrics.NewPrometheusRecorder(a.registry)
	}

	var settingsOpts []settings.Option
	if a.store != nil {
		settingsOpts = append(settingsOpts, settings.WithMirror(a.store))
	}
	settingsOpts = append(settingsOpts, settings.WithPublisher(a.pub))
	a.settings = settings.NewManager(cfg.Data.Dir, settingsOpts...)
	if err := a.settings.Load(); err != nil {
		slog.Warn("Settings could not be loaded, using fallback", logfields.Path(a.settings.Path()), logfields.Error(err))
	}

	prefs := a.settings.Settings()
	if a.tracker, err = progress.Open(cfg.Data.ProgressPath(), prefs.Learning.AutoSaveProgress); err != nil {
		a.closeQuietly()
		return nil, err
	}
	a.content = content.NewManager(a.contentOptions(prefs.Performance))
	return a, nil
}

// contentOptions merges the deployment configuration with the learner's
// performance preferences; the preferences win.
func (a *app) contentOptions(p settings.Performance) content.Options {
	cfg := a.cfg
	opts := content.DefaultOptions(cfg.Content.Dir)
	opts.CacheEnabled = cfg.Cache.Enabled && p.EnableCaching
	opts.CacheSizeMB = cfg.Cache.MaxSizeMB
	if p.CacheSizeMB > 0 {
		opts.CacheSizeMB = p.CacheSizeMB
	}
	opts.CacheTTL = cfg.Cache.TTL
	opts.ParallelLoading = cfg.Loading.Parallel && p.ParallelLoading
	opts.Workers = cfg.Loading.Workers
	if p.MaxConcurrentOperations > 0 {
		opts.Workers = p.MaxConcurrentOperations
	}
	opts.LoadTimeout = cfg.Loading.Timeout
	opts.LazyLoading = cfg.Loading.Lazy && p.LazyLoading
	opts.MaxSearchResults = cfg.Search.MaxResults
	opts.SlowThreshold = cfg.Loading.SlowThreshold
	if p.SlowOperationThresholdMS > 0 {
		opts.SlowThreshold = time.Duration(p.SlowOperationThresholdMS) * time.Millisecond
	}
	opts.Recorder = a.recorder
	opts.Publisher = a.pub
	opts.Progress = a.tracker
	return opts
}

// Close flushes progress and releases the database and event bus.
func (a *app) Close() error {
	var errs []error
	if a.content != nil {
		errs = append(errs, a.content.Close())
	}
	errs = append(errs, a.pub.Close())
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func (a *app) closeQuietly() {
	if err := a.Close(); err != nil {
		slog.Warn("Cleanup failed", logfields.Error(err))
	}
}

// requireStore reports a clear error for commands run without a database.
func (a *app) requireStore() (*database.Store, error) {
	if a.store == nil {
		return nil, ferrors.NewError(ferrors.CategoryDatabase, "database not opened").Build()
	}
	return a.store, nil
}
