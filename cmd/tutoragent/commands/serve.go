package commands

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/content"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/metrics"
	"git.home.luguber.info/inful/tutoragent/internal/scheduler"
	"git.home.luguber.info/inful/tutoragent/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen  string `short:"l" help:"Listen address (overrides server.listen)"`
	NoWatch bool   `name:"no-watch" help:"Do not watch the content directory"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(g.Ctx, root, appOptions{database: true, metrics: true, events: true})
	if err != nil {
		return err
	}
	defer a.closeQuietly()
	return RunServe(g.Ctx, a, s)
}

func RunServe(ctx context.Context, a *app, s *ServeCmd) error {
	cfg := a.cfg
	slog.Info("Starting tutoragent server", logfields.Path(cfg.Content.Dir))

	unsubscribe := watchPerformanceSettings(a)
	defer unsubscribe()

	if !cfg.Loading.Lazy {
		if err := a.content.Preload(ctx); err != nil {
			return err
		}
	}

	if cfg.Content.Watch && !s.NoWatch {
		w, err := content.NewWatcher(cfg.Content.Dir, a.content, content.DefaultDebounce)
		if err != nil {
			return err
		}
		defer w.Stop()
		if err := w.Start(ctx); err != nil {
			slog.Warn("Content watching disabled", logfields.Error(err))
		}
	}

	sched, err := buildScheduler(a)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	opts := server.Options{
		Addr:            cfg.Server.Listen,
		Content:         a.content,
		Settings:        a.settings,
		MetricsPath:     cfg.Metrics.Path,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if s.Listen != "" {
		opts.Addr = s.Listen
	}
	if a.registry != nil {
		opts.Metrics = metrics.HTTPHandler(a.registry)
	}
	err = server.New(opts).Run(ctx)
	slog.Info("tutoragent server stopped")
	return err
}

func buildScheduler(a *app) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, err
	}
	if err := registerJobs(sched, a); err != nil {
		_ = sched.Stop()
		return nil, err
	}
	return sched, nil
}

func registerJobs(sched *scheduler.Scheduler, a *app) error {
	cfg := a.cfg
	prefs := a.settings.Settings()
	if cfg.Schedule.BackupInterval > 0 && prefs.Security.AutoBackup && a.store != nil {
		job := scheduler.BackupJob(a.store, cfg.Data.BackupPath(), cfg.Schedule.MaxBackups, a.recorder, time.Now)
		if err := sched.AddInterval(scheduler.JobBackup, cfg.Schedule.BackupInterval, false, job); err != nil {
			return err
		}
	}
	if cfg.Schedule.CacheCleanupInterval > 0 {
		job := scheduler.CachePurgeJob(a.content.Cache())
		if err := sched.AddInterval(scheduler.JobCachePurge, cfg.Schedule.CacheCleanupInterval, false, job); err != nil {
			return err
		}
	}
	if cfg.Schedule.ContentSyncInterval > 0 {
		syncer, err := newSyncer(cfg)
		if err != nil {
			return err
		}
		job := scheduler.ContentSyncJob(scheduler.SyncFunc(syncFunc(syncer)), a.content)
		return sched.AddInterval(scheduler.JobContentSync, cfg.Schedule.ContentSyncInterval, true, job)
	}
	return nil
}

// watchPerformanceSettings applies live performance preference changes to the
// content manager.
func watchPerformanceSettings(a *app) func() {
	offCaching := a.settings.Subscribe("performance.enable_caching", func(_ string, v any) {
		if enabled, ok := v.(bool); ok {
			a.content.SetCachingEnabled(enabled)
		}
	})
	offThreshold := a.settings.Subscribe("performance.slow_operation_threshold_ms", func(_ string, v any) {
		if ms, ok := number(v); ok {
			a.content.Monitor().SetSlowThreshold(time.Duration(ms) * time.Millisecond)
		}
	})
	return func() {
		offCaching()
		offThreshold()
	}
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
