package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/database"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/metrics"
)

// Job names registered by the daemon.
const (
	JobBackup      = "database-backup"
	JobCachePurge  = "cache-purge"
	JobContentSync = "content-sync"
)

// Backupper is implemented by *database.Store.
type Backupper interface {
	Backup(ctx context.Context, path string) (string, error)
	PruneBackups(dir string, keep int) ([]string, error)
}

// BackupJob writes a timestamped backup into dir and keeps the newest keep.
func BackupJob(db Backupper, dir string, keep int, rec metrics.Recorder, now func() time.Time) Task {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		path, err := db.Backup(ctx, filepath.Join(dir, database.BackupFileName(now())))
		rec.IncBackup(err == nil)
		if err != nil {
			return err
		}
		if _, err := db.PruneBackups(dir, keep); err != nil {
			slog.Warn("Backup pruning failed", logfields.Path(dir), logfields.Error(err))
		}
		slog.Info("Scheduled backup written", logfields.Path(path))
		return nil
	}
}

// Purger is implemented by *cache.Cache.
type Purger interface {
	PurgeExpired() int
}

// CachePurgeJob drops expired cache entries.
func CachePurgeJob(c Purger) Task {
	return func(context.Context) error {
		c.PurgeExpired()
		return nil
	}
}

// Syncer pulls new content; changed reports whether anything arrived.
type Syncer interface {
	Sync(ctx context.Context) (changed bool, err error)
}

// SyncFunc adapts a function to Syncer.
type SyncFunc func(ctx context.Context) (bool, error)

func (f SyncFunc) Sync(ctx context.Context) (bool, error) { return f(ctx) }

// Invalidator drops cached content; "" means everything.
type Invalidator interface {
	Invalidate(key string)
}

// ContentSyncJob pulls the content repository and invalidates the content
// cache when it changed.
func ContentSyncJob(s Syncer, target Invalidator) Task {
	return func(ctx context.Context) error {
		changed, err := s.Sync(ctx)
		if err != nil {
			return err
		}
		if changed {
			target.Invalidate("")
		}
		return nil
	}
}
