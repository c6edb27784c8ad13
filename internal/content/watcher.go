package content

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// DefaultDebounce coalesces bursts of file events, e.g. a git checkout.
const DefaultDebounce = 500 * time.Millisecond

// Invalidator drops cached content for a language key ("" for everything).
type Invalidator interface {
	Invalidate(key string)
}

// Watcher invalidates cached languages when their files change on disk.
type Watcher struct {
	dir      string
	target   Invalidator
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	all     bool
	timer   *time.Timer
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher watches the languages directory below contentDir.
func NewWatcher(contentDir string, target Invalidator, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create file watcher").Build()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      filepath.Join(contentDir, LanguagesDir),
		target:   target,
		debounce: debounce,
		fsw:      fsw,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start adds watches for the languages directory and each language directory
// and begins processing events until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "watch languages directory").
			WithContext("path", w.dir).Build()
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read languages directory").Build()
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(filepath.Join(w.dir, e.Name()))
		}
	}

	slog.Info("Watching content for changes", logfields.Path(w.dir))
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends event processing and waits for the watcher goroutine.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if err := w.fsw.Close(); err != nil {
			slog.Error("Error closing content watcher", logfields.Error(err))
		}
		w.wg.Wait()

		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) addDir(path string) {
	if err := w.fsw.Add(path); err != nil {
		slog.Warn("Cannot watch language directory", logfields.Path(path), logfields.Error(err))
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Content watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	key := parts[0]
	if strings.HasSuffix(ev.Name, "~") || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}

	if len(parts) == 1 && ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addDir(ev.Name)
		}
	}
	slog.Debug("Content change detected", logfields.Path(rel), "op", ev.Op.String())
	w.schedule(key)
}

func (w *Watcher) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if key == "." || key == "" {
		w.all = true
	} else {
		w.pending[key] = struct{}{}
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	all := w.all
	keys := make([]string, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	w.pending = make(map[string]struct{})
	w.all = false
	w.mu.Unlock()

	if all {
		w.target.Invalidate("")
		return
	}
	sort.Strings(keys)
	for _, k := range keys {
		slog.Info("Reloading changed language", logfields.Language(k))
		w.target.Invalidate(k)
	}
}
