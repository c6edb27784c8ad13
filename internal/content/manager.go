package content

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tutoragent/internal/cache"
	"git.home.luguber.info/inful/tutoragent/internal/events"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/metrics"
	"git.home.luguber.info/inful/tutoragent/internal/progress"
)

const (
	allLanguagesKey   = "all_languages"
	languageKeyPrefix = "language_"
	searchIndexKey    = "search_index"

	defaultWorkers         = 4
	defaultLoadTimeout     = 30 * time.Second
	defaultMaxResults      = 20
	defaultRecommendations = 5
)

// ErrLanguageNotFound is returned when no language matches a lookup.
var ErrLanguageNotFound = ferrors.NotFoundError("language not found").Build()

// ErrTopicNotFound is returned when a language has no topic with the given title.
var ErrTopicNotFound = ferrors.NotFoundError("topic not found").Build()

// Options configures a Manager.
type Options struct {
	ContentDir       string
	CacheEnabled     bool
	CacheSizeMB      int
	CacheTTL         time.Duration
	ParallelLoading  bool
	Workers          int
	LoadTimeout      time.Duration
	LazyLoading      bool
	MaxSearchResults int
	SlowThreshold    time.Duration

	Recorder  metrics.Recorder
	Publisher events.Publisher
	Progress  *progress.Tracker
}

// DefaultOptions returns the standard configuration for a content directory.
func DefaultOptions(contentDir string) Options {
	return Options{
		ContentDir:       contentDir,
		CacheEnabled:     true,
		CacheSizeMB:      cache.DefaultMaxSizeMB,
		CacheTTL:         cache.DefaultTTL,
		ParallelLoading:  true,
		Workers:          defaultWorkers,
		LoadTimeout:      defaultLoadTimeout,
		LazyLoading:      true,
		MaxSearchResults: defaultMaxResults,
		SlowThreshold:    metrics.DefaultSlowThreshold,
	}
}

// Manager loads, caches and searches lesson content and tracks progress on it.
type Manager struct {
	opts    Options
	loader  *Loader
	cache   *cache.Cache
	monitor *metrics.Monitor
	tracker *progress.Tracker
	pub     events.Publisher
	rec     metrics.Recorder

	caching atomic.Bool

	// loadMu serializes loads so concurrent callers share one directory scan.
	loadMu sync.Mutex
	mu     sync.RWMutex
	langs  []Language
	loaded bool
}

// NewManager creates a Manager. Zero-valued numeric options fall back to defaults.
func NewManager(opts Options) *Manager {
	def := DefaultOptions(opts.ContentDir)
	opts.Workers = cmp.Or(opts.Workers, def.Workers)
	opts.LoadTimeout = cmp.Or(opts.LoadTimeout, def.LoadTimeout)
	opts.MaxSearchResults = cmp.Or(opts.MaxSearchResults, def.MaxSearchResults)
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Progress == nil {
		opts.Progress = progress.NewInMemory()
	}

	m := &Manager{
		opts:    opts,
		loader:  NewLoader(opts.ContentDir),
		cache:   cache.New(opts.CacheSizeMB, opts.CacheTTL, cache.WithRecorder(opts.Recorder)),
		monitor: metrics.NewMonitor(opts.SlowThreshold, opts.Recorder),
		tracker: opts.Progress,
		pub:     opts.Publisher,
		rec:     opts.Recorder,
	}
	m.caching.Store(opts.CacheEnabled)
	return m
}

// Loader exposes the underlying filesystem loader.
func (m *Manager) Loader() *Loader { return m.loader }

// Cache exposes the content cache for maintenance jobs.
func (m *Manager) Cache() *cache.Cache { return m.cache }

// Monitor exposes the operation timing table.
func (m *Manager) Monitor() *metrics.Monitor { return m.monitor }

// Progress exposes the progress tracker.
func (m *Manager) Progress() *progress.Tracker { return m.tracker }

// SetCachingEnabled switches the cache on or off at runtime. Turning it off
// drops every cached entry.
func (m *Manager) SetCachingEnabled(enabled bool) {
	if prev := m.caching.Swap(enabled); prev == enabled {
		return
	}
	if !enabled {
		m.cache.Clear()
	}
	slog.Info("Content caching toggled", "enabled", enabled)
}

// Preload loads all content immediately, for non-lazy startups.
func (m *Manager) Preload(ctx context.Context) error {
	_, err := m.Languages(ctx)
	return err
}

// Languages returns all loaded languages ordered by key. The returned values
// share topic slices with the cache; callers must not modify them.
func (m *Manager) Languages(ctx context.Context) (langs []Language, err error) {
	if m.caching.Load() {
		if v, ok := m.cache.Get(allLanguagesKey); ok {
			return v.([]Language), nil
		}
	} else if snapshot, ok := m.snapshot(); ok {
		return snapshot, nil
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	// Another caller may have finished loading while we waited.
	if m.caching.Load() {
		if v, ok := m.cache.Get(allLanguagesKey); ok {
			return v.([]Language), nil
		}
	} else if snapshot, ok := m.snapshot(); ok {
		return snapshot, nil
	}

	defer m.monitor.Track("load_languages")(&err)
	langs, err = m.load(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.langs, m.loaded = langs, true
	m.mu.Unlock()
	if m.caching.Load() {
		m.cache.Put(allLanguagesKey, langs)
	}
	m.cache.Delete(searchIndexKey)
	m.rec.SetLanguagesLoaded(len(langs))
	return langs, nil
}

func (m *Manager) snapshot() ([]Language, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.langs, m.loaded
}

func (m *Manager) load(ctx context.Context) ([]Language, error) {
	keys, err := m.loader.LanguageKeys()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.LoadTimeout)
	defer cancel()

	results := make([]*Language, len(keys))
	if m.opts.ParallelLoading && len(keys) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.opts.Workers)
		for i, key := range keys {
			g.Go(func() error {
				results[i] = m.loadOne(gctx, key)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, key := range keys {
			results[i] = m.loadOne(ctx, key)
		}
	}

	if err := ctx.Err(); err != nil {
		slog.Warn("Content load did not finish in time", logfields.Error(err))
	}

	langs := make([]Language, 0, len(keys))
	for _, l := range results {
		if l != nil {
			langs = append(langs, *l)
		}
	}
	slog.Info("Loaded languages", logfields.Count(len(langs)), logfields.Path(m.loader.LanguagesPath()))
	return langs, nil
}

// loadOne returns nil when the language cannot be loaded; the failure is logged.
func (m *Manager) loadOne(ctx context.Context, key string) *Language {
	cacheKey := languageKeyPrefix + key
	if m.caching.Load() {
		if v, ok := m.cache.Get(cacheKey); ok {
			l := v.(Language)
			return &l
		}
	}
	if ctx.Err() != nil {
		return nil
	}

	var err error
	done := m.monitor.Track("load_language")
	lang, err := m.loader.LoadLanguage(ctx, key)
	done(&err)
	if err != nil {
		slog.Error("Failed to load language", logfields.Language(key), logfields.Error(err))
		return nil
	}
	if m.caching.Load() {
		m.cache.Put(cacheKey, lang)
	}
	return &lang
}

// Invalidate drops cached content for one language key, or everything when
// key is empty. The next access reloads from disk.
func (m *Manager) Invalidate(key string) {
	if key == "" {
		m.cache.Flush()
	} else {
		m.cache.Delete(languageKeyPrefix + key)
		m.cache.Delete(allLanguagesKey)
		m.cache.Delete(searchIndexKey)
	}
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
	slog.Debug("Content cache invalidated", logfields.Language(key))
	if err := m.pub.Publish(context.Background(), events.New(events.TypeContentReload, key, "")); err != nil {
		slog.Warn("Failed to publish reload event", logfields.Error(err))
	}
}

// Language finds a language by case-insensitive name or key, falling back to
// the first partial match in key order.
func (m *Manager) Language(ctx context.Context, name string) (lang Language, err error) {
	defer m.monitor.Track("get_language")(&err)

	langs, err := m.Languages(ctx)
	if err != nil {
		return Language{}, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Language{}, ferrors.ValidationError("language name is required").Build()
	}
	for _, l := range langs {
		if strings.ToLower(l.Name) == needle || strings.ToLower(l.Key) == needle {
			return l, nil
		}
	}
	for _, l := range langs {
		if strings.Contains(strings.ToLower(l.Name), needle) || strings.Contains(strings.ToLower(l.Key), needle) {
			return l, nil
		}
	}
	return Language{}, ErrLanguageNotFound.WithContext("language", name)
}

// Topic finds a topic of a language by case-insensitive title.
func (m *Manager) Topic(ctx context.Context, language, title string) (Topic, error) {
	lang, err := m.Language(ctx, language)
	if err != nil {
		return Topic{}, err
	}
	if t, ok := lang.TopicByTitle(title); ok {
		return t, nil
	}
	return Topic{}, ErrTopicNotFound.WithContext("language", lang.Key).WithContext("topic", title)
}

// UpdateTopicProgress records completion for a topic and publishes the change.
func (m *Manager) UpdateTopicProgress(ctx context.Context, language, title string, percent int) (u progress.Update, err error) {
	defer m.monitor.Track("update_progress")(&err)

	lang, err := m.Language(ctx, language)
	if err != nil {
		return progress.Update{}, err
	}
	topic, ok := lang.TopicByTitle(title)
	if !ok {
		return progress.Update{}, ErrTopicNotFound.WithContext("language", lang.Key).WithContext("topic", title)
	}

	u, err = m.tracker.Update(lang.Key, topic.Title, percent)
	if err != nil {
		return u, err
	}
	m.rec.IncProgressUpdate(lang.Key, u.NewlyCompleted)

	m.publish(ctx, events.New(events.TypeTopicProgress, lang.Key, topic.Title).WithProgress(percent))
	if u.NewlyCompleted {
		m.publish(ctx, events.New(events.TypeTopicCompleted, lang.Key, topic.Title).WithProgress(percent))
	}
	return u, nil
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if err := m.pub.Publish(ctx, e); err != nil {
		slog.Warn("Failed to publish event", "type", string(e.Type), logfields.Error(err))
	}
}

// ProgressStats summarizes progress through one language.
type ProgressStats struct {
	Language                  string  `json:"language"`
	TotalTopics               int     `json:"total_topics"`
	CompletedTopics           int     `json:"completed_topics"`
	CompletionPercentage      float64 `json:"completion_percentage"`
	EstimatedMinutesRemaining int     `json:"estimated_time_remaining"`
}

func (m *Manager) ProgressStats(ctx context.Context, language string) (ProgressStats, error) {
	lang, err := m.Language(ctx, language)
	if err != nil {
		return ProgressStats{}, err
	}
	completed := m.tracker.Completed(lang.Key)
	st := ProgressStats{Language: lang.Key, TotalTopics: len(lang.Topics), CompletedTopics: len(completed)}
	if st.TotalTopics > 0 {
		st.CompletionPercentage = float64(st.CompletedTopics) / float64(st.TotalTopics) * 100
	}
	for _, t := range lang.Topics {
		if !slices.Contains(completed, t.Title) {
			st.EstimatedMinutesRemaining += t.EstimatedDurationMinutes
		}
	}
	return st, nil
}

// Recommendation is a suggested next topic.
type Recommendation struct {
	Type             string     `json:"type"`
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Difficulty       Difficulty `json:"difficulty"`
	EstimatedMinutes int        `json:"estimated_time"`
	Reason           string     `json:"reason"`
}

// Recommendations lists uncompleted topics whose prerequisites are all
// completed, in course order. limit <= 0 selects the default of 5.
func (m *Manager) Recommendations(ctx context.Context, language string, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = defaultRecommendations
	}
	lang, err := m.Language(ctx, language)
	if err != nil {
		return nil, err
	}
	completed := m.tracker.Completed(lang.Key)

	var out []Recommendation
	for _, t := range lang.Topics {
		if len(out) == limit {
			break
		}
		if slices.Contains(completed, t.Title) {
			continue
		}
		ready := true
		for _, pre := range t.Prerequisites {
			if !slices.Contains(completed, pre) {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		out = append(out, Recommendation{
			Type:             "topic",
			ID:               strings.ReplaceAll(strings.ToLower(t.Title), " ", "_"),
			Title:            t.Title,
			Description:      t.Description,
			Difficulty:       t.Difficulty,
			EstimatedMinutes: t.EstimatedDurationMinutes,
			Reason:           "Next in learning path",
		})
	}
	return out, nil
}

// Statistics is the learner-wide summary.
type Statistics struct {
	TotalLanguages          int                      `json:"total_languages"`
	LanguagesStarted        int                      `json:"languages_started"`
	TotalTopicsCompleted    int                      `json:"total_topics_completed"`
	TotalProgressPercentage float64                  `json:"total_progress_percentage"`
	MostRecentLanguage      string                   `json:"most_recent_language,omitempty"`
	Cache                   cache.Stats              `json:"cache_stats"`
	Performance             []metrics.OperationStats `json:"performance_stats"`
}

func (m *Manager) Statistics(ctx context.Context) (Statistics, error) {
	langs, err := m.Languages(ctx)
	if err != nil {
		return Statistics{}, err
	}
	snap := m.tracker.Snapshot()
	st := Statistics{
		TotalLanguages:     len(langs),
		LanguagesStarted:   len(snap),
		MostRecentLanguage: m.tracker.MostRecent(),
		Cache:              m.cache.Stats(),
		Performance:        m.monitor.Stats(),
	}
	totalTopics := 0
	for _, l := range langs {
		totalTopics += len(l.Topics)
	}
	for _, lp := range snap {
		st.TotalTopicsCompleted += len(lp.CompletedTopics)
	}
	if totalTopics > 0 {
		st.TotalProgressPercentage = float64(st.TotalTopicsCompleted) / float64(totalTopics) * 100
	}
	return st, nil
}

// Close releases cached content and flushes progress.
func (m *Manager) Close() error {
	m.cache.Clear()
	return m.tracker.Save()
}
