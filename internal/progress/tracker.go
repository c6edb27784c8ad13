// Package progress tracks per-topic completion for a learner.
//
// Tracker is the lightweight JSON-file store used by the content manager;
// UserProgress is the richer per-topic record persisted by the database layer.
package progress

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// DefaultFileName is the progress file created inside the data directory.
const DefaultFileName = "user_progress.json"

// CorruptSuffix is appended to a progress file that could not be decoded.
const CorruptSuffix = ".corrupt"

// CompletePercent marks a topic as completed.
const CompletePercent = 100

// LanguageProgress is the persisted progress for one language.
type LanguageProgress struct {
	CompletedTopics []string       `json:"completed_topics"`
	TopicProgress   map[string]int `json:"topic_progress"`
	LastAccessed    time.Time      `json:"last_accessed"`
}

// UnmarshalJSON accepts last_accessed as an RFC 3339 string or as Unix
// seconds, the format written by earlier releases.
func (lp *LanguageProgress) UnmarshalJSON(b []byte) error {
	type plain LanguageProgress
	var aux struct {
		plain
		LastAccessed json.RawMessage `json:"last_accessed"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*lp = LanguageProgress(aux.plain)
	at, err := parseAccessTime(aux.LastAccessed)
	if err != nil {
		return err
	}
	lp.LastAccessed = at
	return nil
}

func parseAccessTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var t time.Time
		err := json.Unmarshal(raw, &t)
		return t, err
	}
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, err
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}

func (lp *LanguageProgress) clone() *LanguageProgress {
	return &LanguageProgress{
		CompletedTopics: slices.Clone(lp.CompletedTopics),
		TopicProgress:   maps.Clone(lp.TopicProgress),
		LastAccessed:    lp.LastAccessed,
	}
}

// Update describes the result of a progress change.
type Update struct {
	Language       string `json:"language"`
	Topic          string `json:"topic"`
	Percent        int    `json:"percent"`
	NewlyCompleted bool   `json:"newly_completed"`
}

// Tracker keeps progress in memory and persists it as JSON. It is safe for
// concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	path     string
	autoSave bool
	data     map[string]*LanguageProgress
	now      func() time.Time
}

// Open loads the progress file at path. A missing file starts empty. A
// corrupt file is moved aside to <path>.corrupt, logged, and the tracker
// starts empty.
func Open(path string, autoSave bool) (*Tracker, error) {
	t := &Tracker{
		path:     path,
		autoSave: autoSave,
		data:     make(map[string]*LanguageProgress),
		now:      time.Now,
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read progress file").
			WithContext("path", path).Build()
	}
	if err := json.Unmarshal(raw, &t.data); err != nil {
		slog.Error("Corrupt progress file, starting fresh", logfields.Path(path), logfields.Error(err))
		t.data = make(map[string]*LanguageProgress)
		if err := os.Rename(path, path+CorruptSuffix); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "move corrupt progress file aside").
				WithContext("path", path).Build()
		}
		return t, nil
	}
	for k, lp := range t.data {
		if lp == nil {
			delete(t.data, k)
			continue
		}
		if lp.TopicProgress == nil {
			lp.TopicProgress = map[string]int{}
		}
	}
	return t, nil
}

// NewInMemory returns a tracker that never touches the filesystem.
func NewInMemory() *Tracker {
	return &Tracker{data: make(map[string]*LanguageProgress), now: time.Now}
}

// Path returns the backing file, empty for in-memory trackers.
func (t *Tracker) Path() string { return t.path }

// Update sets the completion percent of a topic. Reaching 100 records the
// topic as completed once.
func (t *Tracker) Update(language, topic string, percent int) (Update, error) {
	if percent < 0 || percent > CompletePercent {
		return Update{}, ferrors.ValidationError("progress must be between 0 and 100").
			WithContext("language", language).WithContext("topic", topic).WithContext("percent", percent).Build()
	}
	if language == "" || topic == "" {
		return Update{}, ferrors.ValidationError("language and topic are required").Build()
	}

	t.mu.Lock()
	lp, ok := t.data[language]
	if !ok {
		lp = &LanguageProgress{TopicProgress: map[string]int{}}
		t.data[language] = lp
	}
	lp.TopicProgress[topic] = percent
	lp.LastAccessed = t.now().UTC()

	u := Update{Language: language, Topic: topic, Percent: percent}
	if percent >= CompletePercent && !slices.Contains(lp.CompletedTopics, topic) {
		lp.CompletedTopics = append(lp.CompletedTopics, topic)
		u.NewlyCompleted = true
	}
	var err error
	if t.autoSave {
		err = t.saveLocked()
	}
	t.mu.Unlock()
	return u, err
}

// Completed returns the completed topic titles of a language in completion order.
func (t *Tracker) Completed(language string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if lp, ok := t.data[language]; ok {
		return slices.Clone(lp.CompletedTopics)
	}
	return nil
}

// IsCompleted reports whether topic is completed in language.
func (t *Tracker) IsCompleted(language, topic string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lp, ok := t.data[language]
	return ok && slices.Contains(lp.CompletedTopics, topic)
}

// TopicProgress returns the stored percent for a topic, 0 when unknown.
func (t *Tracker) TopicProgress(language, topic string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if lp, ok := t.data[language]; ok {
		return lp.TopicProgress[topic]
	}
	return 0
}

// Language returns a copy of one language's progress.
func (t *Tracker) Language(language string) (LanguageProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lp, ok := t.data[language]
	if !ok {
		return LanguageProgress{}, false
	}
	return *lp.clone(), true
}

// Snapshot returns a deep copy of all progress.
func (t *Tracker) Snapshot() map[string]LanguageProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]LanguageProgress, len(t.data))
	for k, lp := range t.data {
		out[k] = *lp.clone()
	}
	return out
}

// MostRecent returns the language accessed last, or "" when nothing was started.
func (t *Tracker) MostRecent() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var (
		best string
		at   time.Time
	)
	for k, lp := range t.data {
		if best == "" || lp.LastAccessed.After(at) || lp.LastAccessed.Equal(at) && k < best {
			best, at = k, lp.LastAccessed
		}
	}
	return best
}

// Reset forgets one language, or everything when language is empty.
func (t *Tracker) Reset(language string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if language == "" {
		t.data = make(map[string]*LanguageProgress)
	} else {
		delete(t.data, language)
	}
	if t.autoSave {
		return t.saveLocked()
	}
	return nil
}

// Save writes the progress file.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	if t.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode progress").Build()
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create progress directory").Build()
	}
	f, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create progress temp file").Build()
	}
	tmp := f.Name()
	werr := f.Chmod(0o644)
	if werr == nil {
		_, werr = f.Write(data)
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return ferrors.WrapError(werr, ferrors.CategoryFileSystem, "write progress file").
			WithContext("path", tmp).Build()
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "replace progress file").
			WithContext("path", t.path).Build()
	}
	return nil
}
