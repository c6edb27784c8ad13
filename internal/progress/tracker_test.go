package progress

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

func TestUpdateMarksCompletionOnce(t *testing.T) {
	tr := NewInMemory()

	u, err := tr.Update("python", "Variables", 50)
	require.NoError(t, err)
	assert.False(t, u.NewlyCompleted)
	assert.False(t, tr.IsCompleted("python", "Variables"))

	u, err = tr.Update("python", "Variables", 100)
	require.NoError(t, err)
	assert.True(t, u.NewlyCompleted)

	u, err = tr.Update("python", "Variables", 100)
	require.NoError(t, err)
	assert.False(t, u.NewlyCompleted)

	assert.Equal(t, []string{"Variables"}, tr.Completed("python"))
	assert.Equal(t, 100, tr.TopicProgress("python", "Variables"))
	assert.Equal(t, 0, tr.TopicProgress("python", "Loops"))
}

func TestUpdateRejectsOutOfRange(t *testing.T) {
	tr := NewInMemory()
	_, err := tr.Update("python", "Variables", 101)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = tr.Update("python", "Variables", -1)
	require.Error(t, err)
}

func TestMostRecent(t *testing.T) {
	tr := NewInMemory()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	assert.Equal(t, "", tr.MostRecent())
	_, _ = tr.Update("go", "Basics", 10)
	clock = clock.Add(time.Minute)
	_, _ = tr.Update("python", "Basics", 10)
	assert.Equal(t, "python", tr.MostRecent())
}

func TestAutoSavePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	tr, err := Open(path, true)
	require.NoError(t, err)

	_, err = tr.Update("python", "Functions", 100)
	require.NoError(t, err)
	_, err = tr.Update("python", "Classes", 40)
	require.NoError(t, err)

	reloaded, err := Open(path, false)
	require.NoError(t, err)
	lp, ok := reloaded.Language("python")
	require.True(t, ok)
	assert.Equal(t, []string{"Functions"}, lp.CompletedTopics)
	assert.Equal(t, map[string]int{"Functions": 100, "Classes": 40}, lp.TopicProgress)

	require.NoError(t, reloaded.Reset("python"))
	require.NoError(t, reloaded.Save())
	again, err := Open(path, false)
	require.NoError(t, err)
	assert.Empty(t, again.Snapshot())
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tr, err := Open(path, true)
	require.NoError(t, err)
	assert.Empty(t, tr.Snapshot())

	_, err = tr.Update("go", "Intro", 10)
	require.NoError(t, err)
	kept, err := os.ReadFile(path + CorruptSuffix)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))
}

func TestNullLanguageEntryIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	body := `{"python": null, "go": {"completed_topics": ["Intro"], "topic_progress": null}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tr, err := Open(path, true)
	require.NoError(t, err)
	_, ok := tr.Language("python")
	assert.False(t, ok)
	assert.Equal(t, []string{"Intro"}, tr.Completed("go"))

	_, err = tr.Update("python", "Basics", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, tr.TopicProgress("python", "Basics"))
}

func TestLoadsEpochLastAccessed(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	body := `{"python": {"completed_topics": ["Basics"], "topic_progress": {"Basics": 100}, "last_accessed": 1700000000.5}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tr, err := Open(path, true)
	require.NoError(t, err)
	lp, ok := tr.Language("python")
	require.True(t, ok)
	assert.Equal(t, time.Unix(1700000000, int64(500*time.Millisecond)).UTC(), lp.LastAccessed)

	_, err = tr.Update("go", "Intro", 10)
	require.NoError(t, err)
	reloaded, err := Open(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Basics"}, reloaded.Completed("python"))
	assert.NoFileExists(t, path+CorruptSuffix)
}

func TestConcurrentSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	tr, err := Open(path, false)
	require.NoError(t, err)
	_, err = tr.Update("python", "Basics", 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- tr.Save()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	reloaded, err := Open(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Basics"}, reloaded.Completed("python"))
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewInMemory()
	_, _ = tr.Update("go", "Basics", 100)
	snap := tr.Snapshot()
	lp := snap["go"]
	lp.CompletedTopics[0] = "mutated"
	assert.Equal(t, []string{"Basics"}, tr.Completed("go"))
}
