package scheduler

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/tutoragent/internal/cache"
	"git.home.luguber.info/inful/tutoragent/internal/database"
)

func TestSchedulerRunsJobsUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New()
	require.NoError(t, err)

	var ok, failing atomic.Int32
	require.NoError(t, s.AddInterval("ok", 20*time.Millisecond, true, func(context.Context) error {
		ok.Add(1)
		return nil
	}))
	require.NoError(t, s.AddInterval("failing", 20*time.Millisecond, true, func(context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	}))

	s.Start()
	require.Eventually(t, func() bool { return ok.Load() >= 2 && failing.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())

	byName := map[string]JobStatus{}
	for _, st := range s.Status() {
		byName[st.Name] = st
	}
	assert.GreaterOrEqual(t, byName["ok"].Runs, 2)
	assert.Zero(t, byName["ok"].Failures)
	assert.GreaterOrEqual(t, byName["failing"].Failures, 1)
	assert.Equal(t, "boom", byName["failing"].LastError)
}

func TestAddIntervalValidation(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer func() { _ = s.Stop() }()

	noop := func(context.Context) error { return nil }
	require.Error(t, s.AddInterval("zero", 0, false, noop))
	require.NoError(t, s.AddInterval("once", time.Hour, false, noop))
	require.Error(t, s.AddInterval("once", time.Hour, false, noop))
}

func TestBackupJob(t *testing.T) {
	ctx := t.Context()
	store, err := database.Open(ctx, database.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	var tick int
	now := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	job := BackupJob(store, dir, 2, nil, now)
	for range 3 {
		require.NoError(t, job(ctx))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, database.BackupFileName(base.Add(2*time.Second)), entries[0].Name())
	assert.Equal(t, database.BackupFileName(base.Add(3*time.Second)), entries[1].Name())
}

func TestCachePurgeJob(t *testing.T) {
	now := time.Now()
	c := cache.New(1, time.Minute, cache.WithClock(func() time.Time { return now }))
	c.Put("a", "x")
	now = now.Add(2 * time.Minute)

	require.NoError(t, CachePurgeJob(c)(t.Context()))
	assert.Zero(t, c.Len())
}

type recordingInvalidator []string

func (r *recordingInvalidator) Invalidate(key string) { *r = append(*r, key) }

func TestContentSyncJob(t *testing.T) {
	var inv recordingInvalidator
	changed := false
	job := ContentSyncJob(SyncFunc(func(context.Context) (bool, error) { return changed, nil }), &inv)

	require.NoError(t, job(t.Context()))
	assert.Empty(t, inv)

	changed = true
	require.NoError(t, job(t.Context()))
	assert.Equal(t, recordingInvalidator{""}, inv)

	failing := ContentSyncJob(SyncFunc(func(context.Context) (bool, error) { return false, errors.New("offline") }), &inv)
	require.Error(t, failing(t.Context()))
}
