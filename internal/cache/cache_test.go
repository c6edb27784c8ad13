package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestGetPutAndStats(t *testing.T) {
	c := New(1, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 50.0, st.HitRate, 0.001)
	assert.Equal(t, 1, st.Entries)
	assert.InDelta(t, 1.0, st.MaxMemoryMB, 0.001)
}

func TestExpiredEntryIsMissAndRemoved(t *testing.T) {
	clock := newClock()
	c := New(1, time.Minute, WithClock(clock.now))

	c.Put("k", 1)
	clock.advance(61 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	c := NewWithBytes(100, time.Minute)
	c.Put("k", strings.Repeat("x", 40))
	c.Put("k", strings.Repeat("y", 40))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
	v, _ := c.Get("k")
	assert.Equal(t, strings.Repeat("y", 40), v)
}

func TestEvictionPrefersLeastAccessedThenOldest(t *testing.T) {
	clock := newClock()
	// Each 20-char string encodes to 22 bytes; three fit in 70, four do not.
	c := NewWithBytes(70, time.Hour, WithClock(clock.now))

	c.Put("old", strings.Repeat("a", 20))
	clock.advance(time.Second)
	c.Put("hot", strings.Repeat("b", 20))
	clock.advance(time.Second)
	c.Put("new", strings.Repeat("c", 20))
	_, _ = c.Get("hot")

	clock.advance(time.Second)
	c.Put("incoming", strings.Repeat("d", 20))

	_, oldOK := c.Get("old")
	_, hotOK := c.Get("hot")
	_, newOK := c.Get("new")
	assert.False(t, oldOK, "oldest unaccessed entry should go first")
	assert.True(t, hotOK)
	assert.True(t, newOK)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestOversizedEntryEvictsEverything(t *testing.T) {
	c := NewWithBytes(30, time.Hour)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("big", strings.Repeat("z", 100))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Stats().Evictions)
}

func TestUnencodableValueUsesFallbackSize(t *testing.T) {
	assert.Equal(t, int64(fallbackEntrySize), estimateSize(make(chan int)))
}

func TestDeletePrefixPurgeAndClear(t *testing.T) {
	clock := newClock()
	c := New(1, time.Minute, WithClock(clock.now))
	c.Put("language_python", 1)
	c.Put("language_go", 2)
	c.Put("all_languages", 3)

	assert.Equal(t, 2, c.DeletePrefix("language_"))
	assert.Equal(t, 1, c.Len())

	clock.advance(2 * time.Minute)
	c.Put("fresh", 4)
	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Zero(t, c.Stats().MemoryUsageMB)
}

func TestFlushKeepsCounters(t *testing.T) {
	c := New(1, time.Minute)
	c.Put("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	c.Flush()
	st := c.Stats()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)

	c.Clear()
	assert.Zero(t, c.Stats().Hits)
}
