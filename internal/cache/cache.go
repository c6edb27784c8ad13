// Package cache implements the size-bounded, TTL-expiring content cache.
//
// Entries are evicted by lowest access count first and oldest insertion
// second, until a new entry fits under the byte budget.
package cache

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/logfields"
	"git.home.luguber.info/inful/tutoragent/internal/metrics"
)

const (
	// DefaultMaxSizeMB is the default byte budget in megabytes.
	DefaultMaxSizeMB = 50
	// DefaultTTL is how long an entry stays valid after it is stored.
	DefaultTTL = time.Hour
	// fallbackEntrySize is charged for values that cannot be JSON encoded.
	fallbackEntrySize = 1024
)

type entry struct {
	value       any
	storedAt    time.Time
	accessCount int
	size        int64
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	HitRate       float64 `json:"hit_rate"`
	Entries       int     `json:"cache_size"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
	MaxMemoryMB   float64 `json:"max_memory_mb"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	maxBytes int64
	curBytes int64
	ttl      time.Duration

	hits, misses, evictions int64

	recorder metrics.Recorder
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithRecorder reports lookups and evictions to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache holding at most maxSizeMB megabytes, with entries
// expiring after ttl. Non-positive arguments select the defaults.
func New(maxSizeMB int, ttl time.Duration, opts ...Option) *Cache {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries:  make(map[string]*entry),
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		ttl:      ttl,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithBytes is New with an exact byte budget.
func NewWithBytes(maxBytes int64, ttl time.Duration, opts ...Option) *Cache {
	c := New(DefaultMaxSizeMB, ttl, opts...)
	if maxBytes > 0 {
		c.maxBytes = maxBytes
	}
	return c
}

// Get returns the value for key. Expired entries are removed and reported as misses.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Sub(e.storedAt) > c.ttl {
		c.removeLocked(key, e)
		ok = false
	}
	if !ok {
		c.misses++
		c.recorder.IncCacheLookup(false)
		return nil, false
	}
	e.accessCount++
	c.hits++
	c.recorder.IncCacheLookup(true)
	return e.value, true
}

// Put stores value under key, replacing any existing entry and evicting the
// least used entries until the new value fits.
func (c *Cache) Put(key string, value any) {
	size := estimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}
	for c.curBytes+size > c.maxBytes && len(c.entries) > 0 {
		c.evictOneLocked()
	}

	c.entries[key] = &entry{value: value, storedAt: c.now(), size: size}
	c.curBytes += size
	c.recorder.SetCacheBytes(c.curBytes)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many were removed.
func (c *Cache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) {
			c.removeLocked(k, e)
			n++
		}
	}
	return n
}

// PurgeExpired drops all entries older than the TTL.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			c.removeLocked(k, e)
			n++
		}
	}
	if n > 0 {
		slog.Debug("Purged expired cache entries", logfields.Count(n))
	}
	return n
}

// Flush drops all entries and keeps the hit, miss and eviction counters.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Clear drops all entries and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
	c.hits, c.misses, c.evictions = 0, 0, 0
}

func (c *Cache) flushLocked() {
	c.entries = make(map[string]*entry)
	c.curBytes = 0
	c.recorder.SetCacheBytes(0)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		HitRate:       rate,
		Entries:       len(c.entries),
		MemoryUsageMB: float64(c.curBytes) / (1024 * 1024),
		MaxMemoryMB:   float64(c.maxBytes) / (1024 * 1024),
	}
}

func (c *Cache) removeLocked(key string, e *entry) {
	delete(c.entries, key)
	c.curBytes -= e.size
}

// evictOneLocked removes the entry with the fewest accesses, breaking ties by age.
func (c *Cache) evictOneLocked() {
	var (
		victimKey string
		victim    *entry
	)
	for k, e := range c.entries {
		if victim == nil ||
			e.accessCount < victim.accessCount ||
			e.accessCount == victim.accessCount && e.storedAt.Before(victim.storedAt) {
			victimKey, victim = k, e
		}
	}
	if victim == nil {
		return
	}
	c.removeLocked(victimKey, victim)
	c.evictions++
	c.recorder.IncCacheEviction()
	slog.Debug("Evicted cache entry", logfields.CacheKey(victimKey))
}

func estimateSize(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return fallbackEntrySize
	}
	return int64(len(b))
}
