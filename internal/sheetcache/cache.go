// Package sheetcache keeps the raw worksheets of a spreadsheet in memory
// for a fixed time to live, so repeated report requests do not hit the
// upstream API.
package sheetcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"evalreport/internal/evaluation"
)

// Source fetches the worksheets of a spreadsheet.
type Source interface {
	FetchTabs(ctx context.Context, spreadsheetID string) ([]evaluation.RawTab, error)
}

// Snapshot is one successful fetch. FetchedAt identifies it: two lookups
// returning the same FetchedAt returned the same tabs.
type Snapshot struct {
	SpreadsheetID string
	Tabs          []evaluation.RawTab
	FetchedAt     time.Time
}

type entry struct {
	snapshot  *Snapshot
	expiresAt time.Time
	hitCount  int
}

// Stats reports cache activity
type Stats struct {
	Entries  int           `json:"entries"`
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
	HitRatio float64       `json:"hit_ratio"`
	TTL      time.Duration `json:"ttl"`
}

// Cache is a read-through cache keyed by spreadsheet id. Expiry is
// checked on lookup. Concurrent misses for one key share a single
// upstream fetch, and failed fetches are never stored.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	lookup func(ctx context.Context, hit bool)

	mu        sync.RWMutex
	entries   map[string]entry
	hitCount  int64
	missCount int64

	group singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLookupHook is called once per Fetch with the hit/miss result.
func WithLookupHook(hook func(ctx context.Context, hit bool)) Option {
	return func(c *Cache) { c.lookup = hook }
}

// New creates a cache in front of source. A ttl <= 0 disables storage;
// concurrent fetches are still collapsed.
func New(source Source, ttl time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "sheetcache")),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached snapshot for id, fetching it from the source
// when absent or expired. The bool reports a cache hit.
func (c *Cache) Fetch(ctx context.Context, id string) (*Snapshot, bool, error) {
	if snap, ok := c.get(id); ok {
		c.record(ctx, true)
		return snap, true, nil
	}
	c.record(ctx, false)

	v, err, shared := c.group.Do(id, func() (interface{}, error) {
		if snap, ok := c.peek(id); ok {
			return snap, nil
		}

		tabs, err := c.source.FetchTabs(ctx, id)
		if err != nil {
			return nil, err
		}

		snap := &Snapshot{SpreadsheetID: id, Tabs: tabs, FetchedAt: c.now()}
		c.set(id, snap)
		return snap, nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "spreadsheet fetch failed",
			slog.String("spreadsheet_id", id),
			slog.Bool("shared", shared),
			slog.String("error", err.Error()))
		return nil, false, err
	}

	snap := v.(*Snapshot)
	c.logger.DebugContext(ctx, "spreadsheet cached",
		slog.String("spreadsheet_id", id),
		slog.Int("tabs", len(snap.Tabs)),
		slog.Bool("shared", shared))
	return snap, false, nil
}

// Invalidate drops the entry for id so the next Fetch goes upstream.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hitCount + c.missCount
	ratio := float64(0)
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}

	return Stats{
		Entries:  len(c.entries),
		Hits:     c.hitCount,
		Misses:   c.missCount,
		HitRatio: ratio,
		TTL:      c.ttl,
	}
}

func (c *Cache) get(id string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || !c.now().Before(e.expiresAt) {
		c.missCount++
		return nil, false
	}
	e.hitCount++
	c.entries[id] = e
	c.hitCount++
	return e.snapshot, true
}

// peek looks up without touching the counters.
func (c *Cache) peek(id string) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.snapshot, true
}

func (c *Cache) set(id string, snap *Snapshot) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry{snapshot: snap, expiresAt: snap.FetchedAt.Add(c.ttl)}
}

func (c *Cache) record(ctx context.Context, hit bool) {
	if c.lookup != nil {
		c.lookup(ctx, hit)
	}
}
