// Package cache provides the region-partitioned expiring cache used by the
// dashboard for API responses, module metadata, assets and decoded data.
//
// Each region has a maximum entry count and a default TTL. When a full region
// receives a new key, the entry with the oldest last access is evicted first.
// Expired entries are dropped lazily on Get and eagerly by SweepExpired.
//
// The cache is best-effort: an unknown region is a logged no-op and never an
// error, so callers must not depend on cache presence for correctness.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
)

// EvictReason labels why an entry left the cache without an explicit delete.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

// Observer receives cache events, typically to export metrics.
// Methods are called with the cache lock held and must not call back into the cache.
type Observer interface {
	Hit(region Region)
	Miss(region Region)
	Evict(region Region, reason EvictReason)
	Size(region Region, entries int)
}

// Entry is the public view of a cached value.
type Entry struct {
	Value          any
	CreatedAt      time.Time
	ExpiresAt      time.Time
	AccessCount    int64
	LastAccessedAt time.Time
}

type entry struct {
	Entry
	// touch orders entries that share a LastAccessedAt timestamp.
	touch uint64
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

type region struct {
	cfg     RegionConfig
	entries map[string]*entry
}

// Options configures a Cache.
type Options struct {
	Regions  map[Region]RegionConfig // nil = DefaultRegions()
	Clock    ports.Clock
	Logger   zerolog.Logger
	Observer Observer // optional
}

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	regions   map[Region]*region
	clock     ports.Clock
	logger    zerolog.Logger
	observer  Observer
	touch     uint64
	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache with the given region layout.
// Regions missing from opts.Regions or with invalid bounds fall back to their defaults.
func New(opts Options) *Cache {
	defaults := DefaultRegions()
	c := &Cache{
		regions:  make(map[Region]*region, len(defaults)),
		clock:    opts.Clock,
		logger:   opts.Logger.With().Str("component", "cache").Logger(),
		observer: opts.Observer,
	}
	for _, name := range Regions() {
		cfg := defaults[name]
		if custom, ok := opts.Regions[name]; ok && custom.valid() {
			cfg = custom
		}
		c.regions[name] = &region{cfg: cfg, entries: make(map[string]*entry)}
	}
	return c
}

// Set stores value under key using the region's default TTL.
// It returns false if region is unknown.
func (c *Cache) Set(r Region, key string, value any) bool {
	return c.SetWithTTL(r, key, value, 0)
}

// SetWithTTL stores value under key. A ttl <= 0 uses the region's default TTL.
// Inserting a new key into a full region first evicts the least recently
// accessed entry. Replacing an existing key never evicts.
func (c *Cache) SetWithTTL(r Region, key string, value any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		c.logger.Warn().Str("region", string(r)).Str("key", key).Msg("set on unknown cache region ignored")
		return false
	}
	if ttl <= 0 {
		ttl = reg.cfg.DefaultTTL
	}

	now := c.clock.Now()
	if existing, ok := reg.entries[key]; ok {
		existing.Value = value
		existing.CreatedAt = now
		existing.ExpiresAt = now.Add(ttl)
		existing.LastAccessedAt = now
		existing.touch = c.nextTouch()
		return true
	}

	if len(reg.entries) >= reg.cfg.MaxEntries {
		c.evictOldest(r, reg)
	}

	reg.entries[key] = &entry{
		Entry: Entry{
			Value:          value,
			CreatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			LastAccessedAt: now,
		},
		touch: c.nextTouch(),
	}
	c.notifySize(r, reg)
	return true
}

// Get returns the value stored under key and records the access.
// Expired entries are removed and reported as absent.
func (c *Cache) Get(r Region, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		c.misses++
		c.logger.Warn().Str("region", string(r)).Str("key", key).Msg("get on unknown cache region")
		return nil, false
	}

	e, ok := reg.entries[key]
	if !ok {
		c.miss(r)
		return nil, false
	}

	now := c.clock.Now()
	if e.expired(now) {
		delete(reg.entries, key)
		c.evicted(r, EvictExpired)
		c.notifySize(r, reg)
		c.miss(r)
		return nil, false
	}

	e.AccessCount++
	e.LastAccessedAt = now
	e.touch = c.nextTouch()
	c.hits++
	if c.observer != nil {
		c.observer.Hit(r)
	}
	return e.Value, true
}

// Has reports whether a live entry exists without counting or touching it.
func (c *Cache) Has(r Region, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return false
	}
	e, ok := reg.entries[key]
	return ok && !e.expired(c.clock.Now())
}

// Peek returns a copy of the entry metadata without recording an access.
func (c *Cache) Peek(r Region, key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return Entry{}, false
	}
	e, ok := reg.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// Delete removes one entry. It reports whether the key was present.
func (c *Cache) Delete(r Region, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return false
	}
	if _, ok := reg.entries[key]; !ok {
		return false
	}
	delete(reg.entries, key)
	c.notifySize(r, reg)
	return true
}

// DeletePrefix removes every entry of the region whose key starts with prefix.
func (c *Cache) DeletePrefix(r Region, prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return 0
	}
	n := 0
	for k := range reg.entries {
		if strings.HasPrefix(k, prefix) {
			delete(reg.entries, k)
			n++
		}
	}
	if n > 0 {
		c.notifySize(r, reg)
	}
	return n
}

// Clear empties one region and returns how many entries it held.
func (c *Cache) Clear(r Region) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		c.logger.Warn().Str("region", string(r)).Msg("clear on unknown cache region ignored")
		return 0
	}
	n := len(reg.entries)
	reg.entries = make(map[string]*entry)
	c.notifySize(r, reg)
	c.logger.Debug().Str("region", string(r)).Int("removed", n).Msg("cache region cleared")
	return n
}

// ClearAll empties every region and returns the total removed.
func (c *Cache) ClearAll() int {
	total := 0
	for _, r := range Regions() {
		total += c.Clear(r)
	}
	return total
}

// Len returns the number of entries stored in a region, expired or not.
func (c *Cache) Len(r Region) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if reg, ok := c.regions[r]; ok {
		return len(reg.entries)
	}
	return 0
}

// Keys returns the keys of a region in no particular order.
func (c *Cache) Keys(r Region) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(reg.entries))
	for k := range reg.entries {
		keys = append(keys, k)
	}
	return keys
}

// SweepExpired removes every expired entry from all regions.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for _, name := range Regions() {
		reg := c.regions[name]
		n := 0
		for k, e := range reg.entries {
			if e.expired(now) {
				delete(reg.entries, k)
				c.evicted(name, EvictExpired)
				n++
			}
		}
		if n > 0 {
			c.notifySize(name, reg)
		}
		removed += n
	}
	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("expired cache entries swept")
	}
	return removed
}

// Configure replaces region bounds, typically after a config reload.
// Regions that shrink are trimmed by evicting their oldest entries.
func (c *Cache) Configure(cfgs map[Region]RegionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, cfg := range cfgs {
		reg, ok := c.regions[name]
		if !ok || !cfg.valid() {
			c.logger.Warn().Str("region", string(name)).Msg("invalid cache region config ignored")
			continue
		}
		if reg.cfg == cfg {
			continue
		}
		reg.cfg = cfg
		for len(reg.entries) > cfg.MaxEntries {
			c.evictOldest(name, reg)
		}
		c.notifySize(name, reg)
		c.logger.Info().
			Str("region", string(name)).
			Int("max_entries", cfg.MaxEntries).
			Dur("ttl", cfg.DefaultTTL).
			Msg("cache region reconfigured")
	}
}

// RegionConfig returns the current bounds of a region.
func (c *Cache) RegionConfig(r Region) (RegionConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return RegionConfig{}, false
	}
	return reg.cfg, true
}

// EntryInfo describes one entry for diagnostics.
type EntryInfo struct {
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`
	Expired        bool      `json:"expired"`
}

// Info lists a region's entries, most recently accessed first.
func (c *Cache) Info(r Region) []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regions[r]
	if !ok {
		return nil
	}

	now := c.clock.Now()
	type ordered struct {
		info  EntryInfo
		touch uint64
	}
	items := make([]ordered, 0, len(reg.entries))
	for k, e := range reg.entries {
		items = append(items, ordered{
			info: EntryInfo{
				Key:            k,
				CreatedAt:      e.CreatedAt,
				ExpiresAt:      e.ExpiresAt,
				LastAccessedAt: e.LastAccessedAt,
				AccessCount:    e.AccessCount,
				Expired:        e.expired(now),
			},
			touch: e.touch,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.info.LastAccessedAt.Equal(b.info.LastAccessedAt) {
			return a.info.LastAccessedAt.After(b.info.LastAccessedAt)
		}
		return a.touch > b.touch
	})

	out := make([]EntryInfo, len(items))
	for i, it := range items {
		out[i] = it.info
	}
	return out
}

// evictOldest removes the entry with the smallest LastAccessedAt. Caller holds c.mu.
func (c *Cache) evictOldest(name Region, reg *region) {
	var (
		oldestKey string
		oldest    *entry
	)
	for k, e := range reg.entries {
		if oldest == nil ||
			e.LastAccessedAt.Before(oldest.LastAccessedAt) ||
			(e.LastAccessedAt.Equal(oldest.LastAccessedAt) && e.touch < oldest.touch) {
			oldestKey, oldest = k, e
		}
	}
	if oldest == nil {
		return
	}
	delete(reg.entries, oldestKey)
	c.evicted(name, EvictCapacity)
	c.logger.Debug().Str("region", string(name)).Str("key", oldestKey).Msg("cache entry evicted")
}

func (c *Cache) nextTouch() uint64 {
	c.touch++
	return c.touch
}

func (c *Cache) miss(r Region) {
	c.misses++
	if c.observer != nil {
		c.observer.Miss(r)
	}
}

func (c *Cache) evicted(r Region, reason EvictReason) {
	c.evictions++
	if c.observer != nil {
		c.observer.Evict(r, reason)
	}
}

func (c *Cache) notifySize(r Region, reg *region) {
	if c.observer != nil {
		c.observer.Size(r, len(reg.entries))
	}
}
