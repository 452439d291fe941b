package cache

import "time"

// RegionStats describes one region's occupancy.
type RegionStats struct {
	Size        int           `json:"size"`
	MaxEntries  int           `json:"max_entries"`
	DefaultTTL  time.Duration `json:"ttl"`
	Utilization float64       `json:"utilization"` // percent of MaxEntries in use
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64                 `json:"hits"`
	Misses    uint64                 `json:"misses"`
	Evictions uint64                 `json:"evictions"`
	HitRate   float64                `json:"hit_rate"` // percent, 0 when no lookups happened
	Regions   map[Region]RegionStats `json:"regions"`
}

// Stats returns counters and per-region occupancy.
// Evictions include both capacity evictions and expiry removals.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Regions:   make(map[Region]RegionStats, len(c.regions)),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	for name, reg := range c.regions {
		s.Regions[name] = RegionStats{
			Size:        len(reg.entries),
			MaxEntries:  reg.cfg.MaxEntries,
			DefaultTTL:  reg.cfg.DefaultTTL,
			Utilization: float64(len(reg.entries)) / float64(reg.cfg.MaxEntries) * 100,
		}
	}
	return s
}

// ResetStats zeroes the hit, miss and eviction counters.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.mu.Unlock()
}
