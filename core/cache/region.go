package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownRegion is returned by ParseRegion for names outside the known set.
var ErrUnknownRegion = errors.New("unknown cache region")

// Region names a partition of the cache. The set is closed.
type Region string

const (
	// RegionData holds decoded API payloads (units, users, metrics).
	RegionData Region = "data"
	// RegionModules holds module metadata and navigation lists.
	RegionModules Region = "modules"
	// RegionAssets holds module scripts and stylesheets.
	RegionAssets Region = "assets"
	// RegionAPI holds raw HTTP responses from Fetch.
	RegionAPI Region = "api"
)

// Regions returns every known region in a stable order.
func Regions() []Region {
	return []Region{RegionData, RegionModules, RegionAssets, RegionAPI}
}

// Known reports whether r is one of the known regions.
func (r Region) Known() bool {
	switch r {
	case RegionData, RegionModules, RegionAssets, RegionAPI:
		return true
	}
	return false
}

// ParseRegion converts a name into a Region.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if !r.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, s)
	}
	return r, nil
}

// RegionConfig bounds one region.
type RegionConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	DefaultTTL time.Duration `yaml:"ttl"`
}

// DefaultRegions returns the stock capacity and TTL of every region.
func DefaultRegions() map[Region]RegionConfig {
	return map[Region]RegionConfig{
		RegionData:    {MaxEntries: 100, DefaultTTL: 5 * time.Minute},
		RegionModules: {MaxEntries: 10, DefaultTTL: time.Hour},
		RegionAssets:  {MaxEntries: 50, DefaultTTL: 24 * time.Hour},
		RegionAPI:     {MaxEntries: 200, DefaultTTL: 2 * time.Minute},
	}
}

// DefaultSweepInterval is how often RunSweeper removes expired entries.
const DefaultSweepInterval = 5 * time.Minute

func (c RegionConfig) valid() bool {
	return c.MaxEntries > 0 && c.DefaultTTL > 0
}
