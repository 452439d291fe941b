package loader

import (
	"context"
	"fmt"

	"github.com/DromeProduto/DromeBoard/core/cache"
)

// AssetSource fetches module scripts and stylesheets by location.
type AssetSource interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// AssetStore memoizes an AssetSource in the assets cache region.
// It is shared by every Loader of the process.
type AssetStore struct {
	cache  *cache.Cache
	source AssetSource
}

// NewAssetStore wraps src with c.
func NewAssetStore(c *cache.Cache, src AssetSource) *AssetStore {
	return &AssetStore{cache: c, source: src}
}

// Get returns the asset at location, from cache when possible.
func (s *AssetStore) Get(ctx context.Context, location string) ([]byte, error) {
	key := assetKey(location)
	if v, ok := s.cache.Get(cache.RegionAssets, key); ok {
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}

	b, err := s.source.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", location, err)
	}
	s.cache.Set(cache.RegionAssets, key, b)
	return b, nil
}

// Forget drops a cached asset so the next Get refetches it.
func (s *AssetStore) Forget(location string) bool {
	return s.cache.Delete(cache.RegionAssets, assetKey(location))
}

func assetKey(location string) string {
	return "asset:" + location
}
