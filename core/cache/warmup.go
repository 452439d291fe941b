package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// WarmupItem describes one value to preload.
type WarmupItem struct {
	Region Region
	Key    string
	TTL    time.Duration // 0 = region default
	Load   func(ctx context.Context) (any, error)
}

// warmupConcurrency bounds parallel loads during Warmup.
const warmupConcurrency = 4

// Warmup loads items concurrently and stores the successful ones.
// Failures are logged and skipped. It returns how many items were stored.
func (c *Cache) Warmup(ctx context.Context, items []WarmupItem) int {
	stored := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for i, item := range items {
		g.Go(func() error {
			v, err := item.Load(gctx)
			if err != nil {
				c.logger.Warn().Err(err).
					Str("region", string(item.Region)).
					Str("key", item.Key).
					Msg("cache warmup item failed")
				return nil
			}
			stored[i] = c.SetWithTTL(item.Region, item.Key, v, item.TTL)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range stored {
		if ok {
			n++
		}
	}
	c.logger.Info().Int("loaded", n).Int("requested", len(items)).Msg("cache warmup complete")
	return n
}

// Remember returns the cached value for key or loads and stores it.
// A cached value of the wrong type is treated as a miss.
func Remember[T any](c *Cache, r Region, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, ok := c.Get(r, key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.SetWithTTL(r, key, v, ttl)
	return v, nil
}
