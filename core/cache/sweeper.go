package cache

import (
	"context"
	"time"
)

// RunSweeper calls SweepExpired every interval until ctx is done.
// A non-positive interval uses DefaultSweepInterval.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", interval).Msg("cache sweeper started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("cache sweeper stopped")
			return
		case <-ticker.C:
			c.SweepExpired()
		}
	}
}
