package loader_test

import (
	"context"
	"testing"

	"github.com/DromeProduto/DromeBoard/adapters/clock"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/rs/zerolog"
)

type sourceFunc func(ctx context.Context, location string) ([]byte, error)

func (f sourceFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

func TestAssetStore_CachesInAssetsRegion(t *testing.T) {
	c := cache.New(cache.Options{Clock: clock.Real{}, Logger: zerolog.Nop()})
	calls := 0
	store := loader.NewAssetStore(c, sourceFunc(func(_ context.Context, loc string) ([]byte, error) {
		calls++
		return []byte("body of " + loc), nil
	}))

	for i := 0; i < 3; i++ {
		b, err := store.Get(context.Background(), "modules/home/style.css")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(b) != "body of modules/home/style.css" {
			t.Errorf("Get() = %q", b)
		}
	}
	if calls != 1 {
		t.Errorf("source calls = %d, want 1", calls)
	}
	if c.Len(cache.RegionAssets) != 1 {
		t.Errorf("assets region Len = %d, want 1", c.Len(cache.RegionAssets))
	}

	if !store.Forget("modules/home/style.css") {
		t.Error("Forget() = false, want true")
	}
	store.Get(context.Background(), "modules/home/style.css")
	if calls != 2 {
		t.Errorf("source calls after Forget = %d, want 2", calls)
	}
}

func TestAssetStore_ErrorsAreNotCached(t *testing.T) {
	c := cache.New(cache.Options{Clock: clock.Real{}, Logger: zerolog.Nop()})
	store := loader.NewAssetStore(c, sourceFunc(func(context.Context, string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	}))

	if _, err := store.Get(context.Background(), "x.js"); err == nil {
		t.Fatal("Get() should fail")
	}
	if c.Len(cache.RegionAssets) != 0 {
		t.Error("failed fetch should not be cached")
	}
}
