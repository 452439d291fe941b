package app_test

import (
	"os"
	"sync"
	"testing"
	"time"

	jwtauth "github.com/DromeProduto/DromeBoard/adapters/auth"
	"github.com/DromeProduto/DromeBoard/adapters/clock"
	"github.com/DromeProduto/DromeBoard/adapters/hasher"
	"github.com/DromeProduto/DromeBoard/adapters/idgen"
	"github.com/DromeProduto/DromeBoard/adapters/sqlite"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	db      *sqlite.DB
	cache   *cache.Cache
	clock   *clock.Fake
	dir     *app.DirectoryService
	auth    *app.AuthService
	results *app.ResultsService

	mu      sync.Mutex
	changed []string
}

func (h *harness) record(resources ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, resources...)
}

func (h *harness) takeChanged() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.changed
	h.changed = nil
	return out
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	f, err := os.CreateTemp("", "dromeboard-app-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	})

	h := &harness{db: db, clock: clock.NewFake(t0)}
	h.cache = cache.New(cache.Options{Clock: h.clock, Logger: zerolog.Nop()})
	ids := idgen.NewSequential("id")

	h.dir = app.NewDirectoryService(app.DirectoryDeps{
		Units:   sqlite.NewUnitStore(db),
		Users:   sqlite.NewUserStore(db),
		Roles:   sqlite.NewRoleStore(db),
		Modules: sqlite.NewModuleStore(db),
		Cache:   h.cache,
		Clock:   h.clock,
		IDs:     ids,
		Hasher:  hasher.Plain{},
		Changed: h.record,
		Logger:  zerolog.Nop(),
	})
	h.auth = app.NewAuthService(app.AuthDeps{
		Users:      sqlite.NewUserStore(db),
		Sessions:   sqlite.NewSessionStore(db),
		Tokens:     jwtauth.NewTokenService("test-secret", h.clock),
		Hasher:     hasher.Plain{},
		Cache:      h.cache,
		Clock:      h.clock,
		SessionTTL: 8 * time.Hour,
		Logger:     zerolog.Nop(),
	})
	h.results = app.NewResultsService(app.ResultsDeps{
		Results: sqlite.NewResultStore(db),
		Cache:   h.cache,
		Clock:   h.clock,
		IDs:     ids,
		Changed: h.record,
		Logger:  zerolog.Nop(),
	})
	return h
}
