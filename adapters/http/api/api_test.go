package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	jwtauth "github.com/DromeProduto/DromeBoard/adapters/auth"
	"github.com/DromeProduto/DromeBoard/adapters/clock"
	"github.com/DromeProduto/DromeBoard/adapters/hasher"
	"github.com/DromeProduto/DromeBoard/adapters/http/api"
	"github.com/DromeProduto/DromeBoard/adapters/idgen"
	"github.com/DromeProduto/DromeBoard/adapters/metrics"
	"github.com/DromeProduto/DromeBoard/adapters/sqlite"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	dir     *app.DirectoryService
	metrics *metrics.Collector
}

func setupHandler(t *testing.T) *testEnv {
	t.Helper()

	f, err := os.CreateTemp("", "dromeboard-api-*.db")
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

	clk := clock.NewFake(t0)
	c := cache.New(cache.Options{Clock: clk, Logger: zerolog.Nop()})
	ids := idgen.NewSequential("id")

	dir := app.NewDirectoryService(app.DirectoryDeps{
		Units:   sqlite.NewUnitStore(db),
		Users:   sqlite.NewUserStore(db),
		Roles:   sqlite.NewRoleStore(db),
		Modules: sqlite.NewModuleStore(db),
		Cache:   c,
		Clock:   clk,
		IDs:     ids,
		Hasher:  hasher.Plain{},
		Logger:  zerolog.Nop(),
	})
	authSvc := app.NewAuthService(app.AuthDeps{
		Users:    sqlite.NewUserStore(db),
		Sessions: sqlite.NewSessionStore(db),
		Tokens:   jwtauth.NewTokenService("test-secret", clk),
		Hasher:   hasher.Plain{},
		Cache:    c,
		Clock:    clk,
		Logger:   zerolog.Nop(),
	})
	results := app.NewResultsService(app.ResultsDeps{
		Results: sqlite.NewResultStore(db),
		Cache:   c,
		Clock:   clk,
		IDs:     ids,
		Logger:  zerolog.Nop(),
	})

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := api.NewHandler(api.Deps{
		Directory: dir,
		Auth:      authSvc,
		Results:   results,
		Metrics:   m,
		Logger:    zerolog.Nop(),
	})

	for _, u := range []struct{ email, role string }{
		{"admin@example.com", "role_admin"},
		{"user@example.com", "role_user"},
	} {
		_, err := dir.CreateUser(context.Background(), app.UserInput{
			Name: u.email, Email: u.email, RoleID: u.role, Password: "segredo1",
		}, "")
		if err != nil {
			t.Fatalf("seed user %s: %v", u.email, err)
		}
	}

	return &testEnv{handler: h.Router(), dir: dir, metrics: m}
}

type apiResponse struct {
	Status  int
	Header  http.Header
	Success bool
	Message string
	Data    json.RawMessage
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, token string) apiResponse {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var raw envelope.Raw
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("%s %s: response is not an envelope: %q", method, path, rec.Body.String())
	}
	return apiResponse{
		Status:  rec.Code,
		Header:  rec.Header(),
		Success: raw.Success,
		Message: raw.Message,
		Data:    raw.Data,
	}
}

func login(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	resp := doRequest(t, h, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": "segredo1"}, "")
	if resp.Status != http.StatusOK {
		t.Fatalf("login %s: status = %d, message = %q", email, resp.Status, resp.Message)
	}
	var info struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Data, &info)
	if info.Token == "" {
		t.Fatal("login returned no token")
	}
	return info.Token
}
