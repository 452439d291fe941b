package shell_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	jwtauth "github.com/DromeProduto/DromeBoard/adapters/auth"
	"github.com/DromeProduto/DromeBoard/adapters/clock"
	"github.com/DromeProduto/DromeBoard/adapters/hasher"
	"github.com/DromeProduto/DromeBoard/adapters/http/api"
	"github.com/DromeProduto/DromeBoard/adapters/http/shell"
	"github.com/DromeProduto/DromeBoard/adapters/idgen"
	"github.com/DromeProduto/DromeBoard/adapters/metrics"
	"github.com/DromeProduto/DromeBoard/adapters/sqlite"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/core/loader"
	coreshell "github.com/DromeProduto/DromeBoard/core/shell"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

// panel renders its name and the filters it sees.
type panel struct {
	env     loader.Env
	uploads []dashboard.UploadInfo
}

func (p *panel) Name() string { return p.env.Descriptor.Name }

func (p *panel) Render(_ context.Context, w io.Writer) error {
	f := p.env.CurrentFilters()
	_, err := fmt.Fprintf(w, "<p>%s range=%s unit=%s uploads=%d</p>", p.Name(), f.DateRange, f.UnitID, len(p.uploads))
	return err
}

func (p *panel) OnDataUploaded(_ context.Context, info dashboard.UploadInfo) error {
	p.uploads = append(p.uploads, info)
	return nil
}

type testEnv struct {
	handler http.Handler
	manager *coreshell.Manager
	cache   *cache.Cache
	metrics *metrics.Collector
	unitA   string
	unitB   string
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	f, err := os.CreateTemp("", "dromeboard-shell-*.db")
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
	dir := app.NewDirectoryService(app.DirectoryDeps{
		Units:   sqlite.NewUnitStore(db),
		Users:   sqlite.NewUserStore(db),
		Roles:   sqlite.NewRoleStore(db),
		Modules: sqlite.NewModuleStore(db),
		Cache:   c,
		Clock:   clk,
		IDs:     idgen.NewSequential("id"),
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

	reg := loader.NewRegistry()
	reg.MustRegister("Panel", func(env loader.Env) (loader.Module, error) {
		return &panel{env: env}, nil
	})
	mgr := coreshell.NewManager(coreshell.ManagerOptions{
		Descriptors: []loader.Descriptor{
			{Name: "home", Title: "Início", Constructor: "Panel"},
			{Name: "results", Title: "Resultados", Constructor: "Panel"},
			{Name: "broken", Title: "Relatórios", Constructor: "Missing"},
		},
		Resolvers: map[string]loader.Resolver{loader.RuntimeNative: reg},
		Clock:     clk,
		Logger:    zerolog.Nop(),
	})

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h, err := shell.NewHandler(shell.Deps{
		Manager:   mgr,
		Auth:      authSvc,
		Directory: dir,
		Cache:     c,
		Metrics:   m,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	ctx := context.Background()
	env := &testEnv{handler: h.Router(), manager: mgr, cache: c, metrics: m}
	for _, in := range []app.UnitInput{{Name: "Unidade Norte", Code: "NORTE"}, {Name: "Unidade Sul", Code: "SUL"}} {
		u, err := dir.CreateUnit(ctx, in)
		if err != nil {
			t.Fatalf("seed unit: %v", err)
		}
		if env.unitA == "" {
			env.unitA = u.ID
		} else {
			env.unitB = u.ID
		}
	}
	own := []string{env.unitA}
	seeds := []app.UserInput{
		{Name: "Admin", Email: "admin@example.com", RoleID: "role_admin", Password: "segredo1"},
		{Name: "Operador", Email: "user@example.com", RoleID: "role_user", Password: "segredo1", UnitIDs: &own},
	}
	for _, in := range seeds {
		if _, err := dir.CreateUser(ctx, in, ""); err != nil {
			t.Fatalf("seed user %s: %v", in.Email, err)
		}
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, cookie *http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) form(t *testing.T, path string, values url.Values, cookie *http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range header {
		h[k] = v
	}
	return e.do(t, http.MethodPost, path, strings.NewReader(values.Encode()), cookie, h)
}

func (e *testEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := e.form(t, "/login", url.Values{"email": {email}, "password": {"segredo1"}}, nil, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == api.SessionCookie {
			return c
		}
	}
	t.Fatal("login set no session cookie")
	return nil
}

var fragment = map[string]string{"HX-Request": "true"}

func TestLogin(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	// An authenticated visit to the form skips it.
	rec := env.do(t, http.MethodGet, "/login", nil, cookie, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard/" {
		t.Errorf("GET /login = %d %q, want 303 /dashboard/", rec.Code, rec.Header().Get("Location"))
	}
	if got := testutil.ToFloat64(env.metrics.Logins); got != 1 {
		t.Errorf("Logins = %v, want 1", got)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{"missing", "", "", http.StatusBadRequest, "Informe email e senha"},
		{"wrong password", "admin@example.com", "errada", http.StatusUnauthorized, "Email ou senha inválidos"},
		{"unknown user", "ghost@example.com", "segredo1", http.StatusUnauthorized, "Email ou senha inválidos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			rec := env.form(t, "/login", url.Values{"email": {tt.email}, "password": {tt.password}}, nil, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.message) {
				t.Errorf("body missing %q", tt.message)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("failed login must not set a cookie")
			}
		})
	}
}

func TestPage_RequiresSession(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/", nil, nil, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard/login" {
		t.Errorf("GET / = %d %q, want redirect to login", rec.Code, rec.Header().Get("Location"))
	}

	rec = env.do(t, http.MethodPost, "/navigate/home", nil, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST /navigate status = %d, want 401", rec.Code)
	}

	bad := &http.Cookie{Name: api.SessionCookie, Value: "garbage"}
	rec = env.do(t, http.MethodGet, "/", nil, bad, nil)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("GET / with bad cookie = %d, want 303", rec.Code)
	}
}

func TestPage_OpensFirstModule(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")

	rec := env.do(t, http.MethodGet, "/", nil, cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`data-module="home"`,
		"<p>home range=30d unit= uploads=0</p>",
		"Unidade Norte",
		"Unidade Sul",
		"Admin",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if env.manager.Len() != 1 {
		t.Errorf("open shells = %d, want 1", env.manager.Len())
	}
	if got := testutil.ToFloat64(env.metrics.ActiveShells); got != 1 {
		t.Errorf("ActiveShells = %v, want 1", got)
	}

	rec = env.do(t, http.MethodGet, "/?module=results", nil, cookie, nil)
	if !strings.Contains(rec.Body.String(), `data-module="results"`) {
		t.Error("?module=results did not switch module")
	}
}

func TestPage_UnitsLimitedForUsers(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "user@example.com")

	body := env.do(t, http.MethodGet, "/", nil, cookie, nil).Body.String()
	if !strings.Contains(body, "Unidade Norte") {
		t.Error("own unit should be listed")
	}
	if strings.Contains(body, "Unidade Sul") {
		t.Error("foreign unit should not be listed")
	}
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		module string
		status int
		want   string
	}{
		{"results", http.StatusOK, "<p>results range=30d"},
		{"nope", http.StatusNotFound, "Módulo desconhecido: nope"},
		{"broken", http.StatusInternalServerError, `class="module-error"`},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			env := setup(t)
			cookie := env.login(t, "admin@example.com")

			rec := env.do(t, http.MethodPost, "/navigate/"+tt.module, nil, cookie, fragment)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestNavigate_FormRedirects(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")

	rec := env.do(t, http.MethodPost, "/navigate/results", nil, cookie, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard/" {
		t.Errorf("status = %d %q, want 303 /dashboard/", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSetFilters(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")
	env.do(t, http.MethodPost, "/navigate/home", nil, cookie, fragment)

	rec := env.form(t, "/filters", url.Values{"date_range": {"7d"}, "unit_id": {env.unitB}}, cookie, fragment)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	want := fmt.Sprintf("<p>home range=7d unit=%s uploads=0</p>", env.unitB)
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}

	rec = env.form(t, "/filters", url.Values{"date_range": {"1y"}}, cookie, fragment)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad range status = %d, want 400", rec.Code)
	}
}

func TestSetFilters_ForeignUnit(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "user@example.com")

	rec := env.form(t, "/filters", url.Values{"unit_id": {env.unitB}}, cookie, fragment)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	rec = env.form(t, "/filters", url.Values{"unit_id": {env.unitA}}, cookie, fragment)
	if rec.Code != http.StatusOK {
		t.Errorf("own unit status = %d, want 200", rec.Code)
	}
}

func TestUploaded(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")
	env.do(t, http.MethodPost, "/navigate/results", nil, cookie, fragment)

	body := strings.NewReader(`{"id":"res_1","file_name":"lote.csv","row_count":3}`)
	rec := env.do(t, http.MethodPost, "/uploaded", body, cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/?fragment", nil, cookie, nil)
	if !strings.Contains(rec.Body.String(), "uploads=1") {
		t.Error("module was not told about the upload")
	}

	rec = env.do(t, http.MethodPost, "/uploaded", strings.NewReader("{"), cookie, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", rec.Code)
	}
}

func TestModulesAndReload(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")
	env.do(t, http.MethodPost, "/navigate/home", nil, cookie, fragment)

	var views []coreshell.ModuleView
	decode(t, env.do(t, http.MethodGet, "/modules", nil, cookie, nil), &views)
	if len(views) != 3 {
		t.Fatalf("modules = %d, want 3", len(views))
	}
	if !views[0].Loaded || !views[0].Active || views[1].Loaded {
		t.Errorf("views = %+v", views)
	}

	var evicted map[string]int
	decode(t, env.do(t, http.MethodPost, "/reload", nil, cookie, fragment), &evicted)
	if evicted["evicted"] != 1 {
		t.Errorf("evicted = %v, want 1", evicted)
	}
}

func TestCache(t *testing.T) {
	env := setup(t)
	admin := env.login(t, "admin@example.com")
	user := env.login(t, "user@example.com")

	env.cache.Set(cache.RegionAPI, "GET:/api/units::", "x")

	var stats shell.CacheStatsResponse
	decode(t, env.do(t, http.MethodGet, "/cache", nil, user, nil), &stats)
	if stats.Loader.TotalModules != 3 {
		t.Errorf("loader TotalModules = %d, want 3", stats.Loader.TotalModules)
	}

	rec := env.do(t, http.MethodDelete, "/cache/api", nil, user, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user clear status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/cache/bogus", nil, admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown region status = %d, want 400", rec.Code)
	}

	var cleared struct {
		Region  string `json:"region"`
		Removed int    `json:"removed"`
	}
	decode(t, env.do(t, http.MethodDelete, "/cache/api", nil, admin, nil), &cleared)
	if cleared.Removed != 1 {
		t.Errorf("removed = %d, want 1", cleared.Removed)
	}
	if env.cache.Has(cache.RegionAPI, "GET:/api/units::") {
		t.Error("api region should be empty")
	}
}

func TestLogout(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "admin@example.com")
	env.do(t, http.MethodGet, "/", nil, cookie, nil)

	rec := env.do(t, http.MethodPost, "/logout", nil, cookie, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard/login" {
		t.Errorf("logout = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if env.manager.Len() != 0 {
		t.Errorf("open shells = %d, want 0", env.manager.Len())
	}

	rec = env.do(t, http.MethodGet, "/", nil, cookie, nil)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("after logout GET / = %d, want 303", rec.Code)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var raw envelope.Raw
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(raw.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
