package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/bootstrap"
	"github.com/DromeProduto/DromeBoard/config"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/DromeProduto/DromeBoard/pkg/wire"
	"go.uber.org/goleak"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	cfg.Database.DSN = filepath.Join(t.TempDir(), "dromeboard.db")
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Logging.Level = "error"
	return cfg
}

func TestApp_StartShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	cfg.Dashboard.SessionCleanupInterval = 10 * time.Millisecond

	a, err := bootstrap.New(bootstrap.Options{Config: cfg, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if a.Metrics != nil {
		t.Error("Metrics should be nil when disabled")
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	time.Sleep(30 * time.Millisecond)
	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown error: %v", err)
	}
}

func TestApp_Warmup(t *testing.T) {
	a, err := bootstrap.New(bootstrap.Options{Config: testConfig(t), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := a.Cache.Len(cache.RegionData); got == 0 {
		t.Error("warmup stored no entries")
	}
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (int, string) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestApp_EndToEnd(t *testing.T) {
	srv := httptest.NewUnstartedServer(nil)
	cfg := testConfig(t)
	cfg.Dashboard.APIBaseURL = "http://" + srv.Listener.Addr().String() + "/api"

	a, err := bootstrap.New(bootstrap.Options{Config: cfg, LogOutput: io.Discard, Version: "test"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()
	srv.Config.Handler = a.Handler
	srv.Start()
	defer srv.Close()

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	unit, err := a.Directory.CreateUnit(ctx, app.UnitInput{Name: "Centro", Code: "CEN"})
	if err != nil {
		t.Fatalf("CreateUnit error: %v", err)
	}
	_, err = a.Directory.CreateUser(ctx, app.UserInput{
		Name: "Admin", Email: "admin@example.com", RoleID: directory.RoleAdminID, Password: "segredo1",
	}, "")
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	c := &client{t: t, base: srv.URL}
	status, body := c.do(http.MethodPost, "/api/auth/login", wire.LoginRequest{Email: "admin@example.com", Password: "segredo1"})
	if status != http.StatusOK {
		t.Fatalf("login status = %d: %s", status, body)
	}
	var session wire.SessionInfo
	if err := envelope.Decode(status, []byte(body), &session); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	c.token = session.Token

	status, body = c.do(http.MethodGet, "/dashboard/", nil)
	if status != http.StatusOK {
		t.Fatalf("dashboard status = %d: %s", status, body)
	}
	if !strings.Contains(body, `data-module="dashboard-home"`) || !strings.Contains(body, "Taxa de sucesso") {
		t.Errorf("dashboard did not render the home module: %s", body)
	}

	status, body = c.do(http.MethodPost, "/api/results", wire.UploadRequest{
		UnitID:   unit.ID,
		FileName: "lote.csv",
		Rows:     []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}},
	})
	if status != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", status, body)
	}

	status, body = c.do(http.MethodPost, "/dashboard/uploaded", map[string]any{"id": "r1", "file_name": "lote.csv", "row_count": 3})
	if status != http.StatusOK {
		t.Fatalf("uploaded status = %d: %s", status, body)
	}
	_, body = c.do(http.MethodGet, "/dashboard/", nil)
	if !strings.Contains(body, `<span class="value">3</span>`) {
		t.Errorf("home cards should count the uploaded records: %s", body)
	}

	// Scripted module, resolved through the interpreter.
	status, body = c.do(http.MethodGet, "/dashboard/?module=relatorios", nil)
	if status != http.StatusOK {
		t.Fatalf("relatorios status = %d", status)
	}
	if !strings.Contains(body, `class="module relatorios"`) || !strings.Contains(body, "<dd>3</dd>") {
		t.Errorf("relatorios not rendered with metrics: %s", body)
	}

	for _, path := range []string{"/health/ready", "/version", "/assets/modules/dashboard-home/home.css"} {
		if status, _ := c.do(http.MethodGet, path, nil); status != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, status)
		}
	}
	_, body = c.do(http.MethodGet, "/metrics", nil)
	for _, want := range []string{"dromeboard_module_loads_total", "dromeboard_cache_hits_total", "dromeboard_uploads_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
