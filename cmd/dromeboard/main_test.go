package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "dromeboard "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(good, []byte("server:\n  port: 9090\ndatabase:\n  dsn: board.db\n"), 0o600)
	os.WriteFile(bad, []byte("server:\n  port: -1\n"), 0o600)

	out, err := execute(t, "validate", good)
	if err != nil {
		t.Fatalf("validate good error = %v\n%s", err, out)
	}
	if !strings.Contains(out, ":9090") {
		t.Errorf("output missing listen address:\n%s", out)
	}

	if _, err := execute(t, "validate", bad); err == nil {
		t.Error("validate bad: expected error")
	}
	if _, err := execute(t, "validate", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("validate missing: expected error")
	}
}

func TestCacheStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "# HELP dromeboard_cache_hits_total Cache hits by region")
		fmt.Fprintln(w, `dromeboard_cache_hits_total{region="data"} 7`)
		fmt.Fprintln(w, `dromeboard_requests_in_flight 1`)
		fmt.Fprintln(w, `dromeboard_cache_entries{region="api"} 2`)
	}))
	defer srv.Close()

	out, err := execute(t, "cache", "stats", "--url", srv.URL)
	if err != nil {
		t.Fatalf("cache stats error = %v", err)
	}
	want := "dromeboard_cache_hits_total{region=\"data\"} 7\ndromeboard_cache_entries{region=\"api\"} 2\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestCacheStats_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := execute(t, "cache", "stats", "--url", srv.URL); err == nil {
		t.Error("expected error for 404")
	}
}

func TestUsers_CreateAdminAndList(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DROMEBOARD_DATABASE_DSN", filepath.Join(dir, "board.db"))
	t.Setenv("DROMEBOARD_AUTH_JWT_SECRET", "cli-test-secret")
	missing := filepath.Join(dir, "none.yaml")

	out, err := execute(t, "--config", missing, "users", "create-admin", "--email", "root@example.com", "--name", "Root", "--password", "segredo1")
	if err != nil {
		t.Fatalf("create-admin error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "root@example.com") {
		t.Errorf("create-admin output = %q", out)
	}

	out, err = execute(t, "--config", missing, "users", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "root@example.com") || !strings.Contains(out, "active") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "--config", missing, "users", "reset-password", "root@example.com", "--password", "novasenha")
	if err != nil {
		t.Fatalf("reset-password error = %v", err)
	}
	if !strings.Contains(out, "Password reset") {
		t.Errorf("reset output = %q", out)
	}
}
