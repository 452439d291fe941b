package web_test

import (
	"bytes"
	"html/template"
	"io/fs"
	"strings"
	"testing"

	"github.com/DromeProduto/DromeBoard/web"
)

func TestTemplates(t *testing.T) {
	pages, err := web.Templates()
	if err != nil {
		t.Fatalf("Templates() error = %v", err)
	}
	for _, name := range []string{"dashboard", "login"} {
		if _, ok := pages[name]; !ok {
			t.Errorf("page %q missing", name)
		}
	}

	var buf bytes.Buffer
	err = pages["login"].ExecuteTemplate(&buf, "base", map[string]any{
		"Error": "<b>bad</b>",
		"Email": "ana@example.com",
	})
	if err != nil {
		t.Fatalf("execute login: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "&lt;b&gt;bad&lt;/b&gt;") {
		t.Error("error message should be escaped")
	}
	if !strings.Contains(out, `value="ana@example.com"`) {
		t.Error("email should be prefilled")
	}
}

func TestTemplates_DashboardContent(t *testing.T) {
	pages, err := web.Templates()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = pages["dashboard"].ExecuteTemplate(&buf, "base", map[string]any{
		"Current": "resultados",
		"Content": template.HTML(`<table id="t"></table>`),
		"Styles":  []template.CSS{".x{color:red}"},
		"User":    map[string]string{"Name": "Ana", "RoleName": "Gerente"},
		"Modules": []map[string]any{{"Name": "resultados", "Title": "Resultados", "Active": true, "Loaded": true}},
	})
	if err != nil {
		t.Fatalf("execute dashboard: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`<table id="t"></table>`, ".x{color:red}", `action="/dashboard/navigate/resultados"`, `class="active"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestFiles(t *testing.T) {
	for _, name := range []string{
		"modules/dashboard-home/home.css",
		"modules/relatorios/relatorios.go",
	} {
		if _, err := fs.Stat(web.Files, name); err != nil {
			t.Errorf("Stat(%s) error = %v", name, err)
		}
	}
	if _, err := fs.Stat(web.Files, "templates"); err == nil {
		t.Error("templates must not be part of the served assets")
	}
}
