package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"
)

//go:embed templates
var templateFiles embed.FS

// Templates parses every page under templates/pages together with the base
// layout and the shared components. Pages are keyed by file name without
// extension, e.g. "dashboard".
func Templates() (map[string]*template.Template, error) {
	return parseTemplates(templateFiles)
}

func parseTemplates(files fs.FS) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("02/01/2006")
		},
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n] + "..."
		},
	}

	layout, err := fs.ReadFile(files, "templates/layouts/base.html")
	if err != nil {
		return nil, err
	}

	var components []byte
	names, err := fs.Glob(files, "templates/components/*.html")
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		b, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, err
		}
		components = append(components, b...)
	}

	pages, err := fs.Glob(files, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := strings.TrimSuffix(strings.TrimPrefix(page, "templates/pages/"), ".html")

		content, err := fs.ReadFile(files, page)
		if err != nil {
			return nil, err
		}

		tmpl := template.New(name).Funcs(funcs)
		if _, err := tmpl.Parse(string(layout)); err != nil {
			return nil, fmt.Errorf("parse layout for %s: %w", name, err)
		}
		if len(components) > 0 {
			if _, err := tmpl.Parse(string(components)); err != nil {
				return nil, fmt.Errorf("parse components for %s: %w", name, err)
			}
		}
		if _, err := tmpl.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}
