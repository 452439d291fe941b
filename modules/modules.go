// Package modules holds the dashboard modules compiled into the binary.
// Each instance belongs to one session and reads the API through a client
// built for that session, so cached responses never cross sessions.
package modules

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/ports"
)

// Constructor names used by module descriptors.
const (
	HomeConstructor    = "DashboardHome"
	ResultsConstructor = "Resultados"
	UsersConstructor   = "GestaoUsuarios"
)

// API is the part of the dashboard API the modules read.
// *remote.Client satisfies it.
type API interface {
	Metrics(ctx context.Context, f dashboard.Filters) (dashboard.Metrics, error)
	Results(ctx context.Context, f dashboard.Filters, limit int) ([]dashboard.Result, error)
	Units(ctx context.Context) ([]directory.Unit, error)
	UnitUsers(ctx context.Context, unitID string) ([]directory.UnitMember, error)
	Modules(ctx context.Context, unitID string) ([]directory.Module, error)
	Invalidate(path string) int
}

// ClientFunc builds the API client of one module instance.
type ClientFunc func(env loader.Env) API

// Deps contains dependencies shared by every module.
type Deps struct {
	Client ClientFunc
	Clock  ports.Clock
}

// Register adds the native modules to reg.
func Register(reg *loader.Registry, deps Deps) error {
	ctors := map[string]loader.Constructor{
		HomeConstructor: func(env loader.Env) (loader.Module, error) {
			return newHome(env, deps.Client(env), deps.Clock), nil
		},
		ResultsConstructor: func(env loader.Env) (loader.Module, error) {
			return newResults(env, deps.Client(env)), nil
		},
		UsersConstructor: func(env loader.Env) (loader.Module, error) {
			return newUsers(env, deps.Client(env)), nil
		},
	}
	for _, name := range []string{HomeConstructor, ResultsConstructor, UsersConstructor} {
		if err := reg.Register(name, ctors[name]); err != nil {
			return fmt.Errorf("register module %s: %w", name, err)
		}
	}
	return nil
}

var funcs = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("02/01/2006 15:04")
	},
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"seconds": func(f float64) string { return fmt.Sprintf("%.2fs", f) },
}

func parse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

// errorPanel is rendered inside a module when its data could not be read.
var errorPanel = parse("error", `<div class="module-data-error"><p>Erro ao carregar dados: {{.}}</p></div>`)

func renderError(w io.Writer, err error) error {
	return errorPanel.Execute(w, err.Error())
}

func rangeLabel(r dashboard.DateRange) string {
	switch r {
	case dashboard.Range7d:
		return "Últimos 7 dias"
	case dashboard.Range30d:
		return "Últimos 30 dias"
	case dashboard.Range90d:
		return "Últimos 90 dias"
	default:
		return "Todo o período"
	}
}
