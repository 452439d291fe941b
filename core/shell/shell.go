// Package shell orchestrates navigation for one dashboard session.
//
// A Shell owns the session's filter selection and delegates module
// navigation to an injected loader. Failed navigations leave an inline error
// panel in the container; nothing is retried automatically.
package shell

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"sync"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/rs/zerolog"
)

// FilterState holds the filter selection of one session.
// Its Get method is handed to module constructors as loader.Env.Filters.
type FilterState struct {
	mu sync.RWMutex
	f  dashboard.Filters
}

// NewFilterState creates a state with the default date range.
func NewFilterState() *FilterState {
	return &FilterState{f: dashboard.Filters{DateRange: dashboard.DefaultDateRange}}
}

// Get returns the current filters.
func (s *FilterState) Get() dashboard.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.f
}

// Set replaces the filters.
func (s *FilterState) Set(f dashboard.Filters) {
	s.mu.Lock()
	s.f = f
	s.mu.Unlock()
}

// Options configures a Shell.
type Options struct {
	Loader  *loader.Loader
	Filters *FilterState // nil = NewFilterState()
	Logger  zerolog.Logger
}

// Shell is the navigation controller of one session.
type Shell struct {
	loader  *loader.Loader
	filters *FilterState
	logger  zerolog.Logger
}

// New creates a Shell around an existing loader.
func New(opts Options) *Shell {
	fs := opts.Filters
	if fs == nil {
		fs = NewFilterState()
	}
	return &Shell{
		loader:  opts.Loader,
		filters: fs,
		logger:  opts.Logger.With().Str("component", "shell").Logger(),
	}
}

// Loader returns the underlying loader.
func (s *Shell) Loader() *loader.Loader {
	return s.loader
}

// Navigate loads and activates a module. On failure the container shows an
// error panel with a reload action and the error is returned.
func (s *Shell) Navigate(ctx context.Context, name string) (loader.Module, error) {
	m, err := s.loader.LoadModule(ctx, name)
	if err != nil {
		s.logger.Error().Err(err).Str("module", name).Msg("navigation failed")
		s.showError(name, err)
		return nil, err
	}
	s.logger.Debug().Str("module", name).Msg("navigated")
	return m, nil
}

// SetFilters stores f and forwards it to the active module if it listens
// for filter changes.
func (s *Shell) SetFilters(ctx context.Context, f dashboard.Filters) error {
	r, err := dashboard.ParseDateRange(string(f.DateRange))
	if err != nil {
		return err
	}
	f.DateRange = r
	s.filters.Set(f)

	_, err = s.loader.Notify(ctx, loader.CapFilters, func(ctx context.Context, m loader.Module) error {
		return m.(loader.FiltersListener).OnFiltersChanged(ctx, f)
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("filter change not applied by module")
	}
	return err
}

// NotifyUpload tells the active module that new results were uploaded.
func (s *Shell) NotifyUpload(ctx context.Context, info dashboard.UploadInfo) error {
	_, err := s.loader.Notify(ctx, loader.CapUpload, func(ctx context.Context, m loader.Module) error {
		return m.(loader.UploadListener).OnDataUploaded(ctx, info)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("upload", info.ResultID).Msg("upload notification failed")
	}
	return err
}

// Filters returns the current filter selection.
func (s *Shell) Filters() dashboard.Filters {
	return s.filters.Get()
}

// Current returns the active module name, or "".
func (s *Shell) Current() string {
	return s.loader.CurrentModule()
}

// Render returns the container contents.
func (s *Shell) Render() string {
	return s.loader.Container().String()
}

// ModuleView is a navigation entry.
type ModuleView struct {
	loader.Descriptor
	Loaded bool `json:"loaded"`
	Active bool `json:"active"`
}

// Modules lists the navigable modules with their load state.
func (s *Shell) Modules() []ModuleView {
	current := s.loader.CurrentModule()
	descs := s.loader.Available()
	out := make([]ModuleView, 0, len(descs))
	for _, d := range descs {
		out = append(out, ModuleView{
			Descriptor: d,
			Loaded:     s.loader.IsModuleLoaded(d.Name),
			Active:     d.Name == current,
		})
	}
	return out
}

// Close evicts every loaded module, running their cleanup hooks.
func (s *Shell) Close() int {
	return s.loader.ClearCache()
}

type errorPanel struct {
	Module  string
	Title   string
	Message string
	Detail  string
}

var errorTmpl = template.Must(template.New("error").Parse(`<div class="module-error" data-module="{{.Module}}">
<h3>Erro ao Carregar Módulo</h3>
<p>{{.Message}}</p>
<details><summary>Detalhes do erro</summary><pre>{{.Detail}}</pre></details>
<form method="post" action="/dashboard/navigate/{{.Module}}"><button type="submit" class="btn btn-primary">Recarregar</button></form>
</div>`))

func (s *Shell) showError(name string, err error) {
	p := errorPanel{Module: name, Title: name, Detail: err.Error()}
	if d, ok := s.loader.Descriptor(name); ok && d.Title != "" {
		p.Title = d.Title
	}
	p.Message = "Erro ao carregar módulo " + p.Title
	if errors.Is(err, loader.ErrModuleUnregistered) {
		p.Message = "Módulo desconhecido: " + name
	}

	var buf bytes.Buffer
	if terr := errorTmpl.Execute(&buf, p); terr != nil {
		s.logger.Error().Err(terr).Msg("render error panel")
		return
	}
	_ = s.loader.ShowPanel(func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}
