package loader

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Assets fetches module assets. *AssetStore satisfies it.
type Assets interface {
	Get(ctx context.Context, location string) ([]byte, error)
}

// Observer is told about every load attempt, typically to export metrics.
type Observer interface {
	ModuleLoaded(name, runtime string, took time.Duration, err error)
}

// Options configures a Loader.
type Options struct {
	Descriptors []Descriptor
	Resolvers   map[string]Resolver // keyed by runtime name
	Assets      Assets
	Container   *Container // nil = new empty container
	Env         Env        // template for every Constructor call
	Clock       ports.Clock
	Logger      zerolog.Logger
	Observer    Observer // optional
}

// Loader loads modules and keeps exactly one of them active.
type Loader struct {
	descriptors map[string]Descriptor
	order       []string
	resolvers   map[string]Resolver
	assets      Assets
	container   *Container
	env         Env
	clock       ports.Clock
	logger      zerolog.Logger
	observer    Observer

	group singleflight.Group

	// transition serializes activation, hook dispatch and eviction, so only
	// one module touches the container at a time.
	transition sync.Mutex

	mu      sync.RWMutex
	records map[string]*Record
	current string
}

// New creates a Loader. Descriptors with a duplicate or empty name are skipped.
func New(opts Options) *Loader {
	l := &Loader{
		descriptors: make(map[string]Descriptor, len(opts.Descriptors)),
		resolvers:   opts.Resolvers,
		assets:      opts.Assets,
		container:   opts.Container,
		env:         opts.Env,
		clock:       opts.Clock,
		logger:      opts.Logger.With().Str("component", "loader").Logger(),
		observer:    opts.Observer,
		records:     make(map[string]*Record),
	}
	if l.container == nil {
		l.container = NewContainer()
	}
	for _, d := range opts.Descriptors {
		if d.Name == "" {
			continue
		}
		if _, dup := l.descriptors[d.Name]; dup {
			l.logger.Warn().Str("module", d.Name).Msg("duplicate module descriptor ignored")
			continue
		}
		l.descriptors[d.Name] = d
		l.order = append(l.order, d.Name)
	}
	return l
}

// Container returns the render target.
func (l *Loader) Container() *Container {
	return l.container
}

// LoadModule loads name if needed and activates it.
// Concurrent calls for the same name share one load and one activation.
func (l *Loader) LoadModule(ctx context.Context, name string) (Module, error) {
	d, ok := l.descriptors[name]
	if !ok {
		return nil, &ModuleError{Name: name, Op: "load", Err: ErrModuleUnregistered}
	}

	// The shared load outlives any single caller: joined callers must not
	// fail because the first one went away.
	lctx := context.WithoutCancel(ctx)
	v, err, shared := l.group.Do(name, func() (any, error) {
		if !l.IsModuleLoaded(name) {
			if err := l.load(lctx, d); err != nil {
				return nil, err
			}
		} else {
			l.logger.Debug().Str("module", name).Msg("module served from load cache")
		}
		return l.ActivateModule(lctx, name)
	})
	if shared {
		l.logger.Debug().Str("module", name).Msg("joined in-flight module load")
	}
	if err != nil {
		return nil, err
	}
	return v.(Module), nil
}

func (l *Loader) load(ctx context.Context, d Descriptor) (err error) {
	start := time.Now()
	defer func() {
		if l.observer != nil {
			l.observer.ModuleLoaded(d.Name, d.RuntimeName(), time.Since(start), err)
		}
	}()

	l.transition.Lock()
	l.container.Reset()
	_ = loadingTmpl.Execute(l.container, d)
	l.transition.Unlock()

	l.logger.Info().Str("module", d.Name).Str("runtime", d.RuntimeName()).Msg("loading module")

	var css, script []byte
	if d.Stylesheet != "" {
		if css, err = l.assets.Get(ctx, d.Stylesheet); err != nil {
			return moduleErr(d.Name, "load", fmt.Errorf("%w: stylesheet: %w", ErrScriptLoad, err))
		}
	}
	if d.Script != "" {
		if script, err = l.assets.Get(ctx, d.Script); err != nil {
			return moduleErr(d.Name, "load", fmt.Errorf("%w: script: %w", ErrScriptLoad, err))
		}
	}

	resolver, ok := l.resolvers[d.RuntimeName()]
	if !ok {
		return moduleErr(d.Name, "load", fmt.Errorf("%w: no resolver for runtime %q", ErrScriptLoad, d.RuntimeName()))
	}
	ctor, err := resolver.Resolve(ctx, d, script)
	if err != nil {
		return moduleErr(d.Name, "load", classify(err))
	}
	if ctor == nil {
		return moduleErr(d.Name, "load", fmt.Errorf("%w: %q", ErrConstructorMissing, d.Constructor))
	}

	env := l.env
	env.Descriptor = d
	env.Logger = l.logger.With().Str("module", d.Name).Logger()
	inst, err := ctor(env)
	if err != nil {
		return moduleErr(d.Name, "load", classify(err))
	}
	if inst == nil {
		return moduleErr(d.Name, "load", fmt.Errorf("%w: %q returned no instance", ErrConstructorMissing, d.Constructor))
	}

	rec := &Record{
		Instance:     inst,
		Descriptor:   d,
		LoadedAt:     l.clock.Now(),
		Capabilities: CapabilitiesOf(inst),
		Stylesheet:   css,
	}

	l.mu.Lock()
	l.records[d.Name] = rec
	l.mu.Unlock()

	l.logger.Info().
		Str("module", d.Name).
		Stringer("capabilities", rec.Capabilities).
		Dur("took", time.Since(start)).
		Msg("module loaded")
	return nil
}

// ActivateModule makes a loaded module the current one and renders it.
// The previous module is deactivated first; its errors are only logged.
func (l *Loader) ActivateModule(ctx context.Context, name string) (Module, error) {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.RLock()
	rec, ok := l.records[name]
	prev := l.current
	l.mu.RUnlock()
	if !ok {
		return nil, &ModuleError{Name: name, Op: "activate", Err: ErrModuleNotLoaded}
	}

	if prev != "" && prev != name {
		l.deactivate(ctx, prev)
		l.mu.Lock()
		l.current = ""
		l.mu.Unlock()
	}

	l.container.Reset()

	l.mu.RLock()
	initialized := rec.initialized
	l.mu.RUnlock()
	if rec.Capabilities.Has(CapInit) && !initialized {
		if err := rec.Instance.(Initializer).Init(ctx); err != nil {
			return nil, l.activationFailed(name, "init", err)
		}
		l.mu.Lock()
		rec.initialized = true
		l.mu.Unlock()
	}
	if rec.Capabilities.Has(CapRender) {
		if err := rec.Instance.(Renderer).Render(ctx, l.container); err != nil {
			return nil, l.activationFailed(name, "render", err)
		}
	}
	if rec.Capabilities.Has(CapActivate) {
		if err := rec.Instance.(Activator).OnActivate(ctx); err != nil {
			return nil, l.activationFailed(name, "activate hook", err)
		}
	}

	l.mu.Lock()
	l.current = name
	l.mu.Unlock()

	l.logger.Debug().Str("module", name).Msg("module activated")
	return rec.Instance, nil
}

func (l *Loader) activationFailed(name, step string, err error) error {
	l.logger.Error().Err(err).Str("module", name).Str("step", step).Msg("module activation failed")
	return &ModuleError{Name: name, Op: "activate", Err: fmt.Errorf("%w: %s: %w", ErrActivation, step, err)}
}

// deactivate runs the OnDeactivate hook of name. Caller holds transition.
func (l *Loader) deactivate(ctx context.Context, name string) {
	l.mu.RLock()
	rec, ok := l.records[name]
	l.mu.RUnlock()
	if !ok || !rec.Capabilities.Has(CapDeactivate) {
		return
	}
	if err := rec.Instance.(Deactivator).OnDeactivate(ctx); err != nil {
		l.logger.Warn().Err(err).Str("module", name).Msg("module deactivation failed")
		return
	}
	l.logger.Debug().Str("module", name).Msg("module deactivated")
}

// Notify calls fn on the current module when it has every capability in
// need, then re-renders it. It reports whether fn was called.
func (l *Loader) Notify(ctx context.Context, need Capabilities, fn func(ctx context.Context, m Module) error) (bool, error) {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.RLock()
	rec, ok := l.records[l.current]
	l.mu.RUnlock()
	if !ok || !rec.Capabilities.Has(need) {
		return false, nil
	}

	if err := fn(ctx, rec.Instance); err != nil {
		return true, &ModuleError{Name: rec.Descriptor.Name, Op: "notify", Err: err}
	}
	if rec.Capabilities.Has(CapRender) {
		l.container.Reset()
		if err := rec.Instance.(Renderer).Render(ctx, l.container); err != nil {
			return true, &ModuleError{Name: rec.Descriptor.Name, Op: "render", Err: err}
		}
	}
	return true, nil
}

// ShowPanel replaces the container contents with what fn writes, under the
// same lock as activation. The current module is left as is.
func (l *Loader) ShowPanel(fn func(w io.Writer) error) error {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.container.Reset()
	return fn(l.container)
}

// IsModuleLoaded reports whether name is in the load cache.
func (l *Loader) IsModuleLoaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[name]
	return ok
}

// ModuleInstance returns the cached instance of name.
func (l *Loader) ModuleInstance(name string) (Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[name]
	if !ok {
		return nil, false
	}
	return rec.Instance, true
}

// Record returns a copy of the load cache entry of name.
func (l *Loader) Record(name string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// CurrentModule returns the name of the active module, or "".
func (l *Loader) CurrentModule() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Available returns every registered descriptor in registration order.
func (l *Loader) Available() []Descriptor {
	out := make([]Descriptor, 0, len(l.order))
	for _, n := range l.order {
		out = append(out, l.descriptors[n])
	}
	return out
}

// Descriptor returns the descriptor registered under name.
func (l *Loader) Descriptor(name string) (Descriptor, bool) {
	d, ok := l.descriptors[name]
	return d, ok
}

// Stylesheets returns the stylesheets of loaded modules in registration order.
func (l *Loader) Stylesheets() [][]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out [][]byte
	for _, n := range l.order {
		if rec, ok := l.records[n]; ok && len(rec.Stylesheet) > 0 {
			out = append(out, rec.Stylesheet)
		}
	}
	return out
}

// UnloadModule runs the module's Cleanup hook and evicts it.
// Unloading the active module clears the current pointer.
func (l *Loader) UnloadModule(name string) bool {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.Lock()
	rec, ok := l.records[name]
	if ok {
		delete(l.records, name)
		if l.current == name {
			l.current = ""
		}
	}
	l.mu.Unlock()
	if !ok {
		return false
	}

	l.cleanup(rec)
	l.logger.Info().Str("module", name).Msg("module unloaded")
	return true
}

// ClearCache runs every Cleanup hook and empties the load cache.
func (l *Loader) ClearCache() int {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.Lock()
	recs := l.records
	l.records = make(map[string]*Record)
	l.current = ""
	l.mu.Unlock()

	for _, rec := range recs {
		l.cleanup(rec)
	}
	l.container.Reset()
	l.logger.Info().Int("modules", len(recs)).Msg("module cache cleared")
	return len(recs)
}

func (l *Loader) cleanup(rec *Record) {
	if !rec.Capabilities.Has(CapCleanup) {
		return
	}
	if err := rec.Instance.(Cleaner).Cleanup(); err != nil {
		l.logger.Warn().Err(err).Str("module", rec.Descriptor.Name).Msg("module cleanup failed")
	}
}

// recordFootprint is the rough memory estimate per loaded module.
const recordFootprint = 1024

// Stats describes the load cache.
type Stats struct {
	TotalModules     int      `json:"totalModules"`
	AvailableModules int      `json:"availableModules"`
	CurrentModule    string   `json:"currentModule"`
	LoadedModules    []string `json:"loadedModules"`
	MemoryUsage      int      `json:"memoryUsage"` // estimate, bytes
}

// Stats returns a snapshot of the load cache.
func (l *Loader) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	loaded := make([]string, 0, len(l.records))
	for n := range l.records {
		loaded = append(loaded, n)
	}
	sort.Strings(loaded)

	return Stats{
		TotalModules:     len(l.records),
		AvailableModules: len(l.descriptors),
		CurrentModule:    l.current,
		LoadedModules:    loaded,
		MemoryUsage:      len(l.records) * recordFootprint,
	}
}

// IsUnregistered reports whether err means the module name is unknown.
func IsUnregistered(err error) bool {
	return errors.Is(err, ErrModuleUnregistered)
}

var loadingTmpl = template.Must(template.New("loading").Parse(
	`<div class="module-loading" data-module="{{.Name}}"><div class="loading-spinner"></div><p>Carregando {{if .Title}}{{.Title}}{{else}}módulo{{end}}...</p></div>`))
