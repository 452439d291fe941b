// Package script runs modules written as Go source through the yaegi
// interpreter.
//
// A script is a single Go file. Its descriptor's Constructor names a function
// with the signature
//
//	func() func(params map[string]string) (string, error)
//
// The outer function is called once per module instance; the returned render
// function is called on every Render with the current filters and any
// parameters supplied by Options.Params. Its output is written to the
// container verbatim.
//
// Only the standard library packages listed in Options.AllowedPackages may be
// imported.
package script

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/rs/zerolog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// RenderFunc is the per-instance function returned by a script constructor.
type RenderFunc = func(params map[string]string) (string, error)

// Factory is the signature a script constructor must have.
type Factory = func() func(params map[string]string) (string, error)

// ParamsFunc supplies extra render parameters for an instance, e.g. metrics
// fetched for the current filters.
type ParamsFunc func(ctx context.Context, env loader.Env, f dashboard.Filters) (map[string]string, error)

// DefaultAllowedPackages are the imports a script may use.
var DefaultAllowedPackages = []string{
	"bytes", "encoding/json", "fmt", "html", "html/template", "math",
	"sort", "strconv", "strings", "text/template", "time",
}

// Options configures a Resolver.
type Options struct {
	AllowedPackages []string      // nil = DefaultAllowedPackages
	RenderTimeout   time.Duration // 0 = 2s
	Params          ParamsFunc    // optional
	Logger          zerolog.Logger
}

// Resolver evaluates scripts. It implements loader.Resolver.
type Resolver struct {
	allowed map[string]bool
	timeout time.Duration
	params  ParamsFunc
	logger  zerolog.Logger
}

var _ loader.Resolver = (*Resolver)(nil)

// NewResolver creates a script resolver.
func NewResolver(opts Options) *Resolver {
	pkgs := opts.AllowedPackages
	if pkgs == nil {
		pkgs = DefaultAllowedPackages
	}
	allowed := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		allowed[p] = true
	}
	timeout := opts.RenderTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		allowed: allowed,
		timeout: timeout,
		params:  opts.Params,
		logger:  opts.Logger.With().Str("component", "script").Logger(),
	}
}

// Resolve evaluates src in a fresh interpreter and returns a constructor
// bound to the descriptor's constructor symbol.
func (r *Resolver) Resolve(ctx context.Context, d loader.Descriptor, src []byte) (loader.Constructor, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: empty script", loader.ErrScriptLoad)
	}
	pkg, err := r.inspect(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loader.ErrScriptLoad, err)
	}

	symbol := strings.TrimSpace(d.Constructor)
	if symbol == "" {
		return nil, fmt.Errorf("%w: descriptor names no constructor", loader.ErrConstructorMissing)
	}
	if !strings.Contains(symbol, ".") {
		symbol = pkg + "." + symbol
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: load stdlib: %w", loader.ErrScriptLoad, err)
	}
	if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
		return nil, fmt.Errorf("%w: evaluate: %w", loader.ErrScriptLoad, err)
	}

	v, err := i.EvalWithContext(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", loader.ErrConstructorMissing, symbol, err)
	}
	factory, ok := v.Interface().(Factory)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %s, want func() func(map[string]string) (string, error)",
			loader.ErrConstructorMissing, symbol, v.Type())
	}

	r.logger.Debug().Str("module", d.Name).Str("constructor", symbol).Msg("script evaluated")

	return func(env loader.Env) (loader.Module, error) {
		render := factory()
		if render == nil {
			return nil, fmt.Errorf("%s returned a nil render function", symbol)
		}
		return &module{
			env:     env,
			render:  render,
			timeout: r.timeout,
			params:  r.params,
		}, nil
	}, nil
}

// inspect parses src and checks its imports. It returns the package name.
func (r *Resolver) inspect(src []byte) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), "module.go", src, parser.ImportsOnly)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	var forbidden []string
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return "", fmt.Errorf("parse import %s: %w", imp.Path.Value, err)
		}
		if !r.allowed[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return "", fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}
	return f.Name.Name, nil
}
