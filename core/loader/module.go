// Package loader loads dashboard modules on demand and drives their lifecycle.
//
// A module is described by a static Descriptor. LoadModule fetches the
// module's stylesheet and script, resolves a Constructor through the Resolver
// registered for the descriptor's runtime, builds one instance and activates
// it. Exactly one module is active per Loader. Loaded modules stay cached
// until UnloadModule or ClearCache.
//
// Lifecycle hooks are optional interfaces. They are detected once when the
// instance is built and recorded as Capabilities.
package loader

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/rs/zerolog"
)

// Runtimes understood by the stock resolvers.
const (
	RuntimeNative = "native"
	RuntimeScript = "script"
)

// Descriptor is the static registration metadata of a module.
type Descriptor struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
	Script      string `yaml:"script" json:"script,omitempty"`         // asset location, optional for native modules
	Stylesheet  string `yaml:"stylesheet" json:"stylesheet,omitempty"` // asset location
	Constructor string `yaml:"constructor" json:"constructor"`
	Runtime     string `yaml:"runtime" json:"runtime,omitempty"` // "" = native
}

// RuntimeName returns the descriptor runtime, defaulting to native.
func (d Descriptor) RuntimeName() string {
	if r := strings.ToLower(strings.TrimSpace(d.Runtime)); r != "" {
		return r
	}
	return RuntimeNative
}

// Module is a live module instance.
type Module interface {
	Name() string
}

// Initializer is implemented by modules that need one-time setup.
// Init runs at most once per instance, on first activation.
type Initializer interface {
	Init(ctx context.Context) error
}

// Renderer draws the module into the shared container.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// Activator is notified after the module has rendered and became current.
type Activator interface {
	OnActivate(ctx context.Context) error
}

// Deactivator is notified when another module takes over the container.
type Deactivator interface {
	OnDeactivate(ctx context.Context) error
}

// Cleaner releases resources when the module is evicted.
type Cleaner interface {
	Cleanup() error
}

// FiltersListener reacts to a change of the dashboard filters.
type FiltersListener interface {
	OnFiltersChanged(ctx context.Context, f dashboard.Filters) error
}

// UploadListener reacts to a completed results upload.
type UploadListener interface {
	OnDataUploaded(ctx context.Context, info dashboard.UploadInfo) error
}

// Env is what a Constructor receives. It identifies the session the
// instance is built for.
type Env struct {
	Descriptor Descriptor
	SessionID  string
	Token      string
	Logger     zerolog.Logger

	// Filters returns the shell's current filters. May be nil.
	Filters func() dashboard.Filters
}

// CurrentFilters returns the shell's filters, or the zero value.
func (e Env) CurrentFilters() dashboard.Filters {
	if e.Filters == nil {
		return dashboard.Filters{}
	}
	return e.Filters()
}

// Constructor builds a module instance.
type Constructor func(env Env) (Module, error)

// Resolver turns a descriptor and its script source into a Constructor.
// Failures wrap ErrScriptLoad or ErrConstructorMissing.
type Resolver interface {
	Resolve(ctx context.Context, d Descriptor, script []byte) (Constructor, error)
}

// Record is one entry of the load cache.
type Record struct {
	Instance     Module
	Descriptor   Descriptor
	LoadedAt     time.Time
	Capabilities Capabilities
	Stylesheet   []byte

	initialized bool
}
