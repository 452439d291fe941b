package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds compiled Go module constructors keyed by constructor name.
// It is the Resolver for the native runtime and ignores script bytes.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor. Registering the same name twice is an error.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("register %q: name and constructor are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("constructor %q already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// MustRegister is Register that panics on error, for init-time wiring.
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Names returns the registered constructor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve implements Resolver.
func (r *Registry) Resolve(_ context.Context, d Descriptor, _ []byte) (Constructor, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[d.Constructor]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrConstructorMissing, d.Constructor)
	}
	return ctor, nil
}

var _ Resolver = (*Registry)(nil)
