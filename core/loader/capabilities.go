package loader

import "strings"

// Capabilities is the set of lifecycle hooks an instance implements.
type Capabilities uint8

const (
	CapInit Capabilities = 1 << iota
	CapRender
	CapActivate
	CapDeactivate
	CapCleanup
	CapFilters
	CapUpload
)

var capNames = []struct {
	c    Capabilities
	name string
}{
	{CapInit, "init"},
	{CapRender, "render"},
	{CapActivate, "activate"},
	{CapDeactivate, "deactivate"},
	{CapCleanup, "cleanup"},
	{CapFilters, "filters"},
	{CapUpload, "upload"},
}

// CapabilitiesOf inspects m once and returns the hooks it implements.
func CapabilitiesOf(m Module) Capabilities {
	var c Capabilities
	if _, ok := m.(Initializer); ok {
		c |= CapInit
	}
	if _, ok := m.(Renderer); ok {
		c |= CapRender
	}
	if _, ok := m.(Activator); ok {
		c |= CapActivate
	}
	if _, ok := m.(Deactivator); ok {
		c |= CapDeactivate
	}
	if _, ok := m.(Cleaner); ok {
		c |= CapCleanup
	}
	if _, ok := m.(FiltersListener); ok {
		c |= CapFilters
	}
	if _, ok := m.(UploadListener); ok {
		c |= CapUpload
	}
	return c
}

// Has reports whether every capability in want is present.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// Names lists the capabilities in declaration order.
func (c Capabilities) Names() []string {
	names := make([]string, 0, len(capNames))
	for _, cn := range capNames {
		if c.Has(cn.c) {
			names = append(names, cn.name)
		}
	}
	return names
}

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), ",")
}
