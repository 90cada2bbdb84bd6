package deps

import (
	"maps"
	"slices"

	"github.com/percussion/deployer/pkg/depmap"
	"github.com/percussion/deployer/pkg/errors"
)

// Factory builds the handler for one dependency type.
type Factory func(def depmap.Def) (Handler, error)

// Catalog maps handler references, as written in a dependency map document,
// to handler factories.
type Catalog map[string]Factory

// Has reports whether the catalog can build the referenced handler.
// It is suitable as a [depmap.HandlerCheck].
func (c Catalog) Has(ref string) bool {
	_, ok := c[ref]
	return ok
}

// Refs returns the handler references in sorted order.
func (c Catalog) Refs() []string {
	return slices.Sorted(maps.Keys(c))
}

// Manager resolves dependency types to their handlers.
//
// A Manager is built once and never modified, so it is safe for concurrent
// use by independent jobs.
type Manager struct {
	defs     *depmap.Map
	handlers map[Type]Handler
}

// NewManager builds a handler for every def in m using the catalog.
// It fails with a configuration error if a handler reference cannot be
// resolved or a factory fails.
func NewManager(m *depmap.Map, c Catalog) (*Manager, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "dependency map is not loaded")
	}
	mgr := &Manager{defs: m, handlers: make(map[Type]Handler, m.Len())}
	for _, def := range m.Defs() {
		f, ok := c[def.Handler]
		if !ok {
			return nil, errors.New(errors.ErrCodeConfiguration, "dependency type %q: cannot resolve handler %q", def.Type, def.Handler)
		}
		h, err := f(def)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "dependency type %q: build handler %q", def.Type, def.Handler)
		}
		if h == nil {
			return nil, errors.New(errors.ErrCodeConfiguration, "dependency type %q: handler %q is nil", def.Type, def.Handler)
		}
		mgr.handlers[Type(def.Type)] = h
	}
	return mgr, nil
}

// Handler returns the handler for t.
func (m *Manager) Handler(t Type) (Handler, bool) {
	h, ok := m.handlers[t]
	return h, ok
}

// MustHandler returns the handler for t or a configuration error.
func (m *Manager) MustHandler(t Type) (Handler, error) {
	h, ok := m.handlers[t]
	if !ok {
		return nil, errors.New(errors.ErrCodeConfiguration, "no handler registered for dependency type %q", t)
	}
	return h, nil
}

// Def returns the dependency map entry for t.
func (m *Manager) Def(t Type) (depmap.Def, bool) {
	return m.defs.Def(string(t))
}

// Types returns all registered types in dependency map order.
func (m *Manager) Types() []Type {
	names := m.defs.Types()
	types := make([]Type, len(names))
	for i, n := range names {
		types[i] = Type(n)
	}
	return types
}

// Map returns the dependency map the manager was built from.
func (m *Manager) Map() *depmap.Map { return m.defs }
