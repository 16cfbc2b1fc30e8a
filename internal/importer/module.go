// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

const (
	// NameKey is bound to the module name before the body runs.
	NameKey = "__name__"
	// FileKey is bound to the origin path, or a marker for modules without a file.
	FileKey = "__file__"
)

type (
	// Origin records where a module's current contents came from.
	Origin struct {
		Kind Kind
		Path string
	}

	// Namespace is the mutable identifier-to-value mapping owned by a module.
	// Values may reference other modules, so namespaces can form cycles.
	Namespace struct {
		mu   sync.RWMutex
		vars map[string]any
	}

	// Module is a registered module record. Its identity is stable for the
	// lifetime of the registry: reload updates it in place.
	Module struct {
		id   int
		name string
		ns   *Namespace

		mu          sync.RWMutex
		origin      Origin
		initialized bool
	}
)

func newNamespace() *Namespace {
	return &Namespace{vars: make(map[string]any)}
}

// Get returns the value bound to key.
func (n *Namespace) Get(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.vars[key]
	return v, ok
}

// Set binds key to v.
func (n *Namespace) Set(key string, v any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vars[key] = v
}

// Update binds every entry of vars.
func (n *Namespace) Update(vars map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	maps.Copy(n.vars, vars)
}

// Delete removes key.
func (n *Namespace) Delete(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.vars, key)
}

// Len returns the number of bindings.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vars)
}

// Keys returns the bound identifiers in sorted order.
func (n *Namespace) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Sorted(maps.Keys(n.vars))
}

// Snapshot returns a shallow copy of the bindings.
func (n *Namespace) Snapshot() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return maps.Clone(n.vars)
}

// Module returns the module bound to key, if the binding is a module.
func (n *Namespace) Module(key string) (*Module, bool) {
	v, ok := n.Get(key)
	if !ok {
		return nil, false
	}
	m, ok := v.(*Module)
	return m, ok
}

// Clear removes every binding.
func (n *Namespace) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	clear(n.vars)
}

// ID returns the module's arena index.
func (m *Module) ID() int { return m.id }

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Namespace returns the module's namespace.
func (m *Module) Namespace() *Namespace { return m.ns }

// Origin returns where the module's contents were last loaded from.
func (m *Module) Origin() Origin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.origin
}

// Initialized reports whether the module body last ran to completion.
func (m *Module) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// String returns a short description such as <module 'foo' from '/lib/foo.msh'>.
func (m *Module) String() string {
	o := m.Origin()
	switch {
	case o.Path != "":
		return fmt.Sprintf("<module '%s' from '%s'>", m.name, o.Path)
	case o.Kind != 0:
		return fmt.Sprintf("<module '%s' (%s)>", m.name, o.Kind)
	default:
		return fmt.Sprintf("<module '%s'>", m.name)
	}
}

// bindOrigin records o and binds the metadata keys before a body runs.
// It also clears the initialized flag so a failing reload is observable.
func (m *Module) bindOrigin(o Origin) {
	m.mu.Lock()
	m.origin = o
	m.initialized = false
	m.mu.Unlock()

	file := o.Path
	if file == "" {
		file = o.Kind.marker()
	}
	m.ns.Set(NameKey, m.name)
	if file != "" {
		m.ns.Set(FileKey, file)
	}
}

func (m *Module) markInitialized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
}
