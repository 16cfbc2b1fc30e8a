// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"slices"
	"sync"
)

// Registry is the table of module records keyed by name. Records live in an
// index-addressed arena so that teardown can walk them in insertion order.
type Registry struct {
	mu      sync.RWMutex
	records []*Module
	index   map[string]int
}

func newRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Lookup returns the record registered under name.
func (r *Registry) Lookup(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.records[i], true
}

// Len returns the number of registered records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.index))
	for name := range r.index {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Modules returns the records in insertion order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.records)
}

// add returns the record registered under name, creating an empty one if
// there is none. A created record is visible to Lookup immediately.
func (r *Registry) add(name string) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[name]; ok {
		return r.records[i]
	}
	m := &Module{id: len(r.records), name: name, ns: newNamespace()}
	r.records = append(r.records, m)
	r.index[name] = m.id
	return m
}

// owns reports whether m is a record of this registry.
func (r *Registry) owns(m *Module) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return m.id >= 0 && m.id < len(r.records) && r.records[m.id] == m
}

// release clears every namespace and only then drops the records.
func (r *Registry) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.records {
		m.ns.Clear()
	}
	clear(r.records)
	r.records = nil
	r.index = make(map[string]int)
}
