// SPDX-License-Identifier: MPL-2.0

// Package native opens extension modules built as Go plugins.
package native

import (
	"errors"
	"fmt"
	"sync"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/pkg/extension"
)

var (
	// ErrUnsupported is returned on platforms without plugin support.
	ErrUnsupported = errors.New("native extensions are not supported on this platform")
	// ErrBadSymbol is returned when an exported symbol is not an entry point.
	ErrBadSymbol = errors.New("symbol is not an extension entry point")
)

type (
	// Loader opens each library path at most once. It implements
	// importer.NativeLoader.
	Loader struct {
		mu     sync.Mutex
		opened map[string]*Handle
	}

	// Handle is an opened library.
	Handle struct {
		path string
		lib  library
	}

	// library is the platform view of an opened plugin.
	library interface {
		Lookup(symbol string) (any, error)
	}
)

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{opened: make(map[string]*Handle)}
}

// Path returns the file the handle was opened from.
func (h *Handle) Path() string { return h.path }

// Open loads the library at path. Go plugins cannot be unloaded, so a
// second Open of the same path returns the first handle.
func (l *Loader) Open(path string) (importer.NativeHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.opened[path]; ok {
		return h, nil
	}
	lib, err := open(path)
	if err != nil {
		return nil, err
	}
	h := &Handle{path: path, lib: lib}
	l.opened[path] = h
	return h, nil
}

// Lookup resolves symbol in h as an entry point.
func (l *Loader) Lookup(h importer.NativeHandle, symbol string) (extension.EntryFunc, error) {
	handle, ok := h.(*Handle)
	if !ok {
		return nil, fmt.Errorf("foreign handle for %s", h.Path())
	}
	sym, err := handle.lib.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return asEntry(symbol, sym)
}

// asEntry accepts exported functions and exported EntryFunc variables.
func asEntry(symbol string, sym any) (extension.EntryFunc, error) {
	switch fn := sym.(type) {
	case func(extension.RegisterFunc) error:
		return fn, nil
	case extension.EntryFunc:
		return fn, nil
	case *extension.EntryFunc:
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	}
	return nil, fmt.Errorf("%s: %w (%T)", symbol, ErrBadSymbol, sym)
}
