// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/invowk/modload/internal/cachestore"
	"github.com/invowk/modload/internal/resolve"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

type (
	// Options configures a Runtime. Compiler and Executor are required.
	Options struct {
		// Fs is the filesystem searched for modules. Defaults to the OS filesystem.
		Fs afero.Fs
		// Path is the initial search path.
		Path []string
		// Formats is the descriptor table. Defaults to resolve.DefaultTable.
		Formats []resolve.FormatDescriptor
		// Builtins is the static builtin table.
		Builtins []BuiltinEntry
		// Frozen maps module names to bodies encoded with program.Encode.
		Frozen map[string][]byte
		// Compiler compiles source files.
		Compiler Compiler
		// Executor runs program bodies.
		Executor Executor
		// Native loads extension modules. When nil, extension files are not
		// considered during resolution.
		Native NativeLoader
		// DisableCacheWrite stops compiled sources from being cached.
		DisableCacheWrite bool
		// Logger receives import traces. Defaults to discarding them.
		Logger *log.Logger
	}

	// Stats counts loader activity since the runtime was created.
	Stats struct {
		Compiles    int64
		CacheHits   int64
		CacheWrites int64
		Executions  int64
	}

	// Runtime is the import orchestrator. It owns the module registry between
	// Init and Teardown and serializes every import behind one lock.
	Runtime struct {
		fs         afero.Fs
		resolver   *resolve.Resolver
		cache      *cachestore.Store
		builtins   map[string]BuiltinEntry
		frozen     map[string][]byte
		compiler   Compiler
		executor   Executor
		native     NativeLoader
		writeCache bool
		log        *log.Logger

		// importMu is the global import lock. Nested imports made on the
		// same call chain carry ownership in their context (see acquire).
		importMu sync.Mutex

		pathMu sync.RWMutex
		path   []string

		regMu sync.RWMutex
		reg   *Registry

		compiles    atomic.Int64
		cacheHits   atomic.Int64
		cacheWrites atomic.Int64
		executions  atomic.Int64
	}

	lockOwnerKey struct{}
)

var errMissingCollaborator = errors.New("importer: compiler and executor are required")

// New creates a Runtime. Call Init before importing.
func New(opts Options) (*Runtime, error) {
	if opts.Compiler == nil || opts.Executor == nil {
		return nil, errMissingCollaborator
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	table := opts.Formats
	if table == nil {
		table = resolve.DefaultTable()
	}
	if opts.Native == nil {
		table = slices.DeleteFunc(slices.Clone(table), func(d resolve.FormatDescriptor) bool {
			return d.Kind == resolve.FileExtension
		})
	}
	resolver, err := resolve.New(opts.Fs, table, opts.Logger)
	if err != nil {
		return nil, err
	}

	builtins := make(map[string]BuiltinEntry, len(opts.Builtins))
	for _, b := range opts.Builtins {
		builtins[b.Name] = b
	}

	return &Runtime{
		fs:         opts.Fs,
		resolver:   resolver,
		cache:      cachestore.New(opts.Fs, cachestore.WithLogger(opts.Logger)),
		builtins:   builtins,
		frozen:     maps.Clone(opts.Frozen),
		compiler:   opts.Compiler,
		executor:   opts.Executor,
		native:     opts.Native,
		writeCache: !opts.DisableCacheWrite,
		log:        opts.Logger,
		path:       slices.Clone(opts.Path),
	}, nil
}

// Init creates an empty registry.
func (rt *Runtime) Init() error {
	rt.importMu.Lock()
	defer rt.importMu.Unlock()
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	if rt.reg != nil {
		return ErrAlreadyInitialized
	}
	rt.reg = newRegistry()
	return nil
}

// Teardown clears the namespace of every registered module, breaking any
// reference cycles between them, and then releases the registry. Module
// handles held by callers stay valid but empty. Teardown must not be called
// from a running module body.
func (rt *Runtime) Teardown() {
	rt.importMu.Lock()
	defer rt.importMu.Unlock()
	rt.regMu.Lock()
	reg := rt.reg
	rt.reg = nil
	rt.regMu.Unlock()
	if reg != nil {
		reg.release()
	}
}

// Initialized reports whether the runtime is between Init and Teardown.
func (rt *Runtime) Initialized() bool {
	rt.regMu.RLock()
	defer rt.regMu.RUnlock()
	return rt.reg != nil
}

// Registry returns the live registry.
func (rt *Runtime) Registry() (*Registry, error) {
	rt.regMu.RLock()
	defer rt.regMu.RUnlock()
	if rt.reg == nil {
		return nil, ErrNotInitialized
	}
	return rt.reg, nil
}

// SetPath replaces the search path. It takes effect for the next import.
func (rt *Runtime) SetPath(dirs []string) {
	rt.pathMu.Lock()
	defer rt.pathMu.Unlock()
	rt.path = slices.Clone(dirs)
}

// Path returns a copy of the search path.
func (rt *Runtime) Path() []string {
	rt.pathMu.RLock()
	defer rt.pathMu.RUnlock()
	return slices.Clone(rt.path)
}

// Resolver returns the resolver used for path lookups.
func (rt *Runtime) Resolver() *resolve.Resolver { return rt.resolver }

// Stats returns a snapshot of the loader counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Compiles:    rt.compiles.Load(),
		CacheHits:   rt.cacheHits.Load(),
		CacheWrites: rt.cacheWrites.Load(),
		Executions:  rt.executions.Load(),
	}
}

// AddModule returns the module registered under name, registering an empty
// one first if needed. Builtin initializers and extensions use it to
// register themselves.
func (rt *Runtime) AddModule(name string) (*Module, error) {
	reg, err := rt.Registry()
	if err != nil {
		return nil, newImportError(name, "", ErrNotInitialized, nil)
	}
	return reg.add(name), nil
}

// Lookup returns the module registered under name without importing it.
func (rt *Runtime) Lookup(name string) (*Module, bool) {
	reg, err := rt.Registry()
	if err != nil {
		return nil, false
	}
	return reg.Lookup(name)
}

// Import returns the module registered under name, loading and executing
// it first if this is the first import. A module that is still executing is
// returned as is, which is what terminates circular imports.
func (rt *Runtime) Import(ctx context.Context, name string) (*Module, error) {
	if err := resolve.ValidateName(name); err != nil {
		return nil, newImportError(name, "", ErrInvalidName, err)
	}

	ctx, unlock := rt.acquire(ctx)
	defer unlock()

	reg, err := rt.Registry()
	if err != nil {
		return nil, newImportError(name, "", ErrNotInitialized, nil)
	}
	if m, ok := reg.Lookup(name); ok {
		return m, nil
	}

	c, err := rt.locate(name)
	if err != nil {
		return nil, err
	}
	return rt.dispatch(ctx, reg, c, nil)
}

// Reload re-runs the loader for target, which must be a module registered
// in this runtime. The record keeps its identity; its namespace is updated
// in place.
func (rt *Runtime) Reload(ctx context.Context, target any) (*Module, error) {
	m, ok := target.(*Module)
	if !ok || m == nil {
		return nil, newImportError(describe(target), "", ErrNotAModule, nil)
	}

	ctx, unlock := rt.acquire(ctx)
	defer unlock()

	reg, err := rt.Registry()
	if err != nil {
		return nil, newImportError(m.name, "", ErrNotInitialized, nil)
	}
	if !reg.owns(m) {
		return nil, newImportError(m.name, "", ErrNotAModule, errors.New("module is not registered"))
	}

	c, err := rt.locate(m.name)
	if err != nil {
		return nil, err
	}
	return rt.dispatch(ctx, reg, c, m)
}

// ReloadName reloads the module registered under name.
func (rt *Runtime) ReloadName(ctx context.Context, name string) (*Module, error) {
	m, ok := rt.Lookup(name)
	if !ok {
		return nil, newImportError(name, "", ErrNotAModule, errors.New("module is not registered"))
	}
	return rt.Reload(ctx, m)
}

// acquire takes the global import lock unless ctx shows that the caller
// already holds it. The returned context must be used for nested imports.
func (rt *Runtime) acquire(ctx context.Context) (context.Context, func()) {
	if owner, _ := ctx.Value(lockOwnerKey{}).(*Runtime); owner == rt {
		return ctx, func() {}
	}
	rt.importMu.Lock()
	return context.WithValue(ctx, lockOwnerKey{}, rt), rt.importMu.Unlock
}

func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "<non-module value>"
}
