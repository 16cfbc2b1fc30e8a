// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/invowk/modload/internal/cachestore"
	"github.com/invowk/modload/pkg/extension"
	"github.com/invowk/modload/pkg/program"

	"github.com/spf13/afero"
)

// candidate is a located module, tagged with the strategy that loads it.
type candidate struct {
	kind    Kind
	name    string
	path    string
	builtin BuiltinEntry
	frozen  []byte
}

// locate consults the builtin table, then the frozen table, then the search path.
func (rt *Runtime) locate(name string) (candidate, error) {
	if b, ok := rt.builtins[name]; ok {
		return candidate{kind: KindBuiltin, name: name, builtin: b}, nil
	}
	if blob, ok := rt.frozen[name]; ok {
		return candidate{kind: KindFrozen, name: name, frozen: blob}, nil
	}

	loc, err := rt.resolver.Resolve(name, rt.Path())
	if err != nil {
		if errors.Is(err, ErrInvalidName) {
			return candidate{}, newImportError(name, "", ErrInvalidName, err)
		}
		return candidate{}, newImportError(name, "", ErrNotFound, err)
	}
	return candidate{kind: kindOf(loc.Format.Kind), name: name, path: loc.Path}, nil
}

// dispatch runs the strategy for c. When existing is non-nil the load is a
// reload and must reuse that record.
func (rt *Runtime) dispatch(ctx context.Context, reg *Registry, c candidate, existing *Module) (*Module, error) {
	switch c.kind {
	case KindBuiltin:
		return rt.loadBuiltin(ctx, reg, c, existing)
	case KindFrozen:
		prog, err := rt.loadFrozen(c)
		if err != nil {
			return nil, err
		}
		return rt.execute(ctx, reg, c, prog, existing)
	case KindSource:
		prog, err := rt.loadSource(ctx, c)
		if err != nil {
			return nil, err
		}
		return rt.execute(ctx, reg, c, prog, existing)
	case KindCompiled:
		prog, err := rt.loadCompiled(c)
		if err != nil {
			return nil, err
		}
		return rt.execute(ctx, reg, c, prog, existing)
	case KindExtension:
		return rt.loadExtension(reg, c)
	default:
		return nil, newImportError(c.name, c.path, ErrLoad, fmt.Errorf("unsupported module kind %d", c.kind))
	}
}

// execute registers the record before running the body so that imports of
// c.name made by the body find it. A failed body leaves the record
// registered with whatever it bound before failing.
func (rt *Runtime) execute(ctx context.Context, reg *Registry, c candidate, prog *program.Program, existing *Module) (*Module, error) {
	mod := existing
	if mod == nil {
		mod = reg.add(c.name)
	}
	mod.bindOrigin(Origin{Kind: c.kind, Path: c.path})

	rt.executions.Add(1)
	if err := rt.executor.Execute(ctx, prog, mod, rt); err != nil {
		return nil, newImportError(c.name, c.path, ErrExecution, err)
	}
	mod.markInitialized()

	rt.log.Debug("import", "name", c.name, "kind", c.kind, "from", originLabel(c))
	return mod, nil
}

func (rt *Runtime) loadBuiltin(ctx context.Context, reg *Registry, c candidate, existing *Module) (*Module, error) {
	origin := Origin{Kind: KindBuiltin}

	if c.builtin.Init == nil {
		if existing != nil {
			return nil, newImportError(c.name, "", ErrCannotReinit, nil)
		}
		mod := reg.add(c.name)
		mod.bindOrigin(origin)
		mod.markInitialized()
		return mod, nil
	}

	if err := c.builtin.Init(ctx, rt); err != nil {
		return nil, newImportError(c.name, "", ErrExecution, err)
	}
	mod, ok := reg.Lookup(c.name)
	if !ok {
		return nil, newImportError(c.name, "", ErrBuiltinMissing, nil)
	}
	mod.bindOrigin(origin)
	mod.markInitialized()
	rt.log.Debug("import", "name", c.name, "kind", KindBuiltin)
	return mod, nil
}

func (rt *Runtime) loadFrozen(c candidate) (*program.Program, error) {
	prog, err := program.Decode(c.frozen)
	if err != nil {
		return nil, newImportError(c.name, "", ErrBadCacheFormat, err)
	}
	return prog, nil
}

// loadSource prefers a valid sibling cache and otherwise compiles the
// source, writing a fresh cache on a best-effort basis.
func (rt *Runtime) loadSource(ctx context.Context, c candidate) (*program.Program, error) {
	mtime, err := cachestore.SourceMTime(rt.fs, c.path)
	if err != nil {
		return nil, newImportError(c.name, c.path, ErrLoad, err)
	}

	cachePath := rt.resolver.CachePath(c.path)
	if cachePath != "" {
		prog, err := rt.cache.ReadValid(cachePath, mtime)
		switch {
		case err == nil:
			rt.cacheHits.Add(1)
			rt.log.Debug("# code object read", "path", cachePath)
			return prog, nil
		case errors.Is(err, cachestore.ErrBadFormat):
			rt.log.Warn("ignoring malformed cache", "path", cachePath, "err", err)
		case errors.Is(err, cachestore.ErrStale), errors.Is(err, fs.ErrNotExist):
		default:
			rt.log.Debug("cache unreadable", "path", cachePath, "err", err)
		}
	}

	src, err := afero.ReadFile(rt.fs, c.path)
	if err != nil {
		return nil, newImportError(c.name, c.path, ErrLoad, err)
	}
	prog, err := rt.compiler.Compile(ctx, src, c.path)
	if err != nil {
		return nil, newImportError(c.name, c.path, ErrCompile, err)
	}
	rt.compiles.Add(1)

	if cachePath != "" && rt.writeCache {
		if err := rt.cache.Write(prog, cachePath, mtime); err != nil {
			rt.log.Debug("cache not written", "path", cachePath, "err", err)
		} else {
			rt.cacheWrites.Add(1)
		}
	}
	return prog, nil
}

func (rt *Runtime) loadCompiled(c candidate) (*program.Program, error) {
	prog, err := rt.cache.ReadCompiled(c.path)
	if err != nil {
		return nil, newImportError(c.name, c.path, ErrBadCacheFormat, err)
	}
	return prog, nil
}

// loadExtension runs the library's entry point, which must register the
// module itself. On reload the entry point registers into the existing
// record because registration is keyed by name.
func (rt *Runtime) loadExtension(reg *Registry, c candidate) (*Module, error) {
	if rt.native == nil {
		return nil, newImportError(c.name, c.path, ErrLoad, errors.New("native extensions are disabled"))
	}

	h, err := rt.native.Open(c.path)
	if err != nil {
		return nil, newImportError(c.name, c.path, ErrLoad, err)
	}
	entry, err := rt.native.Lookup(h, extension.EntrySymbol(c.name))
	if err != nil {
		return nil, newImportError(c.name, c.path, ErrExtensionNotRegistered, err)
	}

	register := func(name string, members map[string]any) error {
		mod := reg.add(name)
		mod.ns.Update(members)
		return nil
	}
	if err := entry(register); err != nil {
		return nil, newImportError(c.name, c.path, ErrExtensionNotRegistered, err)
	}

	mod, ok := reg.Lookup(c.name)
	if !ok {
		return nil, newImportError(c.name, c.path, ErrExtensionNotRegistered, nil)
	}
	mod.bindOrigin(Origin{Kind: KindExtension, Path: c.path})
	mod.markInitialized()
	rt.log.Debug("import", "name", c.name, "kind", KindExtension, "from", c.path)
	return mod, nil
}

func originLabel(c candidate) string {
	if c.path != "" {
		return c.path
	}
	return c.kind.marker()
}
