// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/resolve"

	"github.com/charmbracelet/log"
)

type (
	// Reloader is the part of the import runtime the watcher drives.
	Reloader interface {
		Lookup(name string) (*importer.Module, bool)
		Reload(ctx context.Context, target any) (*importer.Module, error)
	}

	// Namer maps a file path to the module name it would be imported under.
	Namer interface {
		ModuleName(path string) (string, resolve.FileKind, bool)
	}
)

// ModuleSuffixes are the file suffixes worth watching: sources, and caches
// for modules imported without a source.
func ModuleSuffixes(r *resolve.Resolver) []string {
	return slices.Concat(r.Suffixes(resolve.FileSource), r.Suffixes(resolve.FileCompiled))
}

// ReloadChanged returns an OnChange callback that reloads every registered
// module named by a changed file. Modules never imported are left alone.
// reloaded is called after each successful reload and may be nil.
func ReloadChanged(rt Reloader, names Namer, logger *log.Logger, reloaded func(*importer.Module)) func(context.Context, []string) error {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return func(ctx context.Context, changed []string) error {
		var errs []error
		done := make(map[string]bool)
		for _, path := range changed {
			name, kind, ok := names.ModuleName(path)
			if !ok || done[name] {
				continue
			}
			mod, ok := rt.Lookup(name)
			if !ok {
				logger.Debug("not imported, ignoring", "path", path)
				continue
			}
			// Loading a source module rewrites its cache; that write must
			// not trigger another reload.
			if kind == resolve.FileCompiled && mod.Origin().Kind == importer.KindSource {
				logger.Debug("cache of a source module, ignoring", "path", path)
				continue
			}
			done[name] = true

			if _, err := rt.Reload(ctx, mod); err != nil {
				logger.Error("reload", "module", name, "err", err)
				errs = append(errs, err)
				continue
			}
			logger.Info("reloaded", "module", name, "from", mod.Origin().Path)
			if reloaded != nil {
				reloaded(mod)
			}
		}
		return errors.Join(errs...)
	}
}
