// SPDX-License-Identifier: MPL-2.0

// Package compileall writes caches for every source module in a set of
// directories ahead of time.
package compileall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/invowk/modload/internal/cachestore"
	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/resolve"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Status values of a Result.
const (
	StatusCompiled Status = "compiled"
	StatusUpToDate Status = "up-to-date"
	StatusFailed   Status = "failed"
)

// ErrFailed is returned when at least one source did not compile.
var ErrFailed = errors.New("some modules failed to compile")

type (
	// Status is the outcome for one source file.
	Status string

	// Options configures Run.
	Options struct {
		Fs       afero.Fs
		Resolver *resolve.Resolver
		Compiler importer.Compiler
		// Force recompiles sources whose cache is already valid.
		Force bool
		// Workers bounds concurrent compilations. Zero means GOMAXPROCS.
		Workers int
		Logger  *log.Logger
	}

	// Result describes one source file.
	Result struct {
		Source string
		Cache  string
		Status Status
		Err    error
	}
)

// Run compiles every source module directly inside dirs. Results are
// sorted by source path. A compile failure does not stop the other files;
// it is reported in its Result and Run returns ErrFailed.
func Run(ctx context.Context, opts Options, dirs ...string) ([]Result, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	store := cachestore.New(opts.Fs, cachestore.WithLogger(opts.Logger))

	sources, err := listSources(opts, dirs)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := compileOne(gctx, opts, store, src)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b Result) int { return strings.Compare(a.Source, b.Source) })
	for _, r := range results {
		if r.Status == StatusFailed {
			return results, ErrFailed
		}
	}
	return results, nil
}

func compileOne(ctx context.Context, opts Options, store *cachestore.Store, src string) Result {
	r := Result{Source: src, Cache: opts.Resolver.CachePath(src)}

	mtime, err := cachestore.SourceMTime(opts.Fs, src)
	if err != nil {
		return r.fail(err)
	}
	if !opts.Force {
		if _, err := store.ReadValid(r.Cache, mtime); err == nil {
			r.Status = StatusUpToDate
			return r
		}
	}

	data, err := afero.ReadFile(opts.Fs, src)
	if err != nil {
		return r.fail(err)
	}
	prog, err := opts.Compiler.Compile(ctx, data, src)
	if err != nil {
		return r.fail(err)
	}
	if err := store.Write(prog, r.Cache, mtime); err != nil {
		return r.fail(err)
	}
	opts.Logger.Info("compiled", "source", src, "cache", r.Cache)
	r.Status = StatusCompiled
	return r
}

func (r Result) fail(err error) Result {
	r.Status = StatusFailed
	r.Err = err
	return r
}

// listSources returns the regular files in dirs that carry a source suffix
// and have a sibling cache path.
func listSources(opts Options, dirs []string) ([]string, error) {
	suffixes := opts.Resolver.Suffixes(resolve.FileSource)
	if len(suffixes) == 0 {
		return nil, errors.New("format table has no source suffix")
	}

	var out []string
	for _, dir := range dirs {
		entries, err := afero.ReadDir(opts.Fs, dir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			name, kind, ok := opts.Resolver.ModuleName(path)
			if !ok || kind != resolve.FileSource || resolve.ValidateName(name) != nil {
				continue
			}
			if opts.Resolver.CachePath(path) == "" {
				continue
			}
			out = append(out, path)
		}
	}
	return out, nil
}
