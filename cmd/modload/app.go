// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/invowk/modload/internal/config"
	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/issue"
	"github.com/invowk/modload/internal/native"
	"github.com/invowk/modload/internal/shlang"
	"github.com/invowk/modload/internal/stdmods"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root of the CLI layer: command handlers receive an App and build
	// sessions from it.
	App struct {
		Config    config.Provider
		Fs        afero.Fs
		lookupEnv func(string) (string, bool)
		stdout    io.Writer
		stderr    io.Writer
		verbose   *bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    config.Provider
		Fs        afero.Fs
		LookupEnv func(string) (string, bool)
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// session is one configured, initialized import runtime.
	session struct {
		cfg        *config.Config
		cfgPath    string
		log        *log.Logger
		rt         *importer.Runtime
		compiler   *shlang.Compiler
		frozen     map[string][]byte
		extensions bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}

	return &App{
		Config:    deps.Config,
		Fs:        deps.Fs,
		lookupEnv: deps.LookupEnv,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}, nil
}

// loadConfig loads the configuration and the logger configured by it.
func (a *App) loadConfig(ctx context.Context, flags *rootFlags) (*config.Config, string, *log.Logger, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: flags.configPath,
		LookupEnv:      a.lookupEnv,
	})
	if err != nil {
		return nil, "", nil, err
	}
	if flags.noCache {
		cfg.WriteCache = false
	}
	if flags.verbose {
		cfg.UI.Verbose = true
	}
	return cfg, path, newLogger(a.stderr, cfg), nil
}

// searchPath puts --path directories in front of the configured ones. An
// empty result means the current directory.
func searchPath(flags *rootFlags, cfg *config.Config) []string {
	dirs := append(slices.Clone(flags.paths), cfg.SearchPath...)
	if len(dirs) == 0 {
		return []string{"."}
	}
	return dirs
}

// openSession loads the configuration and returns an initialized runtime
// with the standard builtins, the frozen table and sys installed. Callers
// must close the session.
func (a *App) openSession(ctx context.Context, flags *rootFlags) (*session, error) {
	cfg, cfgPath, logger, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}

	compiler := shlang.NewCompiler()
	frozen, err := stdmods.Frozen(ctx, compiler)
	if err != nil {
		return nil, fmt.Errorf("failed to compile frozen modules: %w", err)
	}
	if err := stdmods.LoadBundles(a.Fs, cfg.FrozenBundles, frozen); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load frozen bundles").
			WithSuggestion("Rebuild the bundle with 'modload freeze'").
			WithSuggestion("Remove it from frozen_bundles in your config").
			Wrap(err).
			BuildError()
	}

	var loader importer.NativeLoader
	extensions := cfg.Extensions.Enabled && native.Supported()
	if extensions {
		loader = native.NewLoader()
	}

	rt, err := importer.New(importer.Options{
		Fs:       a.Fs,
		Path:     searchPath(flags, cfg),
		Formats:  cfg.ResolverTable(),
		Builtins: stdmods.Builtins(),
		Frozen:   frozen,
		Compiler: compiler,
		Executor: shlang.NewExecutor(
			shlang.WithStdio(a.stdout, a.stderr),
			shlang.WithEnv(os.Environ()),
		),
		Native:            loader,
		DisableCacheWrite: !cfg.WriteCache,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	if err := rt.Init(); err != nil {
		return nil, err
	}

	if _, err := stdmods.InstallSys(ctx, rt, stdmods.SysInfo{Version: Version, Argv: os.Args}); err != nil {
		rt.Teardown()
		return nil, err
	}

	logger.Debug("runtime ready", "path", rt.Path(), "config", cfgPath, "extensions", extensions)
	return &session{
		cfg:        cfg,
		cfgPath:    cfgPath,
		log:        logger,
		rt:         rt,
		compiler:   compiler,
		frozen:     frozen,
		extensions: extensions,
	}, nil
}

func (s *session) close() {
	st := s.rt.Stats()
	s.log.Debug("runtime stats", "compiles", st.Compiles, "cache_hits", st.CacheHits,
		"cache_writes", st.CacheWrites, "executions", st.Executions)
	s.rt.Teardown()
}

// importModule imports name and wraps failures for display.
func (s *session) importModule(ctx context.Context, name string) (*importer.Module, error) {
	mod, err := s.rt.Import(ctx, name)
	if err != nil {
		return nil, wrapModuleError(err, "import module", name)
	}
	origin := mod.Origin()
	s.log.Info("import "+name, "kind", origin.Kind, "from", origin.Path)
	return mod, nil
}

// wrapModuleError attaches the matching issue guide and short suggestions.
func wrapModuleError(err error, operation, name string) error {
	ec := issue.NewErrorContext().WithOperation(operation).WithResource(name)
	if guide := issue.ForError(err); guide != nil {
		switch guide.Id() {
		case issue.ModuleNotFoundId:
			ec.WithSuggestion("Run 'modload resolve -v " + name + "' to see every probed path")
			ec.WithSuggestion("Add a directory with --path or MODLOAD_PATH=+DIR")
		case issue.CompileFailedId:
			ec.WithSuggestion("Fix the syntax error, then run 'modload compile' to check")
		case issue.BadCacheFormatId:
			ec.WithSuggestion("Recompile from source with 'modload compile --force'")
		case issue.ExecutionFailedId:
			ec.WithSuggestion("Run with --verbose to trace nested imports")
		}
	}
	return ec.Wrap(err).BuildError()
}
