// SPDX-License-Identifier: MPL-2.0

package shlang

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/pkg/program"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrWrongLang is returned when a program was not produced by Compiler.
	ErrWrongLang = errors.New("program language is not " + Lang)

	// ErrUsage is returned for malformed import, reload and attr commands.
	ErrUsage = errors.New("usage error")

	// shellVars are maintained by the interpreter and never exported.
	shellVars = map[string]bool{
		"HOME": true, "UID": true, "EUID": true, "GID": true, "PWD": true,
		"OLDPWD": true, "IFS": true, "OPTIND": true, "PPID": true,
		"RANDOM": true, "SECONDS": true, "DIRSTACK": true, "?": true,
	}
)

type (
	// Executor runs shell programs with a module namespace as their scope.
	Executor struct {
		stdout io.Writer
		stderr io.Writer
		env    []string
		dir    string
	}

	// ExecOption configures an Executor.
	ExecOption func(*Executor)
)

// WithStdio sets the writers bodies print to. Defaults discard output.
func WithStdio(stdout, stderr io.Writer) ExecOption {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithEnv sets the environment bodies start from. Defaults to os.Environ().
func WithEnv(env []string) ExecOption {
	return func(e *Executor) { e.env = slices.Clone(env) }
}

// WithDir sets the working directory of bodies.
func WithDir(dir string) ExecOption {
	return func(e *Executor) { e.dir = dir }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecOption) *Executor {
	e := &Executor{stdout: io.Discard, stderr: io.Discard}
	for _, opt := range opts {
		opt(e)
	}
	if e.env == nil {
		e.env = os.Environ()
	}
	return e
}

// Execute runs prog. String bindings already in the namespace are visible as
// shell variables, and variables set by the body are written back when it
// finishes, or when it imports another module. A body that ends with a
// non-zero status fails.
func (e *Executor) Execute(ctx context.Context, prog *program.Program, mod *importer.Module, host importer.Host) error {
	if prog.Lang != Lang {
		return fmt.Errorf("%s: %w (got %q)", prog.Origin, ErrWrongLang, prog.Lang)
	}
	file, err := parse(prog.Code, prog.Origin)
	if err != nil {
		return err
	}

	base := envMap(e.env)
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(e.environ(mod)...)),
		interp.StdIO(nil, e.stdout, e.stderr),
		interp.ExecHandlers(e.builtins(mod, host, base)),
	}
	if e.dir != "" {
		opts = append(opts, interp.Dir(e.dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	runErr := runner.Run(ctx, file)
	for name, vr := range runner.Vars {
		bind(mod.Namespace(), base, name, vr)
	}

	if runErr != nil {
		var status interp.ExitStatus
		if errors.As(runErr, &status) {
			return fmt.Errorf("%s: exit status %d", prog.Origin, status)
		}
		return runErr
	}
	return nil
}

// environ is the process environment overlaid with the string bindings of
// mod's namespace.
func (e *Executor) environ(mod *importer.Module) []string {
	env := slices.Clone(e.env)
	for key, v := range mod.Namespace().Snapshot() {
		if !syntax.ValidName(key) {
			continue
		}
		switch v := v.(type) {
		case string:
			env = append(env, key+"="+v)
		case []string:
			env = append(env, key+"="+strings.Join(v, " "))
		}
	}
	return env
}

func (e *Executor) builtins(mod *importer.Module, host importer.Host, base map[string]string) func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			switch args[0] {
			case "import":
				return doImport(ctx, args, mod, host, base)
			case "reload":
				return doReload(ctx, args, mod, host)
			case "attr":
				return doAttr(ctx, args, mod)
			default:
				return next(ctx, args)
			}
		}
	}
}

func doImport(ctx context.Context, args []string, mod *importer.Module, host importer.Host, base map[string]string) error {
	var name, alias string
	switch {
	case len(args) == 2:
		name, alias = args[1], args[1]
	case len(args) == 4 && args[2] == "as":
		name, alias = args[1], args[3]
	default:
		return fmt.Errorf("%w: import NAME [as ALIAS]", ErrUsage)
	}

	hc := interp.HandlerCtx(ctx)
	hc.Env.Each(func(key string, vr expand.Variable) bool {
		bind(mod.Namespace(), base, key, vr)
		return true
	})

	m, err := host.Import(ctx, name)
	if err != nil {
		return err
	}
	mod.Namespace().Set(alias, m)
	return nil
}

func doReload(ctx context.Context, args []string, mod *importer.Module, host importer.Host) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: reload ALIAS", ErrUsage)
	}
	target, _ := mod.Namespace().Get(args[1])
	_, err := host.Reload(ctx, target)
	return err
}

// doAttr prints a binding of an imported module. A missing binding is an
// ordinary command failure, not a fatal error.
func doAttr(ctx context.Context, args []string, mod *importer.Module) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: attr ALIAS KEY", ErrUsage)
	}
	hc := interp.HandlerCtx(ctx)

	other, ok := mod.Namespace().Module(args[1])
	if !ok {
		fmt.Fprintf(hc.Stderr, "attr: %s is not a module\n", args[1])
		return interp.ExitStatus(2)
	}
	v, ok := other.Namespace().Get(args[2])
	if !ok {
		fmt.Fprintf(hc.Stderr, "attr: module %s has no attribute %s\n", other.Name(), args[2])
		return interp.ExitStatus(1)
	}
	fmt.Fprintln(hc.Stdout, Format(v))
	return nil
}

// bind copies a shell variable into ns unless it is interpreter state or was
// inherited unchanged from the process environment.
func bind(ns *importer.Namespace, base map[string]string, name string, vr expand.Variable) {
	if !vr.Set || shellVars[name] {
		return
	}
	switch vr.Kind {
	case expand.Indexed:
		ns.Set(name, slices.Clone(vr.List))
		return
	case expand.Associative, expand.NameRef:
		return
	}
	if inherited, ok := base[name]; ok && inherited == vr.Str {
		return
	}
	ns.Set(name, vr.Str)
}

// Format renders a namespace value the way attr prints it.
func Format(v any) string {
	switch v := v.(type) {
	case *importer.Module:
		return v.String()
	case []string:
		return strings.Join(v, " ")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
