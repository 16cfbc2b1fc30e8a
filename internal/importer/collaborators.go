// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"context"

	"github.com/invowk/modload/pkg/extension"
	"github.com/invowk/modload/pkg/program"
)

type (
	// Compiler turns source text into a program body.
	Compiler interface {
		Compile(ctx context.Context, src []byte, origin string) (*program.Program, error)
	}

	// Executor runs a program body with mod's namespace as its scope. Nested
	// imports made by the body must go through host with the ctx it was given.
	Executor interface {
		Execute(ctx context.Context, prog *program.Program, mod *Module, host Host) error
	}

	// NativeHandle is an opened native library.
	NativeHandle interface {
		Path() string
	}

	// NativeLoader opens native libraries and resolves their entry points.
	NativeLoader interface {
		Open(path string) (NativeHandle, error)
		Lookup(h NativeHandle, symbol string) (extension.EntryFunc, error)
	}

	// Host is the part of the runtime visible to executing bodies and to
	// builtin initializers.
	Host interface {
		Import(ctx context.Context, name string) (*Module, error)
		Reload(ctx context.Context, target any) (*Module, error)
		AddModule(name string) (*Module, error)
	}

	// BuiltinInit initializes a builtin module. It must register the module
	// through host.AddModule.
	BuiltinInit func(ctx context.Context, host Host) error

	// BuiltinEntry is a row of the static builtin table. A nil Init marks an
	// internal module that the host populates itself; such a module can be
	// imported but never re-initialized.
	BuiltinEntry struct {
		Name string
		Init BuiltinInit
	}
)
