// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"errors"
	"strings"

	"github.com/invowk/modload/internal/resolve"
)

var (
	// ErrNotFound is returned when no table or search path entry provides the name.
	ErrNotFound = resolve.ErrNotFound
	// ErrInvalidName is returned for names that cannot be resolved at all.
	ErrInvalidName = resolve.ErrInvalidName
	// ErrBadCacheFormat is returned when a compiled body cannot be used and
	// there is no source to recompile from.
	ErrBadCacheFormat = errors.New("bad cache format")
	// ErrCannotReinit is returned when an internal builtin is initialized twice.
	ErrCannotReinit = errors.New("cannot re-init internal module")
	// ErrExtensionNotRegistered is returned when an extension entry point is
	// missing, fails, or does not register its module.
	ErrExtensionNotRegistered = errors.New("extension did not register module")
	// ErrNotAModule is returned when reload is given something other than a
	// module owned by this runtime.
	ErrNotAModule = errors.New("reload() argument must be module")
	// ErrExecution is returned when a module body fails.
	ErrExecution = errors.New("module execution failed")
	// ErrCompile is returned when the compiler rejects a source file.
	ErrCompile = errors.New("compile failed")
	// ErrLoad is returned when a located file cannot be read or opened.
	ErrLoad = errors.New("load failed")
	// ErrBuiltinMissing is returned when a builtin initializer does not
	// register its module.
	ErrBuiltinMissing = errors.New("builtin initializer did not register module")
	// ErrNotInitialized is returned when the runtime is used outside Init and Teardown.
	ErrNotInitialized = errors.New("import runtime not initialized")
	// ErrAlreadyInitialized is returned by a second Init without Teardown.
	ErrAlreadyInitialized = errors.New("import runtime already initialized")
)

// ImportError is the error type of every failed import or reload. Both the
// classification (Kind) and the underlying cause are reachable with errors.Is.
type ImportError struct {
	// Name is the module name that was being imported.
	Name string
	// Path is the located file, if any.
	Path string
	// Kind is one of the package sentinels.
	Kind error
	// Err is the underlying cause (optional).
	Err error
}

func newImportError(name, path string, kind, cause error) *ImportError {
	return &ImportError{Name: name, Path: path, Kind: kind, Err: cause}
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	var sb strings.Builder
	sb.WriteString("import ")
	sb.WriteString(e.Name)
	if e.Path != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Path)
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the classification and the cause.
func (e *ImportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
