// SPDX-License-Identifier: MPL-2.0

// Package resolve locates module files along a search path.
package resolve

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when no directory holds a file for the name.
	ErrNotFound = errors.New("module not found")
	// ErrInvalidName is the sentinel wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid module name")
)

type (
	// Location is a resolved module file.
	Location struct {
		Path   string
		Format FormatDescriptor
	}

	// NotFoundError lists every path that was probed for Name.
	// It wraps ErrNotFound for errors.Is() compatibility.
	NotFoundError struct {
		Name  string
		Tried []string
	}

	// InvalidNameError is returned for names that cannot map to a file.
	// It wraps ErrInvalidName for errors.Is() compatibility.
	InvalidNameError struct {
		Name   string
		Reason string
	}

	// Resolver walks a search path applying an ordered descriptor table.
	// It only reads the filesystem.
	Resolver struct {
		fs    afero.Fs
		table []FormatDescriptor
		log   *log.Logger
	}
)

// New creates a Resolver over fs. A nil table selects DefaultTable and a nil
// logger discards trace output.
func New(fs afero.Fs, table []FormatDescriptor, logger *log.Logger) (*Resolver, error) {
	if table == nil {
		table = DefaultTable()
	}
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{fs: fs, table: slices.Clone(table), log: logger}, nil
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no module named %q (%d paths tried)", e.Name, len(e.Tried))
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidName and ErrNotFound: no file can exist for an
// invalid name.
func (e *InvalidNameError) Unwrap() []error { return []error{ErrInvalidName, ErrNotFound} }

// ValidateName rejects names that would escape a search directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return &InvalidNameError{Name: name, Reason: "empty"}
	case strings.ContainsAny(name, "/\\\x00"):
		return &InvalidNameError{Name: name, Reason: "contains a path separator"}
	case name == "." || name == "..":
		return &InvalidNameError{Name: name, Reason: "is a directory reference"}
	}
	return nil
}

// Table returns a copy of the descriptor table.
func (r *Resolver) Table() []FormatDescriptor {
	return slices.Clone(r.table)
}

// Resolve returns the first regular file dir/name+suffix, trying every
// descriptor for a directory before moving to the next directory. An empty
// directory entry means the current directory.
func (r *Resolver) Resolve(name string, dirs []string) (Location, error) {
	if err := ValidateName(name); err != nil {
		return Location{}, err
	}

	tried := make([]string, 0, len(dirs)*len(r.table))
	for _, dir := range dirs {
		for _, d := range r.table {
			path := filepath.Join(dir, name+d.Suffix)
			tried = append(tried, path)
			r.log.Debug("# trying", "path", path)

			info, err := r.fs.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			return Location{Path: path, Format: d}, nil
		}
	}
	return Location{}, &NotFoundError{Name: name, Tried: tried}
}

// CachePath returns the sibling cache file of a source file, or "" when the
// table has no compiled descriptor or path does not carry a source suffix.
func (r *Resolver) CachePath(sourcePath string) string {
	compiled, ok := r.first(FileCompiled)
	if !ok {
		return ""
	}
	for _, d := range r.table {
		if d.Kind != FileSource {
			continue
		}
		if stem, found := strings.CutSuffix(sourcePath, d.Suffix); found {
			return stem + compiled.Suffix
		}
	}
	return ""
}

// SourcePath is the inverse of CachePath.
func (r *Resolver) SourcePath(cachePath string) string {
	compiled, ok := r.first(FileCompiled)
	if !ok {
		return ""
	}
	source, ok := r.first(FileSource)
	if !ok {
		return ""
	}
	stem, found := strings.CutSuffix(cachePath, compiled.Suffix)
	if !found {
		return ""
	}
	return stem + source.Suffix
}

// ModuleName returns the module name a file would be imported under, or
// false when its suffix is not in the table.
func (r *Resolver) ModuleName(path string) (string, FileKind, bool) {
	base := filepath.Base(path)
	for _, d := range r.table {
		if stem, found := strings.CutSuffix(base, d.Suffix); found && stem != "" {
			return stem, d.Kind, true
		}
	}
	return "", "", false
}

// Suffixes returns the suffixes registered for kind, in table order.
func (r *Resolver) Suffixes(kind FileKind) []string {
	var out []string
	for _, d := range r.table {
		if d.Kind == kind {
			out = append(out, d.Suffix)
		}
	}
	return out
}

func (r *Resolver) first(kind FileKind) (FormatDescriptor, bool) {
	for _, d := range r.table {
		if d.Kind == kind {
			return d, true
		}
	}
	return FormatDescriptor{}, false
}
