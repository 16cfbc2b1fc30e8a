// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ModeText marks files read as source text.
	ModeText Mode = "text"
	// ModeBinary marks files read as opaque bytes.
	ModeBinary Mode = "binary"

	// FileSource is a module source file handed to the compiler.
	FileSource FileKind = "source"
	// FileCompiled is a cache file holding a serialized program body.
	FileCompiled FileKind = "compiled"
	// FileExtension is a native shared library.
	FileExtension FileKind = "extension"

	// SourceSuffix is the default suffix of module source files.
	SourceSuffix = ".msh"
	// CompiledSuffix is the default suffix of compiled cache files.
	CompiledSuffix = ".mshc"
	// ExtensionSuffix is the default suffix of native extension libraries.
	ExtensionSuffix = "module.so"
)

var (
	// ErrInvalidFormat is the sentinel wrapped by InvalidFormatError.
	ErrInvalidFormat = errors.New("invalid format descriptor")
)

type (
	// Mode is the open mode of a located file.
	Mode string

	// FileKind classifies a located file.
	FileKind string

	// FormatDescriptor maps a filename suffix to how the file is loaded.
	FormatDescriptor struct {
		Suffix string   `json:"suffix" mapstructure:"suffix"`
		Mode   Mode     `json:"mode" mapstructure:"mode"`
		Kind   FileKind `json:"kind" mapstructure:"kind"`
	}

	// InvalidFormatError is returned when a FormatDescriptor is malformed.
	// It wraps ErrInvalidFormat for errors.Is() compatibility.
	InvalidFormatError struct {
		Descriptor FormatDescriptor
		Reason     string
	}
)

// DefaultTable returns the default descriptor table in precedence order:
// native extensions, then sources, then compiled caches.
func DefaultTable() []FormatDescriptor {
	return []FormatDescriptor{
		{Suffix: ExtensionSuffix, Mode: ModeBinary, Kind: FileExtension},
		{Suffix: SourceSuffix, Mode: ModeText, Kind: FileSource},
		{Suffix: CompiledSuffix, Mode: ModeBinary, Kind: FileCompiled},
	}
}

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format descriptor %q: %s", e.Descriptor.Suffix, e.Reason)
}

// Unwrap returns ErrInvalidFormat.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// String returns the mode name.
func (m Mode) String() string { return string(m) }

// String returns the kind name.
func (k FileKind) String() string { return string(k) }

// Validate returns an error if d cannot be used for lookups.
func (d FormatDescriptor) Validate() error {
	switch {
	case strings.TrimSpace(d.Suffix) == "":
		return &InvalidFormatError{Descriptor: d, Reason: "empty suffix"}
	case strings.ContainsAny(d.Suffix, `/\`):
		return &InvalidFormatError{Descriptor: d, Reason: "suffix contains a path separator"}
	}

	switch d.Mode {
	case ModeText, ModeBinary:
	default:
		return &InvalidFormatError{Descriptor: d, Reason: fmt.Sprintf("unknown mode %q", d.Mode)}
	}

	switch d.Kind {
	case FileSource, FileCompiled, FileExtension:
	default:
		return &InvalidFormatError{Descriptor: d, Reason: fmt.Sprintf("unknown kind %q", d.Kind)}
	}
	return nil
}

// ValidateTable validates every descriptor and rejects duplicate suffixes.
func ValidateTable(table []FormatDescriptor) error {
	seen := make(map[string]bool, len(table))
	for _, d := range table {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Suffix] {
			return &InvalidFormatError{Descriptor: d, Reason: "duplicate suffix"}
		}
		seen[d.Suffix] = true
	}
	return nil
}
