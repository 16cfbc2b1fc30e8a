// SPDX-License-Identifier: MPL-2.0

package importer

import "github.com/invowk/modload/internal/resolve"

// Kind identifies which loader strategy produced a module.
const (
	KindSource Kind = iota + 1
	KindCompiled
	KindBuiltin
	KindFrozen
	KindExtension
)

// Kind is the tagged variant over the five module origins.
type Kind int

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindCompiled:
		return "compiled"
	case KindBuiltin:
		return "builtin"
	case KindFrozen:
		return "frozen"
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// marker is bound as __file__ for modules without a backing file.
func (k Kind) marker() string {
	switch k {
	case KindBuiltin:
		return "<built-in>"
	case KindFrozen:
		return "<frozen>"
	default:
		return ""
	}
}

func kindOf(fk resolve.FileKind) Kind {
	switch fk {
	case resolve.FileSource:
		return KindSource
	case resolve.FileCompiled:
		return KindCompiled
	case resolve.FileExtension:
		return KindExtension
	default:
		return 0
	}
}
