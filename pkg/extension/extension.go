// SPDX-License-Identifier: MPL-2.0

// Package extension defines the contract between the loader and natively
// loaded extension modules.
//
// An extension is a Go plugin exporting a function named by EntrySymbol:
//
//	package main
//
//	import "github.com/invowk/modload/pkg/extension"
//
//	func Init_greet(register extension.RegisterFunc) error {
//		return register("greet", map[string]any{"greeting": "hello"})
//	}
//
// The entry point must register a module with its own name. Loading fails
// if it does not.
package extension

import "strings"

// entryPrefix is prepended to the module name to form the entry symbol.
const entryPrefix = "Init_"

type (
	// RegisterFunc registers (or updates) the module called name and merges
	// members into its namespace.
	RegisterFunc func(name string, members map[string]any) error

	// EntryFunc is the signature of an extension entry point.
	EntryFunc func(register RegisterFunc) error
)

// EntrySymbol returns the symbol an extension for name must export.
func EntrySymbol(name string) string {
	return entryPrefix + name
}

// ModuleName is the inverse of EntrySymbol. It reports false for symbols
// that do not follow the entry point convention.
func ModuleName(symbol string) (string, bool) {
	name, ok := strings.CutPrefix(symbol, entryPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
