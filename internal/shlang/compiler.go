// SPDX-License-Identifier: MPL-2.0

// Package shlang implements module bodies written in a POSIX/bash shell
// dialect, interpreted in-process by mvdan.cc/sh.
//
// A module body is an ordinary shell script. Shell variables left set when
// the body finishes become the module's namespace, and three extra commands
// are available inside a body:
//
//	import NAME [as ALIAS]   import NAME and bind it under ALIAS (default NAME)
//	reload ALIAS             reload the module bound to ALIAS
//	attr ALIAS KEY           print KEY from the module bound to ALIAS
//
// Before import runs, the variables set so far are copied into the
// namespace, so a module importing its importer sees a partial namespace.
package shlang

import (
	"bytes"
	"context"
	"fmt"

	"github.com/invowk/modload/pkg/program"

	"mvdan.cc/sh/v3/syntax"
)

// Lang identifies programs produced by Compiler.
const Lang = "sh"

// Compiler parses shell source and stores it in minified form.
type Compiler struct{}

// NewCompiler returns a shell compiler.
func NewCompiler() *Compiler { return &Compiler{} }

// Compile parses src and returns the minified program. Syntax errors carry
// origin and the line and column of the problem.
func (c *Compiler) Compile(ctx context.Context, src []byte, origin string) (*program.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := parse(src, origin)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := syntax.NewPrinter(syntax.Minify(true)).Print(&buf, file); err != nil {
		return nil, fmt.Errorf("%s: print: %w", origin, err)
	}
	return &program.Program{Lang: Lang, Origin: origin, Code: buf.Bytes()}, nil
}

func parse(src []byte, origin string) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(bytes.NewReader(src), origin)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	return file, nil
}
