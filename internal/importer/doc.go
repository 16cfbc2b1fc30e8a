// SPDX-License-Identifier: MPL-2.0

// Package importer implements module loading: the registry of module
// records, the five loader strategies (source, compiled, builtin, frozen and
// extension) and the Runtime that sequences them.
//
// A Runtime is an explicit context object. Hosts create one with New, call
// Init, import and reload modules, and finally call Teardown:
//
//	rt, err := importer.New(importer.Options{Compiler: c, Executor: e, Path: dirs})
//	if err != nil { ... }
//	if err := rt.Init(); err != nil { ... }
//	defer rt.Teardown()
//	mod, err := rt.Import(ctx, "foo")
//
// Imports are serialized by a single lock. An executing body may import
// other modules (or itself) through the Host it receives, using the context
// passed to it; such nested imports do not take the lock again. A module
// record is registered before its body executes, so a body that imports its
// own name, directly or through a cycle, gets the partially populated record
// instead of recursing.
//
// When a body fails, its record stays registered with whatever the body had
// bound so far, and the error is returned to the caller.
package importer
