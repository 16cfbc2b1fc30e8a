// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"

	"github.com/invowk/modload/internal/importer"
)

// classes is checked in order. ErrExecution comes before the other import
// sentinels because a failed nested import is wrapped as an execution error
// of the outer module, and the outer failure is what the user acted on.
var classes = []struct {
	err error
	id  Id
}{
	{importer.ErrNotInitialized, RuntimeNotInitializedId},
	{importer.ErrExecution, ExecutionFailedId},
	{importer.ErrCompile, CompileFailedId},
	{importer.ErrInvalidName, InvalidModuleNameId},
	{importer.ErrNotFound, ModuleNotFoundId},
	{importer.ErrBadCacheFormat, BadCacheFormatId},
	{importer.ErrCannotReinit, CannotReinitId},
	{importer.ErrExtensionNotRegistered, ExtensionNotRegisteredId},
	{importer.ErrNotAModule, NotAModuleId},
	{importer.ErrLoad, LoadFailedId},
}

// ForError returns the catalog entry describing err, or nil.
func ForError(err error) *Issue {
	if err == nil {
		return nil
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return Get(c.id)
		}
	}
	return nil
}
