// SPDX-License-Identifier: MPL-2.0

// Package stdmods provides the modules every runtime ships with: the static
// builtin table, the frozen table and frozen bundle files.
package stdmods

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/invowk/modload/internal/importer"
)

const (
	// SysModule is populated by the host, not by an initializer.
	SysModule = "sys"
	// OSModule describes the operating system.
	OSModule = "os"
	// TimeModule exposes the clock at initialization time.
	TimeModule = "time"
)

// SysInfo is what the host publishes in the sys module.
type SysInfo struct {
	Version string
	Argv    []string
}

// now is replaced in tests.
var now = time.Now

// Builtins returns the static builtin table.
func Builtins() []importer.BuiltinEntry {
	return []importer.BuiltinEntry{
		{Name: SysModule},
		{Name: OSModule, Init: initOS},
		{Name: TimeModule, Init: initTime},
	}
}

// InstallSys imports sys and fills it with the runtime's view of itself.
// Hosts call it once after Init.
func InstallSys(ctx context.Context, rt *importer.Runtime, info SysInfo) (*importer.Module, error) {
	mod, err := rt.Import(ctx, SysModule)
	if err != nil {
		return nil, err
	}
	ns := mod.Namespace()
	ns.Set("version", info.Version)
	ns.Set("argv", append([]string(nil), info.Argv...))
	ns.Set("path", rt.Path())
	ns.Set("platform", runtime.GOOS+"/"+runtime.GOARCH)
	return mod, nil
}

func initOS(_ context.Context, host importer.Host) error {
	mod, err := host.AddModule(OSModule)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	mod.Namespace().Update(map[string]any{
		"name":    runtime.GOOS,
		"sep":     string(filepath.Separator),
		"pathsep": string(filepath.ListSeparator),
		"cwd":     cwd,
		"pid":     strconv.Itoa(os.Getpid()),
	})
	return nil
}

func initTime(_ context.Context, host importer.Host) error {
	mod, err := host.AddModule(TimeModule)
	if err != nil {
		return err
	}
	t := now().UTC()
	mod.Namespace().Update(map[string]any{
		"now":  t.Format(time.RFC3339),
		"unix": strconv.FormatInt(t.Unix(), 10),
	})
	return nil
}
