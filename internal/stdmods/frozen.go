// SPDX-License-Identifier: MPL-2.0

package stdmods

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"strings"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/resolve"
	"github.com/invowk/modload/pkg/program"

	"github.com/spf13/afero"
)

//go:embed frozen/*.msh
var frozenSources embed.FS

// Frozen compiles the embedded modules with c and returns the frozen table.
func Frozen(ctx context.Context, c importer.Compiler) (map[string][]byte, error) {
	entries, err := fs.ReadDir(frozenSources, "frozen")
	if err != nil {
		return nil, err
	}

	b := program.Bundle{}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), resolve.SourceSuffix)
		if !ok {
			continue
		}
		src, err := frozenSources.ReadFile(path.Join("frozen", e.Name()))
		if err != nil {
			return nil, err
		}
		prog, err := c.Compile(ctx, src, "<frozen "+name+">")
		if err != nil {
			return nil, fmt.Errorf("frozen module %s: %w", name, err)
		}
		if err := b.Add(name, prog); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// LoadBundles reads each bundle file and merges its modules into table.
// Later bundles override earlier ones.
func LoadBundles(afs afero.Fs, paths []string, table map[string][]byte) error {
	var errs []error
	for _, p := range paths {
		f, err := afs.Open(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b, err := program.ReadBundle(f)
		_ = f.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		maps.Copy(table, b)
	}
	return errors.Join(errs...)
}
