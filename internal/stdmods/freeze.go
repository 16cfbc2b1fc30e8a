// SPDX-License-Identifier: MPL-2.0

package stdmods

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/resolve"
	"github.com/invowk/modload/pkg/program"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// ErrEmptyManifest is returned for a manifest that names no modules.
var ErrEmptyManifest = errors.New("freeze manifest lists no modules")

type (
	// Manifest lists the modules to freeze into a bundle:
	//
	//	output = "app.mfz"
	//
	//	[[module]]
	//	name = "greet"
	//	source = "lib/greet.msh"
	Manifest struct {
		Output  string        `toml:"output"`
		Modules []FrozenEntry `toml:"module"`
	}

	// FrozenEntry is one module of a Manifest. Source defaults to
	// NAME.msh and is relative to the manifest's directory.
	FrozenEntry struct {
		Name   string `toml:"name"`
		Source string `toml:"source"`
	}
)

// LoadManifest parses the TOML manifest at path and resolves relative
// sources against its directory.
func LoadManifest(afs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest TOML: %w", err)
	}
	if len(m.Modules) == 0 {
		return nil, ErrEmptyManifest
	}

	dir := filepath.Dir(path)
	for i := range m.Modules {
		e := &m.Modules[i]
		if err := resolve.ValidateName(e.Name); err != nil {
			return nil, err
		}
		if e.Source == "" {
			e.Source = e.Name + resolve.SourceSuffix
		}
		if !filepath.IsAbs(e.Source) {
			e.Source = filepath.Join(dir, e.Source)
		}
	}
	if m.Output != "" && !filepath.IsAbs(m.Output) {
		m.Output = filepath.Join(dir, m.Output)
	}
	return &m, nil
}

// Freeze compiles every module of m into a bundle.
func Freeze(ctx context.Context, afs afero.Fs, c importer.Compiler, m *Manifest) (program.Bundle, error) {
	b := program.Bundle{}
	for _, e := range m.Modules {
		if _, dup := b[e.Name]; dup {
			return nil, fmt.Errorf("freeze: module %s listed twice", e.Name)
		}
		src, err := afero.ReadFile(afs, e.Source)
		if err != nil {
			return nil, fmt.Errorf("freeze %s: %w", e.Name, err)
		}
		prog, err := c.Compile(ctx, src, "<frozen "+e.Name+">")
		if err != nil {
			return nil, fmt.Errorf("freeze %s: %w", e.Name, err)
		}
		if err := b.Add(e.Name, prog); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// WriteBundleFile writes b to path.
func WriteBundleFile(afs afero.Fs, path string, b program.Bundle) (err error) {
	f, err := afs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return program.WriteBundle(f, b)
}
