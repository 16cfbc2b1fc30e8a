// SPDX-License-Identifier: MPL-2.0

//go:build (linux || darwin || freebsd) && cgo

package native

import "plugin"

type pluginLibrary struct{ p *plugin.Plugin }

func (l pluginLibrary) Lookup(symbol string) (any, error) {
	return l.p.Lookup(symbol)
}

func open(path string) (library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return pluginLibrary{p: p}, nil
}

// Supported reports whether this build can open extensions.
func Supported() bool { return true }
