// SPDX-License-Identifier: MPL-2.0

//go:build !((linux || darwin || freebsd) && cgo)

package native

func open(string) (library, error) {
	return nil, ErrUnsupported
}

// Supported reports whether this build can open extensions.
func Supported() bool { return false }
