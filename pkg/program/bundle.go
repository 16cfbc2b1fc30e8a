// SPDX-License-Identifier: MPL-2.0

package program

import (
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Bundle is a set of frozen module bodies keyed by module name. Values are
// bodies as produced by Encode, so they can be placed in a frozen table
// without re-encoding.
type Bundle map[string][]byte

// Names returns the bundle's module names in sorted order.
func (b Bundle) Names() []string {
	return slices.Sorted(maps.Keys(b))
}

// Add encodes p and stores it under name.
func (b Bundle) Add(name string, p *Program) error {
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("freeze %s: %w", name, err)
	}
	b[name] = data
	return nil
}

// WriteBundle writes b to w, prefixed with Magic in little-endian order.
func WriteBundle(w io.Writer, b Bundle) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], Magic)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write bundle header: %w", err)
	}
	if err := msgpack.NewEncoder(w).Encode(map[string][]byte(b)); err != nil {
		return fmt.Errorf("write bundle body: %w", err)
	}
	return nil
}

// ReadBundle reads a bundle written by WriteBundle. Every entry is decoded
// once so that a corrupt bundle is rejected up front.
func ReadBundle(r io.Reader) (Bundle, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &BadFormatError{Reason: "short bundle header", Err: err}
	}
	if got := binary.LittleEndian.Uint32(hdr[:]); got != Magic {
		return nil, &BadFormatError{Reason: fmt.Sprintf("bundle magic %#08x, want %#08x", got, Magic)}
	}

	var raw map[string][]byte
	if err := msgpack.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &BadFormatError{Reason: "bundle body", Err: err}
	}
	for name, data := range raw {
		if _, err := Decode(data); err != nil {
			return nil, fmt.Errorf("bundle entry %q: %w", name, err)
		}
	}
	return Bundle(raw), nil
}
