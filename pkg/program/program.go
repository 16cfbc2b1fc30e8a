// SPDX-License-Identifier: MPL-2.0

package program

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// formatVersion is bumped whenever the encoded layout of Program changes
	// incompatibly. Bumping it changes Magic and so invalidates every cache.
	formatVersion = 3

	// Magic tags cache files and frozen bundles written by this build.
	// The trailing CR LF bytes make text-mode corruption detectable.
	Magic uint32 = formatVersion | uint32('\r')<<16 | uint32('\n')<<24
)

// ErrBadFormat is returned when serialized bytes do not decode to a Program.
var ErrBadFormat = errors.New("malformed program body")

type (
	// Program is an executable module body. Code is opaque to everything
	// except the execution collaborator registered for Lang.
	Program struct {
		// Lang names the execution collaborator that understands Code.
		Lang string `msgpack:"lang"`
		// Origin is the label the body was compiled from (usually a path).
		Origin string `msgpack:"origin"`
		// Code is the compiled body.
		Code []byte `msgpack:"code"`
	}

	// BadFormatError describes why a body was rejected.
	// It wraps ErrBadFormat for errors.Is() compatibility.
	BadFormatError struct {
		Reason string
		Err    error
	}
)

// Error implements the error interface.
func (e *BadFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrBadFormat, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrBadFormat, e.Reason)
}

// Unwrap returns both the sentinel and the decoder error, if any.
func (e *BadFormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBadFormat}
	}
	return []error{ErrBadFormat, e.Err}
}

// Validate reports whether p has the shape of an executable body.
func (p *Program) Validate() error {
	if p == nil {
		return &BadFormatError{Reason: "nil program"}
	}
	if p.Lang == "" {
		return &BadFormatError{Reason: "missing language tag"}
	}
	return nil
}

// Encode serializes p.
func Encode(p *Program) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode program: %w", err)
	}
	return data, nil
}

// Decode deserializes a body produced by Encode. Bytes that decode to some
// other shape are rejected with a *BadFormatError.
func Decode(data []byte) (*Program, error) {
	if len(data) == 0 {
		return nil, &BadFormatError{Reason: "empty body"}
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields(true)

	var p Program
	if err := dec.Decode(&p); err != nil {
		return nil, &BadFormatError{Reason: "not a program", Err: err}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
