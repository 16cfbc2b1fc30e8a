// SPDX-License-Identifier: MPL-2.0

package native

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/invowk/modload/pkg/extension"
)

type stubLibrary map[string]any

func (s stubLibrary) Lookup(symbol string) (any, error) {
	v, ok := s[symbol]
	if !ok {
		return nil, errors.New("plugin: symbol " + symbol + " not found")
	}
	return v, nil
}

type otherHandle struct{}

func (otherHandle) Path() string { return "/elsewhere" }

func TestLookupEntryShapes(t *testing.T) {
	t.Parallel()

	fn := func(register extension.RegisterFunc) error { return register("a", nil) }
	var variable extension.EntryFunc = fn
	var unset extension.EntryFunc

	h := &Handle{path: "/lib/amodule.so", lib: stubLibrary{
		"Init_func":  fn,
		"Init_var":   &variable,
		"Init_unset": &unset,
		"Init_int":   new(int),
	}}
	l := NewLoader()

	tests := []struct {
		symbol  string
		wantErr bool
	}{
		{"Init_func", false},
		{"Init_var", false},
		{"Init_unset", true},
		{"Init_int", true},
		{"Init_missing", true},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()
			entry, err := l.Lookup(h, tt.symbol)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Lookup() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error: %v", err)
			}
			var got string
			_ = entry(func(name string, _ map[string]any) error {
				got = name
				return nil
			})
			if got != "a" {
				t.Errorf("entry registered %q, want a", got)
			}
		})
	}
}

func TestLookupRejectsForeignHandle(t *testing.T) {
	t.Parallel()

	if _, err := NewLoader().Lookup(otherHandle{}, "Init_x"); err == nil {
		t.Error("Lookup() with a foreign handle should fail")
	}
}

func TestOpenFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nonemodule.so")
	if _, err := NewLoader().Open(path); err == nil {
		t.Error("Open() of a missing library should fail")
	}
}

func TestOpenReusesHandle(t *testing.T) {
	t.Parallel()

	l := NewLoader()
	h := &Handle{path: "/lib/xmodule.so", lib: stubLibrary{}}
	l.opened[h.path] = h

	got, err := l.Open(h.path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if got != h {
		t.Error("Open() should return the cached handle")
	}
}
