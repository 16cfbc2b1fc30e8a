// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func testTable() []FormatDescriptor {
	return []FormatDescriptor{
		{Suffix: "module.so", Mode: ModeBinary, Kind: FileExtension},
		{Suffix: ".src", Mode: ModeText, Kind: FileSource},
		{Suffix: ".cache", Mode: ModeBinary, Kind: FileCompiled},
	}
}

func newTestResolver(t *testing.T, files ...string) (*Resolver, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, f, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	r, err := New(fs, testTable(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r, fs
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    []string
		dirs     []string
		wantPath string
		wantKind FileKind
	}{
		{
			name:     "source only",
			files:    []string{"/lib/foo.src"},
			dirs:     []string{"/lib"},
			wantPath: "/lib/foo.src",
			wantKind: FileSource,
		},
		{
			name:     "source beats cache in same directory",
			files:    []string{"/lib/foo.src", "/lib/foo.cache"},
			dirs:     []string{"/lib"},
			wantPath: "/lib/foo.src",
			wantKind: FileSource,
		},
		{
			name:     "extension beats source in same directory",
			files:    []string{"/lib/foo.src", "/lib/foomodule.so"},
			dirs:     []string{"/lib"},
			wantPath: "/lib/foomodule.so",
			wantKind: FileExtension,
		},
		{
			name:     "first directory wins over better suffix later",
			files:    []string{"/a/foo.cache", "/b/foo.src"},
			dirs:     []string{"/a", "/b"},
			wantPath: "/a/foo.cache",
			wantKind: FileCompiled,
		},
		{
			name:     "cache only",
			files:    []string{"/lib/foo.cache"},
			dirs:     []string{"/missing", "/lib"},
			wantPath: "/lib/foo.cache",
			wantKind: FileCompiled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, _ := newTestResolver(t, tt.files...)
			loc, err := r.Resolve("foo", tt.dirs)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if loc.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", loc.Path, tt.wantPath)
			}
			if loc.Format.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", loc.Format.Kind, tt.wantKind)
			}
		})
	}
}

func TestResolveSkipsDirectories(t *testing.T) {
	t.Parallel()

	r, fs := newTestResolver(t, "/b/foo.src")
	if err := fs.MkdirAll("/a/foo.src", 0o755); err != nil {
		t.Fatal(err)
	}

	loc, err := r.Resolve("foo", []string{"/a", "/b"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if loc.Path != "/b/foo.src" {
		t.Errorf("Path = %q, want /b/foo.src", loc.Path)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestResolver(t, "/lib/bar.src")
	_, err := r.Resolve("foo", []string{"/lib", "/other"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error should be *NotFoundError, got %T", err)
	}
	if len(nf.Tried) != 6 {
		t.Errorf("tried %d paths, want 6: %v", len(nf.Tried), nf.Tried)
	}
}

func TestResolveEmptyDirIsRelative(t *testing.T) {
	t.Parallel()

	r, _ := newTestResolver(t, "foo.src")
	loc, err := r.Resolve("foo", []string{""})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if loc.Path != "foo.src" {
		t.Errorf("Path = %q, want foo.src", loc.Path)
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "a/b", `a\b`, "..", ".", "../etc", "nul\x00"} {
		err := ValidateName(name)
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ValidateName(%q) = %v, want it to match ErrNotFound", name, err)
		}
	}
	for _, name := range []string{"foo", "foo_bar", "a.b", "a..b", "...", "os"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
}

func TestCachePathRoundTrip(t *testing.T) {
	t.Parallel()

	r, _ := newTestResolver(t)
	src := filepath.Join("/lib", "foo.src")

	cache := r.CachePath(src)
	if cache != "/lib/foo.cache" {
		t.Fatalf("CachePath() = %q, want /lib/foo.cache", cache)
	}
	if back := r.SourcePath(cache); back != src {
		t.Errorf("SourcePath() = %q, want %q", back, src)
	}
	if got := r.CachePath("/lib/foo.txt"); got != "" {
		t.Errorf("CachePath(non-source) = %q, want empty", got)
	}
}

func TestCachePathWithoutCompiledDescriptor(t *testing.T) {
	t.Parallel()

	r, err := New(afero.NewMemMapFs(), []FormatDescriptor{{Suffix: ".src", Mode: ModeText, Kind: FileSource}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.CachePath("/lib/foo.src"); got != "" {
		t.Errorf("CachePath() = %q, want empty", got)
	}
}

func TestModuleName(t *testing.T) {
	t.Parallel()

	r, _ := newTestResolver(t)
	tests := []struct {
		path string
		name string
		kind FileKind
		ok   bool
	}{
		{"/lib/foo.src", "foo", FileSource, true},
		{"/lib/foo.cache", "foo", FileCompiled, true},
		{"/lib/foomodule.so", "foo", FileExtension, true},
		{"/lib/foo.txt", "", "", false},
		{"/lib/.src", "", "", false},
	}
	for _, tt := range tests {
		name, kind, ok := r.ModuleName(tt.path)
		if name != tt.name || kind != tt.kind || ok != tt.ok {
			t.Errorf("ModuleName(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.path, name, kind, ok, tt.name, tt.kind, tt.ok)
		}
	}
}

func TestValidateTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table []FormatDescriptor
	}{
		{"empty suffix", []FormatDescriptor{{Suffix: " ", Mode: ModeText, Kind: FileSource}}},
		{"separator", []FormatDescriptor{{Suffix: "/x", Mode: ModeText, Kind: FileSource}}},
		{"bad mode", []FormatDescriptor{{Suffix: ".x", Mode: "rw", Kind: FileSource}}},
		{"bad kind", []FormatDescriptor{{Suffix: ".x", Mode: ModeText, Kind: "script"}}},
		{"duplicate", []FormatDescriptor{
			{Suffix: ".x", Mode: ModeText, Kind: FileSource},
			{Suffix: ".x", Mode: ModeBinary, Kind: FileCompiled},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateTable(tt.table)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("ValidateTable() = %v, want ErrInvalidFormat", err)
			}
		})
	}

	if err := ValidateTable(DefaultTable()); err != nil {
		t.Errorf("DefaultTable() invalid: %v", err)
	}
}
