// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// MTime is the modification time WriteTree stamps on files. Cache headers
// store whole seconds, so it has no sub-second part.
var MTime = time.Unix(1_700_000_000, 0)

// WriteTree writes files (path to content) to fs, creating parent
// directories, and sets every file's modification time to mtime.
func WriteTree(t testing.TB, fs afero.Fs, files map[string]string, mtime time.Time) {
	t.Helper()
	for path, content := range files {
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
		Touch(t, fs, path, mtime)
	}
}

// Touch sets the access and modification times of path.
func Touch(t testing.TB, fs afero.Fs, path string, mtime time.Time) {
	t.Helper()
	if err := fs.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set times on %s: %v", path, err)
	}
}

// MustReadFile returns the content of path on fs.
func MustReadFile(t testing.TB, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

// MustChdir changes the current working directory to dir and returns a
// function restoring the original one.
func MustChdir(t testing.TB, dir string) func() {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
	return func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Errorf("failed to restore directory to %s: %v", originalWd, err)
		}
	}
}
