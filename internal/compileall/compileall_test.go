// SPDX-License-Identifier: MPL-2.0

package compileall

import (
	"context"
	"errors"
	"testing"

	"github.com/invowk/modload/internal/cachestore"
	"github.com/invowk/modload/internal/resolve"
	"github.com/invowk/modload/internal/shlang"
	"github.com/invowk/modload/internal/testutil"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, files map[string]string) Options {
	t.Helper()

	fs := afero.NewMemMapFs()
	testutil.WriteTree(t, fs, files, testutil.MTime)
	r, err := resolve.New(fs, nil, nil)
	require.NoError(t, err)
	return Options{Fs: fs, Resolver: r, Compiler: shlang.NewCompiler(), Workers: 2}
}

func TestRunCompilesEverySource(t *testing.T) {
	t.Parallel()

	opts := setup(t, map[string]string{
		"/lib/a.msh":        "x=1",
		"/lib/b.msh":        "y=2",
		"/lib/notes.txt":    "ignored",
		"/lib/sub/c.msh":    "z=3",
		"/other/d.msh":      "w=4",
		"/lib/extmodule.so": "\x7fELF",
	})

	results, err := Run(context.Background(), opts, "/lib", "/other")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "/lib/a.msh", results[0].Source)
	assert.Equal(t, "/lib/a.mshc", results[0].Cache)
	for _, r := range results {
		assert.Equal(t, StatusCompiled, r.Status, r.Source)
	}

	store := cachestore.New(opts.Fs)
	hdr, err := store.ReadHeader("/other/d.mshc")
	require.NoError(t, err)
	assert.Equal(t, uint32(1_700_000_000), hdr.SourceMTime)

	results, err = Run(context.Background(), opts, "/lib")
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, StatusUpToDate, r.Status, r.Source)
	}

	opts.Force = true
	results, err = Run(context.Background(), opts, "/lib")
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, StatusCompiled, r.Status, r.Source)
	}
}

func TestRunReportsFailuresWithoutStopping(t *testing.T) {
	t.Parallel()

	opts := setup(t, map[string]string{
		"/lib/good.msh": "x=1",
		"/lib/bad.msh":  "if then (",
	})

	results, err := Run(context.Background(), opts, "/lib")
	require.ErrorIs(t, err, ErrFailed)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[0].Status)
	require.Error(t, results[0].Err)
	assert.Equal(t, StatusCompiled, results[1].Status)
}

func TestRunMissingDirectory(t *testing.T) {
	t.Parallel()

	opts := setup(t, nil)
	_, err := Run(context.Background(), opts, "/nope")
	require.Error(t, err)
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	opts := setup(t, map[string]string{"/lib/a.msh": "x=1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, opts, "/lib")
	require.True(t, errors.Is(err, context.Canceled))
}
