// SPDX-License-Identifier: MPL-2.0

package importer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invowk/modload/internal/resolve"
	"github.com/invowk/modload/internal/testutil"
	"github.com/invowk/modload/pkg/extension"
	"github.com/invowk/modload/pkg/program"

	"github.com/spf13/afero"
)

const fakeLang = "fake"

type (
	// fakeCompiler passes source through unchanged and counts invocations.
	fakeCompiler struct {
		mu    sync.Mutex
		calls int
	}

	// fakeExecutor runs a tiny line-oriented language:
	//
	//	set KEY VALUE     bind a string
	//	import NAME       import NAME and bind it under NAME
	//	peek NAME KEY     copy NAME's KEY into peek.NAME.KEY (or "<unset>")
	//	fail              stop with an error
	fakeExecutor struct {
		mu   sync.Mutex
		runs map[string]int
	}

	fakeHandle struct{ path string }

	// fakeNative serves entry points from a map keyed by symbol.
	fakeNative struct {
		openErr error
		entries map[string]extension.EntryFunc
	}
)

var errBodyFailed = errors.New("body failed")

func (c *fakeCompiler) Compile(_ context.Context, src []byte, origin string) (*program.Program, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if bytes.Contains(src, []byte("syntax error")) {
		return nil, fmt.Errorf("%s: syntax error", origin)
	}
	return &program.Program{Lang: fakeLang, Origin: origin, Code: bytes.Clone(src)}, nil
}

func (c *fakeCompiler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{runs: make(map[string]int)}
}

func (e *fakeExecutor) Execute(ctx context.Context, prog *program.Program, mod *Module, host Host) error {
	e.mu.Lock()
	e.runs[mod.Name()]++
	e.mu.Unlock()

	sc := bufio.NewScanner(bytes.NewReader(prog.Code))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "set":
			mod.Namespace().Set(fields[1], fields[2])
		case "import":
			m, err := host.Import(ctx, fields[1])
			if err != nil {
				return err
			}
			mod.Namespace().Set(fields[1], m)
		case "peek":
			other, ok := mod.Namespace().Module(fields[1])
			val := "<unset>"
			if ok {
				if v, found := other.Namespace().Get(fields[2]); found {
					val = fmt.Sprint(v)
				}
			}
			mod.Namespace().Set("peek."+fields[1]+"."+fields[2], val)
		case "fail":
			return errBodyFailed
		}
	}
	return nil
}

func (e *fakeExecutor) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[name]
}

func (h fakeHandle) Path() string { return h.path }

func (n *fakeNative) Open(path string) (NativeHandle, error) {
	if n.openErr != nil {
		return nil, n.openErr
	}
	return fakeHandle{path: path}, nil
}

func (n *fakeNative) Lookup(_ NativeHandle, symbol string) (extension.EntryFunc, error) {
	fn, ok := n.entries[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	return fn, nil
}

// testTable mirrors the default table with short suffixes.
func testTable() []resolve.FormatDescriptor {
	return []resolve.FormatDescriptor{
		{Suffix: "module.so", Mode: resolve.ModeBinary, Kind: resolve.FileExtension},
		{Suffix: ".src", Mode: resolve.ModeText, Kind: resolve.FileSource},
		{Suffix: ".cache", Mode: resolve.ModeBinary, Kind: resolve.FileCompiled},
	}
}

type harness struct {
	fs       afero.Fs
	compiler *fakeCompiler
	executor *fakeExecutor
	rt       *Runtime
}

// newHarness builds an initialized runtime over an in-memory filesystem
// searching /lib. mutate may adjust the options before New is called.
func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		fs:       afero.NewMemMapFs(),
		compiler: &fakeCompiler{},
		executor: newFakeExecutor(),
	}
	opts := Options{
		Fs:       h.fs,
		Path:     []string{"/lib"},
		Formats:  testTable(),
		Compiler: h.compiler,
		Executor: h.executor,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.fs = opts.Fs

	rt, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := rt.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(rt.Teardown)
	h.rt = rt
	return h
}

// writeSource writes a module file and pins its mtime to a whole second.
func writeSource(t *testing.T, fs afero.Fs, path, body string, mtime time.Time) {
	t.Helper()
	testutil.WriteTree(t, fs, map[string]string{path: body}, mtime)
}

func mustEncode(t *testing.T, p *program.Program) []byte {
	t.Helper()
	data, err := program.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func registrySize(t *testing.T, rt *Runtime) int {
	t.Helper()
	reg, err := rt.Registry()
	if err != nil {
		t.Fatalf("Registry() error: %v", err)
	}
	return reg.Len()
}
