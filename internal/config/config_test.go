// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/invowk/modload/internal/issue"
	"github.com/invowk/modload/internal/resolve"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(kv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := kv[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if len(cfg.SearchPath) != 0 {
		t.Errorf("default search path = %v, want empty", cfg.SearchPath)
	}
	if !cfg.WriteCache {
		t.Error("caches should be written by default")
	}
	if !cfg.Extensions.Enabled {
		t.Error("extensions should be enabled by default")
	}
	if cfg.LogLevel != LogLevelWarn {
		t.Errorf("default log level = %s, want warn", cfg.LogLevel)
	}
	if cfg.Watch.Debounce != DefaultDebounce {
		t.Errorf("default debounce = %s", cfg.Watch.Debounce)
	}
	if !slices.Equal(cfg.Formats, resolve.DefaultTable()) {
		t.Errorf("default formats = %v", cfg.Formats)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("default config is invalid: %v", errs)
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigDirPath: t.TempDir(),
		LookupEnv:     noEnv,
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if !cfg.WriteCache || cfg.Watch.Debounce != DefaultDebounce || cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Formats) != len(resolve.DefaultTable()) {
		t.Errorf("formats = %v", cfg.Formats)
	}
}

func TestLoad_ConfigDirFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `search_path: ["/opt/modules", "/usr/lib/modload"]`
	if err := os.WriteFile(filepath.Join(dir, "config.cue"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir, LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %q", path)
	}
	if !slices.Equal(cfg.SearchPath, []string{"/opt/modules", "/usr/lib/modload"}) {
		t.Errorf("search path = %v", cfg.SearchPath)
	}
}

func TestLoad_CUEFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
search_path: ["/lib"]
write_cache: false
frozen_bundles: ["/etc/modload/base.mfz"]
log_level: "debug"
formats: [
	{suffix: ".sh", mode: "text", kind: "source"},
	{suffix: ".shc", mode: "binary", kind: "compiled"},
]
extensions: enabled: false
ui: {
	color_scheme: "dark"
	verbose: true
}
watch: {
	debounce: "1.5s"
	ignore: ["*.bak"]
}
`)

	cfg, got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	if cfg.WriteCache {
		t.Error("write_cache: false was not applied")
	}
	if cfg.LogLevel != LogLevelDebug || cfg.UI.ColorScheme != ColorSchemeDark || !cfg.UI.Verbose {
		t.Errorf("scalars not applied: %+v", cfg)
	}
	if cfg.Extensions.Enabled {
		t.Error("extensions.enabled: false was not applied")
	}
	if cfg.Watch.Debounce != 1500*time.Millisecond {
		t.Errorf("debounce = %s, want 1.5s", cfg.Watch.Debounce)
	}
	if !slices.Equal(cfg.Watch.Ignore, []string{"*.bak"}) {
		t.Errorf("ignore = %v", cfg.Watch.Ignore)
	}
	if !slices.Equal(cfg.FrozenBundles, []string{"/etc/modload/base.mfz"}) {
		t.Errorf("frozen bundles = %v", cfg.FrozenBundles)
	}
	want := []resolve.FormatDescriptor{
		{Suffix: ".sh", Mode: resolve.ModeText, Kind: resolve.FileSource},
		{Suffix: ".shc", Mode: resolve.ModeBinary, Kind: resolve.FileCompiled},
	}
	if !slices.Equal(cfg.Formats, want) {
		t.Errorf("formats = %v, want %v", cfg.Formats, want)
	}
}

func TestLoad_InvalidCUE(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown field", content: `nope: 1`, want: "nope"},
		{name: "wrong type", content: `write_cache: "yes"`, want: `"yes"`},
		{name: "bad format mode", content: `formats: [{suffix: ".x", mode: "octal", kind: "source"}]`, want: "octal"},
		{name: "bad debounce", content: `watch: debounce: "soon"`, want: "soon"},
		{name: "bad log level", content: `log_level: "loud"`, want: "loud"},
		{name: "syntax error", content: `search_path: [`, want: "config.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.content)
			_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, LookupEnv: noEnv})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}

			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error should be *issue.ActionableError, got %T", err)
			}
			if ae.Guide != issue.ConfigLoadFailedId {
				t.Errorf("Guide = %d, want ConfigLoadFailedId", ae.Guide)
			}
		})
	}
}

func TestLoad_DuplicateFormatSuffix(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `formats: [
	{suffix: ".msh", mode: "text", kind: "source"},
	{suffix: ".msh", mode: "binary", kind: "compiled"},
]`)
	_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, LookupEnv: noEnv})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, resolve.ErrInvalidFormat) {
		t.Errorf("error = %v, should wrap resolve.ErrInvalidFormat", err)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	_, _, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "missing.cue"),
		LookupEnv:      noEnv,
	})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Parallel()

	sep := string(filepath.ListSeparator)
	path := writeConfig(t, `search_path: ["/a"]`)

	tests := []struct {
		name      string
		env       map[string]string
		wantPath  []string
		wantCache bool
	}{
		{name: "no env", env: nil, wantPath: []string{"/a"}, wantCache: true},
		{name: "append", env: map[string]string{EnvPath: "+/b" + sep + "/c"}, wantPath: []string{"/a", "/b", "/c"}, wantCache: true},
		{name: "prepend", env: map[string]string{EnvPath: "-/b"}, wantPath: []string{"/b", "/a"}, wantCache: true},
		{name: "replace", env: map[string]string{EnvPath: "/x" + sep + "/y"}, wantPath: []string{"/x", "/y"}, wantCache: true},
		{name: "empty path ignored", env: map[string]string{EnvPath: ""}, wantPath: []string{"/a"}, wantCache: true},
		{name: "dont write cache", env: map[string]string{EnvDontWriteCache: "1"}, wantPath: []string{"/a"}, wantCache: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, LookupEnv: envOf(tt.env)})
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if !slices.Equal(cfg.SearchPath, tt.wantPath) {
				t.Errorf("search path = %v, want %v", cfg.SearchPath, tt.wantPath)
			}
			if cfg.WriteCache != tt.wantCache {
				t.Errorf("WriteCache = %v, want %v", cfg.WriteCache, tt.wantCache)
			}
		})
	}
}

func TestMergeSearchPath(t *testing.T) {
	t.Parallel()

	sep := string(filepath.ListSeparator)
	base := []string{"/a", "/b"}

	tests := []struct {
		override string
		want     []string
	}{
		{"", []string{"/a", "/b"}},
		{"+", []string{"/a", "/b"}},
		{"-/z", []string{"/z", "/a", "/b"}},
		{"+/z" + sep + sep + "/y", []string{"/a", "/b", "/z", "/y"}},
		{"/only", []string{"/only"}},
	}

	for _, tt := range tests {
		got := MergeSearchPath(base, tt.override)
		if !slices.Equal(got, tt.want) {
			t.Errorf("MergeSearchPath(%q) = %v, want %v", tt.override, got, tt.want)
		}
	}
	if !slices.Equal(base, []string{"/a", "/b"}) {
		t.Errorf("base was modified: %v", base)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SearchPath = []string{"/opt/mods", `C:\mods`}
	cfg.WriteCache = false
	cfg.LogLevel = LogLevelInfo
	cfg.UI.Verbose = true
	cfg.Watch.Debounce = 2 * time.Second
	cfg.Watch.Ignore = []string{"*.tmp"}

	path := writeConfig(t, GenerateCUE(cfg))
	got, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("generated config does not load: %v\n%s", err, GenerateCUE(cfg))
	}

	if !slices.Equal(got.SearchPath, cfg.SearchPath) {
		t.Errorf("search path = %v", got.SearchPath)
	}
	if got.WriteCache || got.LogLevel != LogLevelInfo || !got.UI.Verbose {
		t.Errorf("scalars lost: %+v", got)
	}
	if got.Watch.Debounce != 2*time.Second || !slices.Equal(got.Watch.Ignore, []string{"*.tmp"}) {
		t.Errorf("watch = %+v", got.Watch)
	}
	if !slices.Equal(got.Formats, cfg.Formats) {
		t.Errorf("formats = %v", got.Formats)
	}
}

func TestResolverTable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if len(cfg.ResolverTable()) != 3 {
		t.Errorf("enabled table = %v", cfg.ResolverTable())
	}

	cfg.Extensions.Enabled = false
	for _, d := range cfg.ResolverTable() {
		if d.Kind == resolve.FileExtension {
			t.Errorf("extension descriptor kept: %v", d)
		}
	}
	if len(cfg.Formats) != 3 {
		t.Error("ResolverTable() modified the config")
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"blank search dir", func(c *Config) { c.SearchPath = []string{"/ok", "  "} }, ErrInvalidSearchDir},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"color scheme", func(c *Config) { c.UI.ColorScheme = "neon" }, ErrInvalidColorScheme},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, ErrInvalidWatchConfig},
		{"format", func(c *Config) { c.Formats = []resolve.FormatDescriptor{{Suffix: "", Mode: "text", Kind: "source"}} }, resolve.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			valid, errs := cfg.IsValid()
			if valid || len(errs) != 1 {
				t.Fatalf("IsValid() = %v, %v", valid, errs)
			}
			if !errors.Is(errs[0], tt.wantErr) || !errors.Is(errs[0], ErrInvalidConfig) {
				t.Errorf("error %v should wrap %v and ErrInvalidConfig", errs[0], tt.wantErr)
			}
		})
	}
}

func TestFormatCUEPath(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":                {},
		"formats[0].mode": {"#Config", "formats", "0", "mode"},
		"ui.verbose":      {"ui", "verbose"},
		"0":               {"0"},
	}
	for want, path := range tests {
		if got := formatCUEPath(path); got != want {
			t.Errorf("formatCUEPath(%v) = %q, want %q", path, got, want)
		}
	}
}
