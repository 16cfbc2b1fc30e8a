// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/invowk/modload/internal/issue"
	"github.com/invowk/modload/internal/resolve"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "modload"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"

	// EnvPath overrides the search path. A leading "+" appends to the
	// configured path, a leading "-" prepends, anything else replaces it.
	EnvPath = "MODLOAD_PATH"
	// EnvDontWriteCache disables cache writes when set to a non-empty value.
	EnvDontWriteCache = "MODLOAD_DONT_WRITE_CACHE"

	maxConfigSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the modload configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS
// and $XDG_CONFIG_HOME (defaulting to ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the default config file location.
func FilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading and returns the
// config file that was used, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("search_path", defaults.SearchPath)
	v.SetDefault("write_cache", defaults.WriteCache)
	v.SetDefault("frozen_bundles", defaults.FrozenBundles)
	v.SetDefault("extensions.enabled", defaults.Extensions.Enabled)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce.String())
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)

	resolvedPath, err := locateConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Run 'modload config dump' to see the accepted keys").
				WithGuide(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = defaults.Formats
	}

	if opts.LookupEnv != nil {
		applyEnv(&cfg, opts.LookupEnv)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Each formats entry needs a unique suffix without path separators").
			WithGuide(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// locateConfigFile returns the file to load: the explicit path (which must
// exist), then config.cue in the config dir, then ./config.cue. It returns
// "" when none exists.
func locateConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'modload config init' to create a default config").
				WithGuide(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		var err error
		if cfgDir, err = ConfigDir(); err != nil {
			return "", err
		}
	}

	for _, candidate := range []string{
		filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
		ConfigFileName + "." + ConfigFileExt,
	} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// Validation uses Concrete(false) because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError renders CUE errors as "<file>: <field.path[0]>: <message>",
// one line per error.
func formatCUEError(err error, path string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		field := formatCUEPath(cueerrors.Path(e))
		msg := e.Error()
		if field != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, field), ":"))
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}
	slices.Sort(lines)
	lines = slices.Compact(lines)

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}

// formatCUEPath turns ["formats", "0", "mode"] into "formats[0].mode".
// Schema definition selectors such as #Config are dropped.
func formatCUEPath(path []string) string {
	var sb strings.Builder
	for _, part := range path {
		if strings.HasPrefix(part, "#") {
			continue
		}
		if isIndex(part) && sb.Len() > 0 {
			sb.WriteString("[" + part + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// applyEnv applies MODLOAD_PATH and MODLOAD_DONT_WRITE_CACHE.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if raw, ok := lookup(EnvPath); ok && raw != "" {
		cfg.SearchPath = MergeSearchPath(cfg.SearchPath, raw)
	}
	if v, ok := lookup(EnvDontWriteCache); ok && v != "" {
		cfg.WriteCache = false
	}
}

// MergeSearchPath combines base with an override in MODLOAD_PATH syntax:
// "+a:b" appends, "-a:b" prepends and "a:b" replaces. Empty elements are
// dropped and an empty override leaves base unchanged. Lists use the
// platform separator (":" or ";").
func MergeSearchPath(base []string, override string) []string {
	if override == "" {
		return slices.Clone(base)
	}

	mode := override[:1]
	switch mode {
	case "+", "-":
		override = override[1:]
	default:
		mode = ""
	}

	var dirs []string
	for _, dir := range filepath.SplitList(override) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}

	switch mode {
	case "+":
		return append(slices.Clone(base), dirs...)
	case "-":
		return append(dirs, base...)
	default:
		return dirs
	}
}

// ResolverTable returns the configured suffix table, filtering out the
// extension descriptors when extensions are disabled.
func (c *Config) ResolverTable() []resolve.FormatDescriptor {
	if c.Extensions.Enabled {
		return slices.Clone(c.Formats)
	}
	return slices.DeleteFunc(slices.Clone(c.Formats), func(d resolve.FormatDescriptor) bool {
		return d.Kind == resolve.FileExtension
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file unless one exists, or
// unconditionally when force is set. It returns the file path.
func CreateDefaultConfig(force bool) (string, error) {
	cfgPath, err := FilePath()
	if err != nil {
		return "", err
	}

	if !force && fileExists(cfgPath) {
		return cfgPath, nil
	}
	if err := Save(DefaultConfig()); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// Save writes cfg to the default config file.
func Save(cfg *Config) error {
	cfgPath, err := FilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modload configuration file\n\n")

	writeList(&sb, "search_path", cfg.SearchPath, "")
	fmt.Fprintf(&sb, "write_cache: %v\n", cfg.WriteCache)
	writeList(&sb, "frozen_bundles", cfg.FrozenBundles, "")
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	if len(cfg.Formats) > 0 {
		sb.WriteString("\nformats: [\n")
		for _, d := range cfg.Formats {
			fmt.Fprintf(&sb, "\t{suffix: %q, mode: %q, kind: %q},\n", d.Suffix, d.Mode, d.Kind)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nextensions: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Extensions.Enabled)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce.String())
	writeList(&sb, "ignore", cfg.Watch.Ignore, "\t")
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, key string, items []string, indent string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "%s%s: []\n", indent, key)
		return
	}
	fmt.Fprintf(sb, "%s%s: [\n", indent, key)
	for _, item := range items {
		fmt.Fprintf(sb, "%s\t%q,\n", indent, item)
	}
	fmt.Fprintf(sb, "%s]\n", indent)
}
