// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invowk/modload/internal/resolve"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultDebounce is the default quiet period of the watcher.
	DefaultDebounce = 300 * time.Millisecond
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidSearchDir is returned for empty or whitespace-only search path entries.
	ErrInvalidSearchDir = errors.New("invalid search path entry")
	// ErrInvalidWatchConfig is returned for a negative debounce.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// LogLevel is the minimum level of log output.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidSearchDirError is returned for an unusable search path entry.
	InvalidSearchDirError struct {
		Index int
		Value string
	}

	// InvalidConfigError collects every field error of a Config.
	// It wraps ErrInvalidConfig and each field error.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// SearchPath lists directories probed for modules, in order.
		SearchPath []string `json:"search_path" mapstructure:"search_path"`
		// Formats overrides the suffix table. Empty means resolve.DefaultTable.
		Formats []resolve.FormatDescriptor `json:"formats" mapstructure:"formats"`
		// WriteCache enables writing compiled caches next to sources.
		WriteCache bool `json:"write_cache" mapstructure:"write_cache"`
		// FrozenBundles are bundle files merged into the frozen table.
		FrozenBundles []string `json:"frozen_bundles" mapstructure:"frozen_bundles"`
		// Extensions configures native extension loading.
		Extensions ExtensionsConfig `json:"extensions" mapstructure:"extensions"`
		// LogLevel is the minimum level logged.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Watch configures `modload watch`.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}

	// ExtensionsConfig configures native extension loading.
	ExtensionsConfig struct {
		// Enabled allows importing native extensions (default: true).
		Enabled bool `json:"enabled" mapstructure:"enabled"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose traces every import and cache decision.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// WatchConfig configures the watch-and-reload loop.
	WatchConfig struct {
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
		// Ignore holds extra doublestar patterns matched against base names.
		Ignore []string `json:"ignore" mapstructure:"ignore"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SearchPath:    []string{},
		Formats:       resolve.DefaultTable(),
		WriteCache:    true,
		FrozenBundles: []string{},
		Extensions:    ExtensionsConfig{Enabled: true},
		LogLevel:      LogLevelWarn,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
			Ignore:   []string{},
		},
	}
}

// IsValid reports whether every field of c is usable and returns an
// *InvalidConfigError listing the problems when it is not.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for i, dir := range c.SearchPath {
		if strings.TrimSpace(dir) == "" {
			errs = append(errs, &InvalidSearchDirError{Index: i, Value: dir})
		}
	}
	if err := resolve.ValidateTable(c.Formats); err != nil {
		errs = append(errs, err)
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%w: negative debounce %s", ErrInvalidWatchConfig, c.Watch.Debounce))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

func (e *InvalidSearchDirError) Error() string {
	return fmt.Sprintf("search_path[%d] %q: must be non-empty", e.Index, e.Value)
}

func (e *InvalidSearchDirError) Unwrap() error { return ErrInvalidSearchDir }

func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}
