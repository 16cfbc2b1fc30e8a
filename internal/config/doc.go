// SPDX-License-Identifier: MPL-2.0

// Package config loads modload's configuration using Viper with CUE as the
// file format.
//
// The file is config.cue in the platform config directory
// ($XDG_CONFIG_HOME/modload on Linux, ~/Library/Application Support/modload
// on macOS, %APPDATA%\modload on Windows), with ./config.cue as a fallback.
// It is validated against the embedded config_schema.cue before being merged
// over the defaults. MODLOAD_PATH and MODLOAD_DONT_WRITE_CACHE are applied
// last.
package config
