// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"github.com/invowk/modload/internal/config"

	"github.com/charmbracelet/log"
)

// newLogger returns the CLI logger. Verbose mode logs at debug level
// regardless of the configured level.
func newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		level = log.WarnLevel
	}
	if cfg.UI.Verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "modload",
		Level:  level,
	})
}
