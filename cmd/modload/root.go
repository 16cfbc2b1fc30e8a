// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the modload command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/modload/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	verbose    bool
	configPath string
	paths      []string
	noCache    bool
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "modload",
		Short: "Import, compile and reload shell modules",
		Long: TitleStyle.Render("modload") + SubtitleStyle.Render(" - a module import engine for shell programs") + `

Modules are shell scripts (NAME.msh) found on a search path, compiled
bodies cached next to them (NAME.mshc), builtins, frozen bodies embedded
in the binary, or native extensions (NAMEmodule.so). Importing a module
runs its body once; variables it sets become the module's namespace.

` + SubtitleStyle.Render("Examples:") + `
  modload import greet            Import greet and print its namespace
  modload -p ./lib import app     Search ./lib first
  modload resolve greet           Show which file would be loaded
  modload compile ./lib           Precompile every module in ./lib
  modload watch app               Reload app when its source changes`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "trace imports and cache decisions")
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/modload/config.cue)")
	pf.StringArrayVarP(&flags.paths, "path", "p", nil, "directory searched before the configured search path (repeatable)")
	pf.BoolVar(&flags.noCache, "no-cache-write", false, "do not write compiled caches")

	root.AddCommand(
		newImportCommand(app, flags),
		newReloadCommand(app, flags),
		newResolveCommand(app, flags),
		newPathCommand(app, flags),
		newCompileCommand(app, flags),
		newCacheCommand(app, flags),
		newFreezeCommand(app, flags),
		newWatchCommand(app, flags),
		newConfigCommand(app, flags),
	)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	app.verbose = &flags.verbose
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI with the process arguments and exits.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(app.Run(context.Background(), os.Args[1:]))
}

// Run executes the command tree with args and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := NewRootCommand(a)
	root.SetArgs(args)

	err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(a.handleError),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// handleError prints err. ActionableErrors get their suggestions, and in
// verbose mode the error chain and the rendered issue guide.
func (a *App) handleError(w io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	verbose := a.verbose != nil && *a.verbose
	fmt.Fprintln(w, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if !verbose || !errors.As(err, &ae) || ae.Guide == 0 {
		return
	}
	if guide := issue.Get(ae.Guide); guide != nil {
		if rendered, renderErr := guide.Render("notty"); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
