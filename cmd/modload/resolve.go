// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/invowk/modload/internal/resolve"
	"github.com/invowk/modload/internal/stdmods"

	"github.com/spf13/cobra"
)

func newResolveCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Show where modules would be loaded from",
		Long: `Show which origin an import of NAME would use without running anything.
Builtins and frozen modules win over the search path. With --verbose, the
probed paths of a missing module are listed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			builtins := make(map[string]bool)
			for _, b := range stdmods.Builtins() {
				builtins[b.Name] = true
			}

			for _, name := range args {
				switch {
				case builtins[name]:
					fmt.Fprintf(app.stdout, "%s\tbuiltin\n", name)
				case s.frozen[name] != nil:
					fmt.Fprintf(app.stdout, "%s\tfrozen\n", name)
				default:
					loc, err := s.rt.Resolver().Resolve(name, s.rt.Path())
					if err != nil {
						if flags.verbose {
							writeTried(app, err)
						}
						return wrapModuleError(err, "resolve module", name)
					}
					fmt.Fprintf(app.stdout, "%s\t%s\t%s\n", name, loc.Format.Kind, loc.Path)
				}
			}
			return nil
		},
	}
}

func writeTried(app *App, err error) {
	var nf *resolve.NotFoundError
	if !errors.As(err, &nf) {
		return
	}
	for _, path := range nf.Tried {
		fmt.Fprintf(app.stderr, "%s %s\n", SubtitleStyle.Render("# tried"), path)
	}
}

func newPathCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the effective search path",
		Long: `Print the search path, one directory per line: --path flags first, then
the configured search_path with MODLOAD_PATH applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			for _, dir := range searchPath(flags, cfg) {
				fmt.Fprintln(app.stdout, dir)
			}
			return nil
		},
	}
}
