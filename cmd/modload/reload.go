// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/invowk/modload/internal/importer"

	"github.com/spf13/cobra"
)

func newReloadCommand(app *App, flags *rootFlags) *cobra.Command {
	out := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "reload NAME...",
		Short: "Import modules, then reload them",
		Long: `Import each module, then reload it in place: the body runs again over
the existing namespace, so bindings it does not overwrite survive. Reloading
a builtin re-runs its initializer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			mods := make([]*importer.Module, 0, len(args))
			for _, name := range args {
				if _, err := s.importModule(cmd.Context(), name); err != nil {
					return err
				}
				mod, err := s.rt.ReloadName(cmd.Context(), name)
				if err != nil {
					return wrapModuleError(err, "reload module", name)
				}
				s.log.Info("reload "+name, "kind", mod.Origin().Kind)
				mods = append(mods, mod)
			}
			return writeModules(app.stdout, mods, out)
		},
	}
	out.register(cmd)
	return cmd
}
