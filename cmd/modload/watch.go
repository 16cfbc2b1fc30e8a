// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/watch"

	"github.com/spf13/cobra"
)

func newWatchCommand(app *App, flags *rootFlags) *cobra.Command {
	out := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "watch NAME...",
		Short: "Import modules and reload them when their files change",
		Long: `Import each module, then watch the search path. When a module file changes,
every imported module with that name is reloaded in place and printed again.
A failed reload is reported and the watch continues. Interrupt to stop.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := app.openSession(ctx, flags)
			if err != nil {
				return err
			}
			defer s.close()

			mods := make([]*importer.Module, 0, len(args))
			for _, name := range args {
				mod, err := s.importModule(ctx, name)
				if err != nil {
					return err
				}
				mods = append(mods, mod)
			}
			if err := writeModules(app.stdout, mods, out); err != nil {
				return err
			}

			r := s.rt.Resolver()
			w, err := watch.New(watch.Config{
				Dirs:     s.rt.Path(),
				Suffixes: watch.ModuleSuffixes(r),
				Ignore:   s.cfg.Watch.Ignore,
				Debounce: s.cfg.Watch.Debounce,
				OnChange: watch.ReloadChanged(s.rt, r, s.log, func(mod *importer.Module) {
					if err := writeModules(app.stdout, []*importer.Module{mod}, out); err != nil {
						s.log.Error("print module", "module", mod.Name(), "err", err)
					}
				}),
				Logger: s.log,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(app.stderr, "%s %v\n", SubtitleStyle.Render("watching"), w.Dirs())
			return w.Run(ctx)
		},
	}
	out.register(cmd)
	return cmd
}
