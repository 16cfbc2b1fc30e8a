// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/modload/internal/compileall"
	"github.com/invowk/modload/internal/resolve"
	"github.com/invowk/modload/internal/shlang"

	"github.com/spf13/cobra"
)

const statusWidth = 10

func newCompileCommand(app *App, flags *rootFlags) *cobra.Command {
	var (
		force   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "compile [DIR...]",
		Short: "Precompile every source module in directories",
		Long: `Compile every source module directly inside each DIR (default: the search
path) and write its cache file. Sources whose cache is already valid are
skipped unless --force is given. One failure does not stop the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			r, err := resolve.New(app.Fs, cfg.ResolverTable(), logger)
			if err != nil {
				return err
			}

			dirs := args
			if len(dirs) == 0 {
				dirs = searchPath(flags, cfg)
			}

			results, runErr := compileall.Run(cmd.Context(), compileall.Options{
				Fs:       app.Fs,
				Resolver: r,
				Compiler: shlang.NewCompiler(),
				Force:    force,
				Workers:  workers,
				Logger:   logger,
			}, dirs...)

			for _, res := range results {
				switch res.Status {
				case compileall.StatusCompiled:
					fmt.Fprintf(app.stdout, "%s %s\n", label(SuccessStyle, "compiled", statusWidth), res.Source)
				case compileall.StatusUpToDate:
					fmt.Fprintf(app.stdout, "%s %s\n", label(SubtitleStyle, "up-to-date", statusWidth), res.Source)
				case compileall.StatusFailed:
					fmt.Fprintf(app.stdout, "%s %s: %v\n", label(ErrorStyle, "failed", statusWidth), res.Source, res.Err)
				}
			}
			return runErr
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "recompile even when the cache is valid")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "parallel compilations (default: number of CPUs)")
	return cmd
}
