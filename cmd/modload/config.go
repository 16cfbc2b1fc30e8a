// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invowk/modload/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Show and create the modload configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file, MODLOAD_PATH,
MODLOAD_DONT_WRITE_CACHE and global flags have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.printConfig(cmd.Context(), flags, asJSON)
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of CUE")

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.printConfig(cmd.Context(), flags, true)
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfgPath, _, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if cfgPath != "" {
				fmt.Fprintln(app.stdout, cfgPath)
				return nil
			}
			def, err := config.FilePath()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", def, SubtitleStyle.Render("(not created, using defaults)"))
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			existed := false
			if p, err := config.FilePath(); err == nil {
				_, statErr := app.Fs.Stat(p)
				existed = statErr == nil
			}
			cfgPath, err := config.CreateDefaultConfig(force)
			if err != nil {
				return err
			}
			if existed && !force {
				fmt.Fprintf(app.stdout, "%s %s (use --force to overwrite)\n", WarningStyle.Render("exists "), cfgPath)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("created"), cfgPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	cfgCmd.AddCommand(show, dump, path, initCmd)
	return cfgCmd
}

func (a *App) printConfig(ctx context.Context, flags *rootFlags, asJSON bool) error {
	cfg, _, _, err := a.loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	cfg.SearchPath = searchPath(flags, cfg)
	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	fmt.Fprint(a.stdout, config.GenerateCUE(cfg))
	return nil
}
