// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/modload/internal/issue"
	"github.com/invowk/modload/internal/shlang"
	"github.com/invowk/modload/internal/stdmods"

	"github.com/spf13/cobra"
)

const defaultBundleOutput = "frozen.mfz"

func newFreezeCommand(app *App, flags *rootFlags) *cobra.Command {
	var (
		manifest string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Compile modules listed in a manifest into a frozen bundle",
		Long: `Compile every module listed in a TOML manifest and write them to a
bundle file. List the bundle under frozen_bundles in the config to make its
modules importable without touching the search path.

  output = "app.mfz"

  [[module]]
  name = "greet"
  source = "lib/greet.msh"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, logger, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}

			m, err := stdmods.LoadManifest(app.Fs, manifest)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("read freeze manifest").
					WithResource(manifest).
					WithSuggestion("Each [[module]] table needs a valid dotted name").
					Wrap(err).
					BuildError()
			}
			switch {
			case output != "":
				m.Output = output
			case m.Output == "":
				m.Output = defaultBundleOutput
			}

			bundle, err := stdmods.Freeze(cmd.Context(), app.Fs, shlang.NewCompiler(), m)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("freeze modules").
					WithResource(manifest).
					Wrap(err).
					BuildError()
			}
			if err := stdmods.WriteBundleFile(app.Fs, m.Output, bundle); err != nil {
				return fmt.Errorf("failed to write bundle: %w", err)
			}

			names := bundle.Names()
			logger.Debug("bundle written", "path", m.Output, "modules", len(names))
			for _, name := range names {
				fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("frozen"), name)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("wrote "), m.Output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "freeze.toml", "freeze manifest")
	cmd.Flags().StringVarP(&output, "output", "O", "", "bundle file (overrides the manifest's output)")
	return cmd
}
