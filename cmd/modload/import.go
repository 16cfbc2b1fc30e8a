// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/invowk/modload/internal/importer"
	"github.com/invowk/modload/internal/shlang"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatYAML = "yaml"
	formatJSON = "json"
)

type (
	outputFlags struct {
		format string
		all    bool
	}

	// moduleView is the serialized form of a module for --format yaml|json.
	moduleView struct {
		Name      string         `json:"name" yaml:"name"`
		Kind      string         `json:"kind" yaml:"kind"`
		File      string         `json:"file,omitempty" yaml:"file,omitempty"`
		Namespace map[string]any `json:"namespace" yaml:"namespace"`
	}
)

func newImportCommand(app *App, flags *rootFlags) *cobra.Command {
	out := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "import NAME...",
		Short: "Import modules and print their namespaces",
		Long: `Import each module in order within one runtime, so later modules see
the ones imported before them, and print the resulting namespaces.`,
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
				mod, err := s.importModule(cmd.Context(), name)
				if err != nil {
					return err
				}
				mods = append(mods, mod)
			}
			return writeModules(app.stdout, mods, out)
		},
	}
	out.register(cmd)
	return cmd
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "o", formatText, "output format: text, yaml or json")
	cmd.Flags().BoolVarP(&o.all, "all", "a", false, "include __name__ and __file__")
}

func (o *outputFlags) validate() error {
	switch o.format {
	case formatText, formatYAML, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (valid: text, yaml, json)", o.format)
	}
}

func writeModules(w io.Writer, mods []*importer.Module, o *outputFlags) error {
	switch o.format {
	case formatYAML:
		views := viewsOf(mods, o.all)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(viewsOf(mods, o.all))
	default:
		for _, mod := range mods {
			writeModuleText(w, mod, o.all)
		}
		return nil
	}
}

func writeModuleText(w io.Writer, mod *importer.Module, all bool) {
	fmt.Fprintln(w, TitleStyle.Render(mod.String()))
	snap := mod.Namespace().Snapshot()
	for _, key := range visibleKeys(snap, all) {
		fmt.Fprintf(w, "  %s = %s\n", KeyStyle.Render(key), shlang.Format(snap[key]))
	}
}

func viewsOf(mods []*importer.Module, all bool) []moduleView {
	views := make([]moduleView, 0, len(mods))
	for _, mod := range mods {
		origin := mod.Origin()
		snap := mod.Namespace().Snapshot()
		ns := make(map[string]any, len(snap))
		for _, key := range visibleKeys(snap, all) {
			ns[key] = plainValue(snap[key])
		}
		views = append(views, moduleView{
			Name:      mod.Name(),
			Kind:      origin.Kind.String(),
			File:      origin.Path,
			Namespace: ns,
		})
	}
	return views
}

// plainValue converts namespace values to something every encoder accepts.
// Module references become their display string to break cycles.
func plainValue(v any) any {
	switch v := v.(type) {
	case *importer.Module:
		return v.String()
	case string, []string, bool, int, int32, int64, float64, nil:
		return v
	case map[string]string:
		return v
	default:
		return shlang.Format(v)
	}
}

func visibleKeys(snap map[string]any, all bool) []string {
	keys := make([]string, 0, len(snap))
	for key := range snap {
		if !all && strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__") {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
