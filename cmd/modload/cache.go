// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/invowk/modload/internal/cachestore"
	"github.com/invowk/modload/internal/resolve"

	"github.com/spf13/cobra"
)

const (
	cacheValid        = "valid"
	cacheStaleMagic   = "stale (format changed)"
	cacheStaleSource  = "stale (source changed)"
	cacheCompiledOnly = "compiled-only"
	cacheCorrupt      = "corrupt"
)

func newCacheCommand(app *App, flags *rootFlags) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect compiled cache files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print a cache file's header and whether it is still valid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			r, err := resolve.New(app.Fs, cfg.ResolverTable(), logger)
			if err != nil {
				return err
			}
			store := cachestore.New(app.Fs, cachestore.WithLogger(logger))

			var errs []error
			for i, path := range args {
				if i > 0 {
					fmt.Fprintln(app.stdout)
				}
				if err := inspectCache(app, r, store, path); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	})

	return cacheCmd
}

func inspectCache(app *App, r *resolve.Resolver, store *cachestore.Store, path string) error {
	w := app.stdout
	hdr, err := store.ReadHeader(path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	status := cacheValid
	magic := SuccessStyle.Render("ok")
	if hdr.Magic != store.Magic() {
		status = cacheStaleMagic
		magic = WarningStyle.Render(fmt.Sprintf("expected %#08x", store.Magic()))
	}

	fmt.Fprintf(w, "%s %s\n", label(KeyStyle, "file:", 7), path)
	fmt.Fprintf(w, "%s %#08x (%s)\n", label(KeyStyle, "magic:", 7), hdr.Magic, magic)
	fmt.Fprintf(w, "%s %d (%s)\n", label(KeyStyle, "mtime:", 7), hdr.SourceMTime, formatUnix(hdr.SourceMTime))

	src := r.SourcePath(path)
	srcMTime, srcErr := uint32(0), error(nil)
	if src != "" {
		srcMTime, srcErr = cachestore.SourceMTime(app.Fs, src)
	}
	switch {
	case src == "" || errors.Is(srcErr, fs.ErrNotExist):
		fmt.Fprintf(w, "%s %s\n", label(KeyStyle, "source:", 7), SubtitleStyle.Render("(none)"))
		if status == cacheValid {
			status = cacheCompiledOnly
		}
	case srcErr != nil:
		return fmt.Errorf("inspect %s: %w", path, srcErr)
	default:
		fmt.Fprintf(w, "%s %s (mtime %d)\n", label(KeyStyle, "source:", 7), src, srcMTime)
		if status == cacheValid && hdr.SourceMTime != srcMTime {
			status = cacheStaleSource
		}
	}

	if status != cacheStaleMagic {
		prog, err := store.ReadCompiled(path)
		if err != nil {
			status = cacheCorrupt
		} else {
			fmt.Fprintf(w, "%s lang=%s origin=%s size=%d\n", label(KeyStyle, "body:", 7), prog.Lang, prog.Origin, len(prog.Code))
		}
	}

	style := SuccessStyle
	if status != cacheValid && status != cacheCompiledOnly {
		style = WarningStyle
	}
	fmt.Fprintf(w, "%s %s\n", label(KeyStyle, "status:", 7), style.Render(status))
	return nil
}

func formatUnix(sec uint32) string {
	if sec == 0 {
		return "incomplete write"
	}
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}
