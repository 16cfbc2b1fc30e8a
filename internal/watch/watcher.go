// SPDX-License-Identifier: MPL-2.0

// Package watch reloads imported modules when their source files change.
//
// A Watcher monitors the directories of a search path and, after a quiet
// period, hands the set of changed module files to a callback. ReloadChanged
// builds the callback that maps those files back to registered modules and
// reloads them in place.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces the write-then-rename sequences editors use.
const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are matched against file base names. They cover editor
// swap and backup files that would otherwise trigger spurious reloads.
var defaultIgnores = []string{
	"*.swp",
	"*.swo",
	"*~",
	".#*",
	"#*#",
	"4913",
	".DS_Store",
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dirs are the directories to watch, typically the search path.
		// Missing directories are skipped. Subdirectories are not watched
		// because modules are resolved directly inside each directory.
		Dirs []string

		// Suffixes select the files that count as module changes, for
		// example ".msh". An empty slice accepts every file.
		Suffixes []string

		// Ignore are extra doublestar patterns matched against base names.
		Ignore []string

		// Debounce is the quiet period before OnChange fires. Zero or
		// negative values select defaultDebounce.
		Debounce time.Duration

		// OnChange receives the sorted, deduplicated absolute paths that
		// changed during the debounce window.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher diagnostics. Nil discards them.
		Logger *log.Logger
	}

	// Watcher monitors module directories and fires a debounced callback.
	// Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		dirs     []string
		debounce time.Duration
		log      *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers every existing directory with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns(cfg.Ignore); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: debounce,
		log:      logger,
	}
	if err := w.addDirs(); err != nil {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	return w, nil
}

// Dirs returns the absolute directories being watched.
func (w *Watcher) Dirs() []string { return slices.Clone(w.dirs) }

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error when the watcher breaks irrecoverably.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	// fire never runs concurrently with itself. A fire that finds the
	// callback busy re-arms the timer so the pending set is not dropped.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			w.log.Debug("reload still running, deferring changes")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.log.Error("reload failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("closing watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if !w.relevant(evt) {
				continue
			}
			w.log.Debug("change", "path", evt.Name, "op", evt.Op.String())

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.log.Warn("fsnotify error", "err", err)
		}
	}
}

// relevant reports whether evt names a module file that was written,
// created or replaced.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(evt.Name)
	if w.isIgnored(base) {
		return false
	}
	return w.hasSuffix(base)
}

func (w *Watcher) addDirs() error {
	seen := make(map[string]bool)
	for _, dir := range w.cfg.Dirs {
		if dir == "" {
			dir = "."
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("watch: resolve %q: %w", dir, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			w.log.Debug("skipping missing directory", "dir", abs)
			continue
		}
		if err := w.fsw.Add(abs); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", abs, err)
		}
		w.dirs = append(w.dirs, abs)
	}
	if len(w.dirs) == 0 {
		return errors.New("watch: no existing directory to watch")
	}
	return nil
}

func (w *Watcher) isIgnored(base string) bool {
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) hasSuffix(base string) bool {
	if len(w.cfg.Suffixes) == 0 {
		return true
	}
	for _, s := range w.cfg.Suffixes {
		if len(base) > len(s) && base[len(base)-len(s):] == s {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}
	return nil
}
