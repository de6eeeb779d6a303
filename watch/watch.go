// Package watch keeps the store in step with the launcher's resource folders.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"mc-resource-manager/importer"
)

const DefaultDebounce = 500 * time.Millisecond

// Target receives the changes seen by a Watcher. *importer.Importer satisfies it.
type Target interface {
	ImportFiles(ctx context.Context, paths []string) (*importer.Result, error)
	RemovePath(ctx context.Context, path string) error
}

type Options struct {
	Dirs     []string
	Debounce time.Duration
	Logger   *zap.SugaredLogger
	// OnImport is called after each debounced batch, with the error ImportFiles returned.
	OnImport func(*importer.Result, error)
}

// Watcher imports files created or rewritten in its directories and forgets
// files removed from them. Subdirectories are not watched, only their creation.
type Watcher struct {
	target   Target
	fs       *fsnotify.Watcher
	debounce time.Duration
	log      *zap.SugaredLogger
	onImport func(*importer.Result, error)
}

func New(target Target, opts Options) (*Watcher, error) {
	if len(opts.Dirs) == 0 {
		return nil, errors.New("watch: no directories")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	for _, dir := range opts.Dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w := &Watcher{
		target:   target,
		fs:       fsw,
		debounce: opts.Debounce,
		log:      opts.Logger,
		onImport: opts.OnImport,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.log == nil {
		w.log = zap.NewNop().Sugar()
	}
	return w, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ignored(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
				pending[ev.Name] = struct{}{}
				timer.Reset(w.debounce)
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
				if err := w.target.RemovePath(ctx, ev.Name); err != nil {
					w.log.Warnw("Failed to forget removed file", zap.String("path", ev.Name), zap.Error(err))
				}
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("Watcher error", zap.Error(err))

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			w.flush(ctx, paths)
		}
	}
}

func (w *Watcher) flush(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	res, err := w.target.ImportFiles(ctx, paths)
	if err != nil {
		w.log.Errorw("Import of changed files failed", zap.Int("files", len(paths)), zap.Error(err))
	} else {
		w.log.Infow("Imported changed files",
			zap.Int("imported", len(res.Imported)),
			zap.Int("updated", len(res.Updated)),
			zap.Int("unrecognized", len(res.Unrecognized)),
			zap.Int("failed", len(res.Failed)),
		)
	}
	if w.onImport != nil {
		w.onImport(res, err)
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}

// ignored skips editor and download leftovers such as .foo.swp or mod.jar.part.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".part") ||
		strings.HasSuffix(base, ".tmp")
}

// Entries lists the importable entries directly under dirs, files and
// folders alike, in lexical order per directory. Missing directories are skipped.
func Entries(dirs []string) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			if ignored(p) {
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}
