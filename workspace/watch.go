// Copyright © 2024 The ELPS authors

package workspace

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for when none is given.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports changes to the module files of a Dir.  Bursts of events
// are collapsed into one callback after a quiet period.
type Watcher struct {
	dir      *Dir
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger
	onChange func([]string)
	// callbacks are serialized
	callbackMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]bool
	timer     *time.Timer
}

// NewWatcher returns a watcher calling onChange with the sorted paths of
// changed module files.  A nil logger discards messages.
func (d *Dir) NewWatcher(debounce time.Duration, log *slog.Logger, onChange func([]string)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:      d,
		fsw:      fsw,
		debounce: debounce,
		log:      log,
		onChange: onChange,
		pending:  make(map[string]bool),
	}
	if err := w.watchRecursive(d.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers events until ctx is done or the watcher fails.  Run closes
// the watcher before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if hidden(info.Name()) {
				return
			}
			if err := w.watchRecursive(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !w.isModule(event.Name) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.schedule(event.Name)
	}
}

func (w *Watcher) isModule(path string) bool {
	if w.dir.excluded(path) {
		return false
	}
	_, ok := w.dir.classify(filepath.Base(path))
	return ok
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			return nil
		}
		if path != root && hidden(e.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// Close stops the watcher.  Pending changes are dropped.
func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsw.Close()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
