// Package watch triggers a callback when input files settle after a change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"spgt/internal/logging"
)

// ChangeFunc receives the settled paths of one debounce window.
type ChangeFunc func(ctx context.Context, paths []string)

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Triggers      int
	Errors        int
	LastTrigger   time.Time
}

// Watcher watches a fixed set of files. Editors often replace a file
// instead of writing it in place, so the parent directories are watched
// and events are filtered to the target paths.
type Watcher struct {
	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	targets     map[string]bool
	dirs        []string
	onChange    ChangeFunc
	debounceDur time.Duration
	debounceMap map[string]time.Time
	stats       Stats
}

// New creates a watcher for paths. Nothing is observed until Run.
func New(paths []string, debounce time.Duration, onChange ChangeFunc) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	w := &Watcher{
		targets:     make(map[string]bool),
		onChange:    onChange,
		debounceDur: debounce,
		debounceMap: make(map[string]time.Time),
	}
	dirSet := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.targets[abs] = true
		dirSet[filepath.Dir(abs)] = true
	}
	for dir := range dirSet {
		w.dirs = append(w.dirs, dir)
	}
	sort.Strings(w.dirs)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.fsw = fsw
	return w, nil
}

// Run processes events until ctx is done. The fsnotify watcher is closed
// on return, so a Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	logging.Watch("watching %d file(s) in %v (debounce %s)", len(w.targets), w.dirs, w.debounceDur)

	tick := w.debounceDur / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.WatchWarn("fsnotify error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebouncedEvents(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil || !w.targets[abs] {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case event.Has(fsnotify.Create):
		w.stats.FilesCreated++
	case event.Has(fsnotify.Write):
		w.stats.FilesModified++
	default:
		w.stats.FilesDeleted++
	}
	w.debounceMap[abs] = time.Now()
}

// processDebouncedEvents fires the callback once for all paths that have
// been quiet for the debounce window.
func (w *Watcher) processDebouncedEvents(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	if len(settled) > 0 {
		w.stats.Triggers++
		w.stats.LastTrigger = now
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)
	logging.Get(logging.CategoryWatch).Debug("settled: %v", settled)
	w.onChange(ctx, settled)
}

// GetStats returns a snapshot of the watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}
