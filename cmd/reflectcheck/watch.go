package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 300 * time.Millisecond

// watch runs the analysis once, then again after every settled batch of
// C# file changes below the analyzed paths, until ctx is canceled.
func watch(ctx context.Context, r *run, out io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errWithCode(fmt.Errorf("create watcher: %w", err), exitError)
	}
	defer w.Close()

	for _, p := range r.loader.Paths {
		if err := addWatches(w, p); err != nil {
			return errWithCode(err, exitError)
		}
	}

	d := newDebouncer(watchDebounce)
	defer d.stop()

	rerun := func() {
		result, err := r.analyze(ctx)
		if err != nil {
			fmt.Fprintf(out, "analyze: %v\n", err)
			return
		}
		if err := writeResults(out, result, &cfg); err != nil {
			slog.Warn("writing results failed", "error", err)
		}
		fmt.Fprintf(out, "--- %d finding(s), watching for changes\n", result.Stats.Findings)
	}
	rerun()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			handleEvent(w, d, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case <-d.C():
			rerun()
		}
	}
}

func handleEvent(w *fsnotify.Watcher, d *debouncer, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addWatches(w, ev.Name); err != nil {
				slog.Warn("watching new directory failed", "dir", ev.Name, "error", err)
			}
			d.trigger()
			return
		}
	}
	if !strings.EqualFold(filepath.Ext(ev.Name), ".cs") || ev.Op == fsnotify.Chmod {
		return
	}
	slog.Debug("file changed", "file", ev.Name, "op", ev.Op.String())
	d.trigger()
}

// addWatches registers root and every directory below it that could hold
// analyzed sources.
func addWatches(w *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func ignoredDir(name string) bool {
	switch name {
	case "bin", "obj", "node_modules", "packages", "TestResults":
		return true
	}
	return strings.HasPrefix(name, ".")
}

// debouncer coalesces bursts of triggers into one signal on C, delivered
// once no trigger arrived for the configured delay.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fire  chan struct{}
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, fire: make(chan struct{}, 1)}
}

func (d *debouncer) C() <-chan struct{} { return d.fire }

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.fire <- struct{}{}:
		default:
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
