package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Publisher receives freshly loaded library snapshots. *Holder implements it
// directly; the policy engine implements it to overlay edited clauses.
type Publisher interface {
	Publish(lib *Library) error
}

// Watcher reloads the library when files under its path change and hands
// the result to a Publisher. Bursts of events are debounced into a single
// reload.
type Watcher struct {
	path     string
	target   Publisher
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	// OnReload, if set, is called after every reload attempt.
	OnReload func(lib *Library, err error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for path that publishes to target.
func NewWatcher(path string, target Publisher, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		target:   target,
		watcher:  fw,
		debounce: NewDebouncer(debounce),
		logger:   logger.With("component", "library.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Reload loads the library from disk and publishes it. Libraries with lint
// errors are rejected and the current snapshot is kept.
func (w *Watcher) Reload() (*Library, error) {
	lib, err := Load(w.path)
	if err == nil {
		if issues := Lint(lib); HasErrors(issues) {
			err = fmt.Errorf("library has %d lint issues, first: %s", len(issues), issues[0])
		}
	}

	if err == nil {
		err = w.target.Publish(lib)
	}

	if err != nil {
		w.logger.Error("library reload failed, keeping current snapshot", "path", w.path, "error", err)
	} else {
		stats := lib.Stats()
		w.logger.Info("library reloaded",
			"path", w.path,
			"templates", stats.Templates,
			"clauses", stats.Clauses,
			"workflows", stats.Workflows,
		)
	}

	if w.OnReload != nil {
		w.OnReload(lib, err)
	}
	return lib, err
}

// Watch blocks, reloading on change, until ctx is done or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.addPath(w.path); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	w.logger.Info("library watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !shouldProcess(event) {
				continue
			}

			// New subdirectories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addPath(event.Name)
				}
			}

			w.logger.Debug("library file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(func() { _, _ = w.Reload() })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("library watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.debounce.Stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		// Watch the parent so editors that replace the file are seen.
		return w.watcher.Add(filepath.Dir(path))
	}

	return filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		if strings.HasPrefix(fi.Name(), ".") && p != path {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", p, err)
		}
		return nil
	})
}

func shouldProcess(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return true
		}
	}
	return IsLibraryFile(event.Name)
}

// Debouncer runs the most recent callback once events stop arriving for the
// configured interval.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one and restarting the
// quiet period.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
