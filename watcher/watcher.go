// Package watcher monitors the themes directory and triggers a registry
// rescan when theme files change, so edits show up without restarting.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"themectl/theme"
)

// ChangeFunc is invoked after a debounced batch of theme file changes, with
// the affected file paths.
type ChangeFunc func(changed []string)

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Rescans       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher watches a theme registry's directory for *.css and manifest
// changes, debouncing rapid saves before rescanning.
type Watcher struct {
	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	registry    *theme.Registry
	logger      *zap.Logger
	onChange    ChangeFunc
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

func New(registry *theme.Registry, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsw:         fsw,
		registry:    registry,
		logger:      logger,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetOnChange registers the callback invoked after each rescan.
func (w *Watcher) SetOnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.registry.Dir()); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Info("watching themes directory", zap.String("dir", w.registry.Dir()))

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing fsnotify watcher", zap.Error(err))
	}
}

// Stats returns a snapshot of watcher activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flushDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".css") && name != theme.ManifestName {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name

	switch {
	case event.Op&fsnotify.Create != 0:
		w.stats.FilesCreated++
	case event.Op&fsnotify.Write != 0:
		w.stats.FilesModified++
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.stats.FilesDeleted++
	default:
		return // chmod etc.
	}

	w.debounceMap[event.Name] = time.Now()
}

// flushDebounced rescans once the debounce window has passed for all
// pending files, then reports the batch to the change callback.
func (w *Watcher) flushDebounced() {
	w.mu.Lock()
	if len(w.debounceMap) == 0 {
		w.mu.Unlock()
		return
	}

	now := time.Now()
	for _, at := range w.debounceMap {
		if now.Sub(at) < w.debounceDur {
			w.mu.Unlock()
			return
		}
	}

	changed := make([]string, 0, len(w.debounceMap))
	for path := range w.debounceMap {
		changed = append(changed, path)
	}
	w.debounceMap = make(map[string]time.Time)
	onChange := w.onChange
	w.mu.Unlock()

	if err := w.registry.Rescan(); err != nil {
		w.logger.Warn("rescan failed", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.stats.Rescans++
	w.mu.Unlock()

	w.logger.Debug("themes rescanned", zap.Strings("changed", changed))

	if onChange != nil {
		onChange(changed)
	}
}
