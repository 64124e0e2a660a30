// Package watcher provides debounced file system watching used to drive the
// log, spec, and test monitors from real file changes instead of a poll
// loop (§4.4).
package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/oss-dev/supervisor/internal/log"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a target file (or its containing directory, for files
// that are replaced rather than appended to) and debounces bursts of
// writes into a single change notification.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     []string
	targets   map[string]bool
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Paths are the file paths to watch, by basename match within their
	// containing directories. All paths sharing a directory are watched
	// via a single fsnotify.Add call.
	Paths       []string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for watching the given paths.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:       paths,
		DebounceDur: 100 * time.Millisecond,
	}
}

// New creates a new Watcher over cfg.Paths.
func New(cfg Config) (*Watcher, error) {
	log.Debug(log.CatWatcher, "creating watcher", "paths", cfg.Paths, "debounce", cfg.DebounceDur)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.ErrorErr(log.CatWatcher, "failed to create fsnotify watcher", err)
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	targets := make(map[string]bool, len(cfg.Paths))
	for _, p := range cfg.Paths {
		targets[filepath.Base(p)] = true
	}

	return &Watcher{
		fsWatcher: fsw,
		paths:     cfg.Paths,
		targets:   targets,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the configured paths' containing directories.
// Returns a channel that receives a signal (debounced) whenever a target
// file changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dirs[filepath.Dir(p)] = true
	}

	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			log.ErrorErr(log.CatWatcher, "failed to watch directory", err, "dir", dir)
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
		log.Info(log.CatWatcher, "started watching", "dir", dir)
	}

	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	log.Debug(log.CatWatcher, "stopping watcher")
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			log.Debug(log.CatWatcher, "file event received", "file", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				pending = true
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
				pending = true
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				log.Debug(log.CatWatcher, "debounce complete, triggering refresh")
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "file watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether event touches one of the watcher's
// target basenames with a write or create operation.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}

	if len(w.targets) == 0 {
		return true
	}

	return w.targets[filepath.Base(event.Name)]
}
