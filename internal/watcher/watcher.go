// Package watcher re-runs a search when source files change. It wraps
// fsnotify with recursive directory registration and debouncing so a
// burst of editor writes triggers one pass.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/scopegrep/internal/language"
)

// Watcher watches a directory tree and reports changed source files.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher

	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer

	onChange func(paths []string)
	onError  func(error)

	done chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDelay sets how long the watcher waits after the last event
// before reporting the pending files.
func WithDebounceDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnError sets the callback for watch errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a Watcher over root. onChange receives the batch of
// changed source-file paths after each debounce window.
func New(root string, onChange func(paths []string), opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:          root,
		fsWatcher:     fsWatcher,
		debounceDelay: 500 * time.Millisecond,
		pendingFiles:  make(map[string]struct{}),
		onChange:      onChange,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirs(); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("register directories: %w", err)
	}
	return w, nil
}

// addDirs recursively registers every directory under root, skipping
// hidden and dependency directories.
func (w *Watcher) addDirs() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if path != w.root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" || name == "__pycache__") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start begins watching for changes.
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Newly created directories need registering before events inside
	// them can be seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.fsWatcher.Add(event.Name)
			return
		}
	}

	if _, ok := language.ForFile(event.Name); !ok {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pendingFiles[event.Name] = struct{}{}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

// flush hands the pending batch to onChange after the debounce window.
func (w *Watcher) flush() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 {
		return
	}
	sort.Strings(files)
	w.onChange(files)
}
