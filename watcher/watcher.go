// Package watcher emits filesystem change events for a set of watched
// project roots. Events are debounced and buffered; the maintenance loop
// drains them with PollEvents.
package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type EventKind int

const (
	Created EventKind = iota
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "CREATE"
	case Modified:
		return "MODIFY"
	case Deleted:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one filesystem change. Path is absolute.
type FileEvent struct {
	Path string
	Kind EventKind
}

type Watcher struct {
	fsw        *fsnotify.Watcher
	debounce   time.Duration
	ignoreDirs map[string]bool
	events     chan FileEvent
	done       chan struct{}

	mu    sync.Mutex
	roots map[string]bool
	// pending merges events per path; pendingOrder remembers first-seen
	// order so a flush emits events in the order they arrived.
	pending      map[string]FileEvent
	pendingOrder []string
	timer        *time.Timer
}

// New creates a watcher with no roots. ignoreDirs are directory basenames
// (".git", "node_modules", ...) skipped when walking and watching.
func New(ignoreDirs []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = true
	}

	w := &Watcher{
		fsw:        fsw,
		debounce:   debounce,
		ignoreDirs: ignore,
		events:     make(chan FileEvent, 256),
		done:       make(chan struct{}),
		roots:      make(map[string]bool),
		pending:    make(map[string]FileEvent),
	}
	go w.processEvents()
	return w, nil
}

// Watch adds a project root (and its subdirectories) to the watch set.
// Watching an already-watched root is a no-op.
func (w *Watcher) Watch(root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil {
		return fmt.Errorf("cannot watch %s: %w", root, err)
	} else if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", root)
	}

	w.mu.Lock()
	if w.roots[root] {
		w.mu.Unlock()
		return nil
	}
	w.roots[root] = true
	w.mu.Unlock()

	return w.addRecursive(root)
}

// Unwatch removes a project root and its subdirectories from the watch set.
func (w *Watcher) Unwatch(root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if !w.roots[root] {
		w.mu.Unlock()
		return fmt.Errorf("not watching %s", root)
	}
	delete(w.roots, root)
	w.mu.Unlock()

	prefix := root + string(filepath.Separator)
	for _, watched := range w.fsw.WatchList() {
		if watched == root || strings.HasPrefix(watched, prefix) {
			// Removal failures are expected for directories deleted under us.
			_ = w.fsw.Remove(watched)
		}
	}
	return nil
}

// WatchedPaths returns the watched roots, sorted for stable output.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.roots))
	for root := range w.roots {
		paths = append(paths, root)
	}
	sort.Strings(paths)
	return paths
}

// IsWatching reports whether root is in the watch set.
func (w *Watcher) IsWatching(root string) bool {
	root, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roots[root]
}

// PollEvents drains and returns all buffered events without blocking.
func (w *Watcher) PollEvents() []FileEvent {
	var events []FileEvent
	for {
		select {
		case ev := <-w.events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && (w.ignoreDirs[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			log.Printf("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
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
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || w.ignoreDirs[base] {
		return
	}

	// New directory under a watched root: start watching it too.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				log.Printf("Failed to add new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	var kind EventKind
	switch {
	case event.Has(fsnotify.Create):
		kind = Created
	case event.Has(fsnotify.Write):
		kind = Modified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename leaves the old path stale; the new path produces its own
		// create event.
		kind = Deleted
	default:
		return
	}

	w.debounceEvent(FileEvent{Path: event.Name, Kind: kind})
}

func (w *Watcher) debounceEvent(event FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Merge events per path: a delete is kept even when the file is
	// recreated within the window, so the consumer sees the delete before
	// the recreated file's next write.
	existing, exists := w.pending[event.Path]
	if !(exists && existing.Kind == Deleted && event.Kind != Deleted) {
		w.pending[event.Path] = event
	}
	if !exists {
		w.pendingOrder = append(w.pendingOrder, event.Path)
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := make([]FileEvent, 0, len(w.pending))
	for _, path := range w.pendingOrder {
		events = append(events, w.pending[path])
	}
	w.pending = make(map[string]FileEvent)
	w.pendingOrder = nil
	w.mu.Unlock()

	for _, event := range events {
		select {
		case w.events <- event:
		default:
			log.Printf("Event buffer full, dropping event for %s", event.Path)
		}
	}
}
