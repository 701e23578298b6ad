package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New([]string{".git", "node_modules"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

// waitForEvents polls until at least one event arrives or the deadline
// passes.
func waitForEvents(w *Watcher, deadline time.Duration) []FileEvent {
	var events []FileEvent
	stop := time.After(deadline)
	for {
		events = append(events, w.PollEvents()...)
		if len(events) > 0 {
			return events
		}
		select {
		case <-stop:
			return events
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatchUnwatch(t *testing.T) {
	tmp := t.TempDir()
	w := newTestWatcher(t)

	if err := w.Watch(tmp); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	paths := w.WatchedPaths()
	if len(paths) != 1 {
		t.Fatalf("expected 1 watched path, got %d", len(paths))
	}
	if !w.IsWatching(tmp) {
		t.Error("expected IsWatching to report true")
	}

	if err := w.Unwatch(tmp); err != nil {
		t.Fatalf("unwatch failed: %v", err)
	}
	if len(w.WatchedPaths()) != 0 {
		t.Error("expected no watched paths after unwatch")
	}
	if w.IsWatching(tmp) {
		t.Error("expected IsWatching to report false after unwatch")
	}
}

func TestUnwatch_NotWatched(t *testing.T) {
	w := newTestWatcher(t)
	if err := w.Unwatch(t.TempDir()); err == nil {
		t.Error("expected error unwatching unknown root")
	}
}

func TestWatch_NotADirectory(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "file.go")
	if err := os.WriteFile(file, []byte("package x\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w := newTestWatcher(t)
	if err := w.Watch(file); err == nil {
		t.Error("expected error watching a regular file")
	}
}

func TestPollEvents_CreateAndModify(t *testing.T) {
	tmp := t.TempDir()
	w := newTestWatcher(t)
	if err := w.Watch(tmp); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	file := filepath.Join(tmp, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	events := waitForEvents(w, 2*time.Second)
	if len(events) == 0 {
		t.Fatal("expected at least one event for created file")
	}

	found := false
	for _, ev := range events {
		if ev.Path == file && (ev.Kind == Created || ev.Kind == Modified) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected create/modify event for %s, got %+v", file, events)
	}
}

func TestPollEvents_Delete(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "gone.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w := newTestWatcher(t)
	if err := w.Watch(tmp); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if err := os.Remove(file); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	events := waitForEvents(w, 2*time.Second)
	found := false
	for _, ev := range events {
		if ev.Path == file && ev.Kind == Deleted {
			found = true
		}
	}
	if !found {
		t.Errorf("expected delete event for %s, got %+v", file, events)
	}
}

func TestFlushPreservesArrivalOrder(t *testing.T) {
	w := newTestWatcher(t)

	paths := []string{"/p/zeta.go", "/p/alpha.go", "/p/mid.go", "/p/beta.go", "/p/omega.go"}
	for _, path := range paths {
		w.debounceEvent(FileEvent{Path: path, Kind: Modified})
	}
	// A repeat event must not move a path back in line.
	w.debounceEvent(FileEvent{Path: paths[1], Kind: Modified})
	w.flush()

	events := waitForEvents(w, 2*time.Second)
	if len(events) != len(paths) {
		t.Fatalf("expected %d events, got %d: %+v", len(paths), len(events), events)
	}
	for i, ev := range events {
		if ev.Path != paths[i] {
			t.Fatalf("event %d out of order: expected %s, got %s", i, paths[i], ev.Path)
		}
	}
}

func TestPollEvents_EmptyWithoutActivity(t *testing.T) {
	w := newTestWatcher(t)
	if events := w.PollEvents(); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestHiddenFilesIgnored(t *testing.T) {
	tmp := t.TempDir()
	w := newTestWatcher(t)
	if err := w.Watch(tmp); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	hidden := filepath.Join(tmp, ".hidden")
	if err := os.WriteFile(hidden, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write hidden file: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	for _, ev := range w.PollEvents() {
		if ev.Path == hidden {
			t.Errorf("expected hidden file event to be filtered, got %+v", ev)
		}
	}
}
